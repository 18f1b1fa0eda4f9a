// Package scene holds the node tree, the entities drawn from it and the
// per frame uniform data every pass is rendered with.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// SceneManager implements renderer.FrameSource for the node tree.
type SceneManager struct {
	renderer *renderer.Renderer
	settings core.EngineSettings

	root      *SceneNode
	camera    *Camera
	Lights    *LightManager
	Particles *ParticleSystemManager
	Fonts     *FontManager

	waterHeight float32
	time        float32
	deltaTime   float32
}

var _ renderer.FrameSource = (*SceneManager)(nil)

func NewSceneManager(r *renderer.Renderer, settings core.EngineSettings) *SceneManager {
	width, height := r.Backend.Extent()
	return &SceneManager{
		renderer:  r,
		settings:  settings,
		root:      NewSceneNode("root"),
		camera:    NewCamera(width, height),
		Lights:    NewLightManager(),
		Particles: NewParticleSystemManager(),
		Fonts:     NewFontManager(),
	}
}

func (sm *SceneManager) Root() *SceneNode {
	return sm.root
}

func (sm *SceneManager) MainCamera() *Camera {
	return sm.camera
}

func (sm *SceneManager) Renderer() *renderer.Renderer {
	return sm.renderer
}

func (sm *SceneManager) ShadowsEnabled() bool {
	return sm.settings.InitShadows
}

func (sm *SceneManager) WaterEnabled() bool {
	return sm.settings.InitWater
}

func (sm *SceneManager) WaterHeight() float32 {
	return sm.waterHeight
}

func (sm *SceneManager) SetWaterHeight(height float32) {
	sm.waterHeight = height
}

// Update advances the time fed to shaders.
func (sm *SceneManager) Update(deltaTime float32) {
	sm.deltaTime = deltaTime
	sm.time += deltaTime
}

func (sm *SceneManager) Time() float32 {
	return sm.time
}

// Resize keeps the camera aspect ratio in sync with the window.
func (sm *SceneManager) Resize(width, height uint32) {
	sm.camera.SetExtent(width, height)
}

func (sm *SceneManager) RegisterLight(settings metadata.LightSettings) error {
	return sm.Lights.RegisterLight(settings)
}

func (sm *SceneManager) RegisterParticleSystem(settings metadata.ParticleSystemSettings) error {
	return sm.Particles.Register(settings)
}

func (sm *SceneManager) RegisterFont(settings metadata.FontSettings) error {
	return sm.Fonts.Register(settings)
}

// passUniforms builds the frame data of each pass before model matrices are
// applied.
func (sm *SceneManager) passUniforms() UniformDataList {
	main := renderer.NewUniformData()
	main.View = sm.camera.View()
	main.Projection = sm.camera.Projection()
	main.CameraPos = sm.camera.Position().Vec4(1)
	main.Time = sm.time
	main.DeltaTime = sm.deltaTime
	sm.Lights.Fill(main, sm.ShadowsEnabled())
	main.LightDirectViewProjectionList = []mgl32.Mat4{main.LightDirectViewProjection}

	shadow := *main
	shadow.View = mgl32.Ident4()
	shadow.Projection = main.LightDirectViewProjection
	if sm.Lights.Sun() == nil {
		shadow.Projection = mgl32.Ident4()
	}

	reflection := *main
	reflection.View = sm.camera.ReflectedView(sm.waterHeight)
	reflection.ClipPlane = mgl32.Vec4{0, 1, 0, -sm.waterHeight}

	refraction := *main
	refraction.ClipPlane = mgl32.Vec4{0, -1, 0, sm.waterHeight}

	return UniformDataList{
		metadata.MainPass:              main,
		metadata.ShadowPassDirectLight: &shadow,
		metadata.ReflectionPass:        &reflection,
		metadata.RefractionPass:        &refraction,
	}
}

// UpdateUniforms writes the uniform data of every entity for imageIndex.
func (sm *SceneManager) UpdateUniforms(imageIndex uint32) error {
	base := sm.passUniforms()
	return sm.root.Walk(func(node *SceneNode) error {
		if len(node.entities) == 0 {
			return nil
		}
		model := node.TotalTransformation()
		data := make(UniformDataList, len(base))
		for pass, d := range base {
			copied := *d
			copied.Model = model
			data[pass] = &copied
		}
		for _, entity := range node.entities {
			if err := entity.UpdateUniforms(data, imageIndex); err != nil {
				return err
			}
		}
		return nil
	})
}

// offscreenPasses lists the passes the scene records besides the main one.
func (sm *SceneManager) offscreenPasses() []metadata.CommandsType {
	var passes []metadata.CommandsType
	if sm.ShadowsEnabled() {
		passes = append(passes, metadata.ShadowPassDirectLight)
	}
	if sm.WaterEnabled() {
		passes = append(passes, metadata.ReflectionPass, metadata.RefractionPass)
	}
	return passes
}

func (sm *SceneManager) RecordPasses(frames *renderer.FrameSubmitter) error {
	imageIndex := frames.ImageIndex()
	for _, pass := range sm.offscreenPasses() {
		index := metadata.DefaultBufferIndex(pass)
		err := frames.Record(pass, index, func(cb *metadata.CommandBuffer) error {
			return sm.RenderPass(cb, pass, imageIndex)
		})
		if err != nil {
			return err
		}
		if err := frames.SubmitCommands(pass, index); err != nil {
			return err
		}
	}
	return nil
}

func (sm *SceneManager) RecordMainPass(cb *metadata.CommandBuffer, imageIndex uint32) error {
	return sm.RenderPass(cb, metadata.MainPass, imageIndex)
}

// RenderPass records the drawing commands of every entity taking part in
// pass.
func (sm *SceneManager) RenderPass(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error {
	return sm.root.Walk(func(node *SceneNode) error {
		for _, entity := range node.entities {
			switch {
			case pass.IsShadow() && !entity.IsCastShadows():
				continue
			case (pass == metadata.ReflectionPass || pass == metadata.RefractionPass) && !entity.IsReflected():
				continue
			}
			if err := entity.ApplyDrawingCommands(cb, pass, imageIndex); err != nil {
				return err
			}
		}
		return nil
	})
}
