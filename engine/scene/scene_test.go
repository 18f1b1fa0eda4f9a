package scene_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/scene"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

type noTextures struct{}

func (noTextures) LoadImage(filename string) (*metadata.ImageData, error) {
	return &metadata.ImageData{Width: 1, Height: 1, Pixels: make([]byte, 4)}, nil
}

func newRenderer(t *testing.T) (*renderer.Renderer, *headless.Backend) {
	t.Helper()
	backend := headless.New(headless.DefaultConfig())
	r, err := renderer.New(backend, noTextures{}, assets.NewMemoryFS(fstest.MapFS{}, t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { r.Shutdown() })

	vs := metadata.DefaultShaderSettings()
	vs.Name = "mesh_vs"
	vs.ShaderType = metadata.VertexShader
	vs.UniformList = []metadata.UniformDescription{
		{UniformType: metadata.UniformModelViewProjectionMatrix},
		{UniformType: metadata.UniformClipPlane},
	}
	vs.VertexInfo.VertexDataFlags = []metadata.VertexDataFlag{metadata.VertexPosition, metadata.VertexNormal}
	_, err = r.Shaders.Register(vs, spirv)
	require.NoError(t, err)

	fs := metadata.DefaultShaderSettings()
	fs.Name = "mesh_fs"
	fs.ShaderType = metadata.FragmentShader
	fs.UniformList = []metadata.UniformDescription{{UniformType: metadata.UniformMaterialInfo}}
	_, err = r.Shaders.Register(fs, spirv)
	require.NoError(t, err)

	for _, name := range []string{"wall", scene.ShadowMaterialName} {
		settings := metadata.DefaultMaterialSettings()
		settings.Name = name
		settings.VertexShaderName = "mesh_vs"
		settings.FragmentShaderName = "mesh_fs"
		_, err := r.Materials.Register(settings)
		require.NoError(t, err)
	}

	require.NoError(t, r.Meshes.Register(&metadata.MeshData{
		Name: "block",
		Parts: []metadata.MeshPart{{
			Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
			Indices:   []uint32{0, 1, 2},
		}},
	}))
	return r, backend
}

func TestSceneNodeTree(t *testing.T) {
	root := scene.NewSceneNode("root")
	level := scene.NewSceneNode("level")
	enemy := scene.NewSceneNode("enemy")
	root.AttachSceneNode(level)
	level.AttachSceneNode(enemy)

	level.SetNodeTransformation(mgl32.Translate3D(1, 0, 0))
	enemy.SetNodeTransformation(mgl32.Translate3D(0, 2, 0))
	assert.Equal(t, mgl32.Vec3{1, 2, 0}, enemy.WorldPosition())

	// moving a node detaches it from its old parent
	root.AttachSceneNode(enemy)
	assert.Empty(t, level.Children())
	assert.Equal(t, root, enemy.Parent())
	assert.Equal(t, mgl32.Vec3{0, 2, 0}, enemy.WorldPosition())

	enemy.Detach()
	assert.Nil(t, enemy.Parent())
	assert.Equal(t, []*scene.SceneNode{level}, root.Children())

	var visited []string
	require.NoError(t, root.Walk(func(n *scene.SceneNode) error {
		visited = append(visited, n.Name())
		return nil
	}))
	assert.Equal(t, []string{"root", "level"}, visited)
}

func TestCamera(t *testing.T) {
	c := scene.NewCamera(1280, 720)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, -1}, c.Forward(), 1e-5)

	c.SetPosition(mgl32.Vec3{0, 5, 5})
	c.LookAt(mgl32.Vec3{0, 0, 0})
	yaw, pitch := c.Angles()
	assert.InDelta(t, 0, yaw, 1e-5)
	assert.InDelta(t, -mgl32.DegToRad(45), pitch, 1e-5)
	assertVec3InDelta(t, mgl32.Vec3{0, -1, -1}.Normalize(), c.Forward(), 1e-5)

	c.Pitch(-10)
	_, pitch = c.Angles()
	assert.InDelta(t, -mgl32.DegToRad(89), pitch, 1e-4)

	// the origin ends up in front of the camera
	c.LookAt(mgl32.Vec3{0, 0, 0})
	eye := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.Less(t, eye.Z(), float32(0))

	assert.Less(t, c.Projection()[5], float32(0))

	// mirrored below the water the camera looks up
	reflected := c.ReflectedView(0).Inv().Col(3).Vec3()
	assertVec3InDelta(t, mgl32.Vec3{0, -5, 5}, reflected, 1e-4)
}

func TestLightManagerFill(t *testing.T) {
	lights := scene.NewLightManager()

	sun := metadata.DefaultLightSettings()
	sun.Name = "sun"
	sun.LightType = metadata.SunLight
	sun.DiffuseStrength = mgl32.Vec4{0.5, 0.5, 0.5, 1}
	require.NoError(t, lights.RegisterLight(sun))
	require.NoError(t, lights.SetPosition("sun", mgl32.Vec3{0, 10, 0}))

	require.NoError(t, lights.RegisterLight(metadata.DefaultLightSettings()))
	simple := metadata.DefaultLightSettings()
	simple.IsSimple = true
	require.NoError(t, lights.RegisterLight(simple))
	line := metadata.DefaultLightSettings()
	line.LightType = metadata.LineLight
	line.SecondPoint = mgl32.Vec3{4, 0, 0}
	require.NoError(t, lights.RegisterLight(line))

	assert.ErrorIs(t, lights.RegisterLight(sun), core.ErrAlreadyExists)
	assert.Equal(t, 4, lights.Count())

	data := renderer.NewUniformData()
	lights.Fill(data, true)
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 0}, data.DirLight.Direction)
	assert.Equal(t, mgl32.Vec4{0.5, 0.5, 0.5, 1}, data.DirLight.Diffuse)
	assert.Len(t, data.PointLights, 1)
	assert.Len(t, data.SimplePointLights, 1)
	assert.Equal(t, renderer.LightInfo{IsSimpleLight: 1, EnableShadows: 1, LightLineNum: 1, PointLightNum: 2}, data.LightInfo)
	assert.Equal(t, mgl32.Vec4{4, 0, 0, 1}, data.LineLights[0].EndPosition)

	sun.LightColor = mgl32.Vec3{1, 0, 0}
	require.NoError(t, lights.UpdateLight(sun))
	lights.Fill(data, false)
	assert.Equal(t, mgl32.Vec4{0.5, 0, 0, 1}, data.DirLight.Diffuse)
	assert.Zero(t, data.LightInfo.EnableShadows)

	missing := metadata.DefaultLightSettings()
	missing.Name = "moon"
	assert.ErrorIs(t, lights.UpdateLight(missing), core.ErrNotFound)

	lights.Remove("sun")
	assert.Nil(t, lights.Sun())
}

func TestMeshEntityInstances(t *testing.T) {
	r, _ := newRenderer(t)
	settings := core.DefaultEngineSettings()
	sm := scene.NewSceneManager(r, settings)

	entity, err := scene.NewMeshEntity(sm, "block", "wall")
	require.NoError(t, err)
	wall, err := r.Materials.Get("wall", false)
	require.NoError(t, err)
	depth, err := r.Materials.Get(scene.ShadowMaterialName, false)
	require.NoError(t, err)
	// main, reflection and refraction
	assert.Equal(t, 3, wall.InstanceCount())
	assert.Equal(t, 1, depth.InstanceCount())

	// switching back to the same material reuses the instances
	require.NoError(t, entity.SetMaterial("wall"))
	assert.Equal(t, 3, wall.InstanceCount())
	assert.Equal(t, 1, depth.InstanceCount())

	_, err = scene.NewMeshEntity(sm, "block", "missing")
	assert.ErrorIs(t, err, core.ErrFatal)
	_, err = scene.NewMeshEntity(sm, "missing", "wall")
	assert.ErrorIs(t, err, core.ErrFatal)
}

func TestMeshEntityWithoutWaterOrShadows(t *testing.T) {
	r, _ := newRenderer(t)
	settings := core.DefaultEngineSettings()
	settings.InitShadows = false
	settings.InitWater = false
	sm := scene.NewSceneManager(r, settings)

	_, err := scene.NewMeshEntity(sm, "block", "wall")
	require.NoError(t, err)
	wall, _ := r.Materials.Get("wall", false)
	depth, _ := r.Materials.Get(scene.ShadowMaterialName, false)
	assert.Equal(t, 1, wall.InstanceCount())
	assert.Equal(t, 0, depth.InstanceCount())
}

func TestSceneDrawFrame(t *testing.T) {
	r, backend := newRenderer(t)
	sm := scene.NewSceneManager(r, core.DefaultEngineSettings())
	sm.MainCamera().SetPosition(mgl32.Vec3{0, 5, 10})
	sm.MainCamera().LookAt(mgl32.Vec3{})

	sun := metadata.DefaultLightSettings()
	sun.Name = "sun"
	sun.LightType = metadata.SunLight
	require.NoError(t, sm.RegisterLight(sun))

	player, err := scene.NewMeshEntity(sm, "block", "wall")
	require.NoError(t, err)
	player.SetIsReflected(false)
	ghost, err := scene.NewMeshEntity(sm, "block", "wall")
	require.NoError(t, err)
	ghost.SetCastShadows(false)

	playerNode := scene.NewSceneNode("player")
	playerNode.AttachEntity(player)
	ghostNode := scene.NewSceneNode("ghost")
	ghostNode.AttachEntity(ghost)
	sm.Root().AttachSceneNode(playerNode)
	playerNode.AttachSceneNode(ghostNode)

	require.NoError(t, r.DrawFrame(context.Background(), sm))

	stats := backend.Stats()
	// main 2, shadow 1, reflection 1, refraction 1
	assert.Equal(t, 5, stats.DrawCalls)
	// three offscreen passes and the main one
	assert.Equal(t, 4, stats.Submits)
	assert.Equal(t, 1, stats.Presents)
	assert.Zero(t, stats.HazardViolations)
	assert.Zero(t, stats.SemaphoreViolations)

	wall, _ := r.Materials.Get("wall", false)
	depth, _ := r.Materials.Get(scene.ShadowMaterialName, false)
	// two stages with uniforms, three instances per entity
	assert.Equal(t, 12, wall.Stats().UniformWrites)
	assert.Equal(t, 4, depth.Stats().UniformWrites)

	// a detached node is no longer drawn
	ghostNode.Detach()
	require.NoError(t, r.DrawFrame(context.Background(), sm))
	// main 1, shadow 1
	assert.Equal(t, 7, backend.Stats().DrawCalls)
}

func TestRegistries(t *testing.T) {
	r, _ := newRenderer(t)
	sm := scene.NewSceneManager(r, core.DefaultEngineSettings())

	font := metadata.FontSettings{
		Name: "main",
		Symbols: map[rune]metadata.FontSymbol{
			'A': {Advance: 10},
			'B': {Advance: 12},
		},
	}
	require.NoError(t, sm.RegisterFont(font))
	assert.ErrorIs(t, sm.RegisterFont(font), core.ErrAlreadyExists)
	width, err := sm.Fonts.TextWidth("main", "AB?A")
	require.NoError(t, err)
	assert.Equal(t, int32(32), width)
	_, err = sm.Fonts.TextWidth("other", "A")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []string{"main"}, sm.Fonts.Names())

	fire := metadata.ParticleSystemSettings{Name: "fire", Quota: 100}
	require.NoError(t, sm.RegisterParticleSystem(fire))
	assert.ErrorIs(t, sm.RegisterParticleSystem(fire), core.ErrAlreadyExists)
	got, err := sm.Particles.Get("fire")
	require.NoError(t, err)
	assert.Equal(t, uint32(100), got.Quota)
	assert.Equal(t, 1, sm.Particles.Count())
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], delta, "component %d of %v", i, actual)
	}
}
