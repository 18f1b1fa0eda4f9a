package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// Shader side limits of the light lists.
const (
	MaxPointLights = 16
	MaxLineLights  = 8
)

/** @brief A registered light and where it sits in the world. */
type Light struct {
	Settings metadata.LightSettings
	Position mgl32.Vec3
}

// viewProjection looks from the light to its LookAt point with an
// orthographic projection covering the play field.
func (l *Light) viewProjection() mgl32.Mat4 {
	view := mgl32.LookAtV(l.Position, l.Settings.LookAt, mgl32.Vec3{0, 1, 0})
	return mgl32.Ortho(-20, 20, -20, 20, 0.1, 100).Mul4(view)
}

// LightManager keeps lights by name in registration order.
type LightManager struct {
	lights map[string]*Light
	order  []string
}

func NewLightManager() *LightManager {
	return &LightManager{lights: make(map[string]*Light)}
}

// RegisterLight adds a light. Unnamed lights get a generated name.
func (lm *LightManager) RegisterLight(settings metadata.LightSettings) error {
	if settings.Name == "" {
		settings.Name = fmt.Sprintf("light%d", len(lm.order))
	}
	if _, ok := lm.lights[settings.Name]; ok {
		return fmt.Errorf("light %s: %w", settings.Name, core.ErrAlreadyExists)
	}
	lm.lights[settings.Name] = &Light{Settings: settings}
	lm.order = append(lm.order, settings.Name)
	return nil
}

// UpdateLight replaces the settings of a known light and keeps its position.
func (lm *LightManager) UpdateLight(settings metadata.LightSettings) error {
	light, ok := lm.lights[settings.Name]
	if !ok {
		return fmt.Errorf("light %s: %w", settings.Name, core.ErrNotFound)
	}
	light.Settings = settings
	return nil
}

func (lm *LightManager) Get(name string) (*Light, error) {
	light, ok := lm.lights[name]
	if !ok {
		return nil, fmt.Errorf("light %s: %w", name, core.ErrNotFound)
	}
	return light, nil
}

func (lm *LightManager) SetPosition(name string, position mgl32.Vec3) error {
	light, err := lm.Get(name)
	if err != nil {
		return err
	}
	light.Position = position
	return nil
}

func (lm *LightManager) Remove(name string) {
	if _, ok := lm.lights[name]; !ok {
		return
	}
	delete(lm.lights, name)
	lm.order = slices.DeleteFunc(lm.order, func(n string) bool { return n == name })
}

func (lm *LightManager) Count() int {
	return len(lm.order)
}

// Sun returns the first sun light, used for directional shadows.
func (lm *LightManager) Sun() *Light {
	for _, name := range lm.order {
		if l := lm.lights[name]; l.Settings.LightType == metadata.SunLight {
			return l
		}
	}
	return nil
}

// Fill writes the light lists into data. Lights beyond the shader limits
// are dropped.
func (lm *LightManager) Fill(data *renderer.UniformData, shadows bool) {
	data.PointLights = data.PointLights[:0]
	data.SimplePointLights = data.SimplePointLights[:0]
	data.LineLights = data.LineLights[:0]
	data.LightInfo = renderer.LightInfo{}
	if shadows {
		data.LightInfo.EnableShadows = 1
	}

	for _, name := range lm.order {
		l := lm.lights[name]
		s := l.Settings
		color := s.LightColor.Vec4(1)
		ambient := mulVec4(color, s.AmbientStrength)
		diffuse := mulVec4(color, s.DiffuseStrength)
		specular := mulVec4(color, s.SpecularStrength)

		switch s.LightType {
		case metadata.SunLight:
			direction := s.LookAt.Sub(l.Position)
			if direction.Len() > 0 {
				direction = direction.Normalize()
			}
			data.DirLight = renderer.DirLight{
				Direction: direction.Vec4(0),
				Ambient:   ambient,
				Diffuse:   diffuse,
				Specular:  specular,
			}
			data.LightDirectViewProjection = l.viewProjection()
		case metadata.PointLight, metadata.ShadowPointLight:
			if len(data.PointLights)+len(data.SimplePointLights) >= MaxPointLights {
				continue
			}
			if s.IsSimple {
				data.SimplePointLights = append(data.SimplePointLights, renderer.SimplePointLight{
					Position: l.Position.Vec4(1),
					Color:    color,
				})
				data.LightInfo.IsSimpleLight = 1
				continue
			}
			data.PointLights = append(data.PointLights, renderer.PointLight{
				Position:  l.Position.Vec4(1),
				Ambient:   ambient,
				Diffuse:   diffuse,
				Specular:  specular,
				Constant:  s.ConstAtten,
				Linear:    s.LinearAtten,
				Quadratic: s.QuadAtten,
			})
		case metadata.LineLight:
			if len(data.LineLights) >= MaxLineLights {
				continue
			}
			data.LineLights = append(data.LineLights, renderer.LineLight{
				StartPosition: l.Position.Vec4(1),
				EndPosition:   s.SecondPoint.Vec4(1),
				Ambient:       ambient,
				Diffuse:       diffuse,
				Specular:      specular,
				Constant:      s.ConstAtten,
				Linear:        s.LinearAtten,
				Quadratic:     s.QuadAtten,
			})
		case metadata.SpotLight:
			direction := s.LookAt.Sub(l.Position)
			if direction.Len() > 0 {
				direction = direction.Normalize()
			}
			data.SpotLight = renderer.SpotLight{
				Position:    l.Position.Vec4(1),
				Direction:   direction.Vec4(0),
				Ambient:     ambient,
				Diffuse:     diffuse,
				Specular:    specular,
				CutOff:      cos12_5,
				OuterCutOff: cos17_5,
				Constant:    s.ConstAtten,
				Linear:      s.LinearAtten,
				Quadratic:   s.QuadAtten,
			}
		}
	}
	data.LightInfo.PointLightNum = uint32(len(data.PointLights) + len(data.SimplePointLights))
	data.LightInfo.LightLineNum = uint32(len(data.LineLights))
}

// Spot cone angles, stored as cosines.
const (
	cos12_5 = 0.97629600712
	cos17_5 = 0.95371695074
)

func mulVec4(a, b mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}
