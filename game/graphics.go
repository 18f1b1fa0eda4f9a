package game

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

const (
	CurrentGraphicsSettingsVersion = 3
	graphicsSettingsFile           = "graphics.yaml"
)

type ResolutionSettings uint8

const (
	ResolutionLow ResolutionSettings = iota
	ResolutionHigh
	ResolutionNative
	ResolutionCustom
)

type EffectSettings uint8

const (
	EffectLow EffectSettings = iota
	EffectHigh
)

type ParticlesSettings uint8

const (
	ParticlesFull ParticlesSettings = iota
	ParticlesPartial
	ParticlesNone
)

var (
	resolutionNames = []string{"Low", "High", "Native", "Custom"}
	effectNames     = []string{"Low", "High"}
	particlesNames  = []string{"Full", "Partial", "None"}
)

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "Unknown"
}

func parseEnum(kind string, names []string, text []byte) (uint8, error) {
	for i, name := range names {
		if name == string(text) {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown %s setting %q", kind, string(text))
}

func (r ResolutionSettings) String() string { return enumName(resolutionNames, uint8(r)) }

func (r ResolutionSettings) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ResolutionSettings) UnmarshalText(text []byte) error {
	v, err := parseEnum("resolution", resolutionNames, text)
	*r = ResolutionSettings(v)
	return err
}

func (e EffectSettings) String() string { return enumName(effectNames, uint8(e)) }

func (e EffectSettings) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EffectSettings) UnmarshalText(text []byte) error {
	v, err := parseEnum("effect", effectNames, text)
	*e = EffectSettings(v)
	return err
}

func (p ParticlesSettings) String() string { return enumName(particlesNames, uint8(p)) }

func (p ParticlesSettings) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *ParticlesSettings) UnmarshalText(text []byte) error {
	v, err := parseEnum("particles", particlesNames, text)
	*p = ParticlesSettings(v)
	return err
}

/** @brief User graphics choices, persisted in the save folder. */
type GraphicsSettings struct {
	Version          uint8              `yaml:"version"`
	Resolution       ResolutionSettings `yaml:"resolution"`
	UseShadows       bool               `yaml:"useShadows"`
	UseDynamicLights bool               `yaml:"useDynamicLights"`
	ParticleEffects  ParticlesSettings  `yaml:"particleEffects"`
	EffectSettings   EffectSettings     `yaml:"effectSettings"`
}

func DefaultGraphicsSettings() GraphicsSettings {
	return GraphicsSettings{
		Version:          CurrentGraphicsSettingsVersion,
		Resolution:       ResolutionHigh,
		UseShadows:       true,
		UseDynamicLights: true,
		ParticleEffects:  ParticlesFull,
		EffectSettings:   EffectHigh,
	}
}

// Largest framebuffer height for each resolution setting. Native and Custom
// keep the engine settings.
var resolutionHeight = map[ResolutionSettings]uint32{
	ResolutionLow:  720,
	ResolutionHigh: 1080,
}

// ToEngineSettings applies the graphics choices on top of base and returns
// the highest material quality worth loading.
func (g GraphicsSettings) ToEngineSettings(base core.EngineSettings) (core.EngineSettings, metadata.MaterialQuality) {
	settings := base
	settings.InitShadows = base.InitShadows && g.UseShadows
	settings.ParticlesEnabled = g.ParticleEffects != ParticlesNone

	if limit, ok := resolutionHeight[g.Resolution]; ok && settings.Height > limit {
		settings.Width = max(settings.Width*limit/settings.Height, 1)
		settings.Height = limit
	}

	quality := metadata.QualityHigh
	if g.EffectSettings == EffectLow {
		quality = metadata.QualityLow
	}
	return settings, quality
}

// GraphicsManager keeps the current settings and stores them in savePath.
type GraphicsManager struct {
	savePath string
	current  GraphicsSettings
}

func NewGraphicsManager(savePath string) *GraphicsManager {
	return &GraphicsManager{savePath: savePath, current: DefaultGraphicsSettings()}
}

func (gm *GraphicsManager) Settings() GraphicsSettings {
	return gm.current
}

func (gm *GraphicsManager) SetSettings(settings GraphicsSettings) {
	settings.Version = CurrentGraphicsSettingsVersion
	gm.current = settings
}

func (gm *GraphicsManager) path() string {
	return filepath.Join(gm.savePath, graphicsSettingsFile)
}

func (gm *GraphicsManager) Store() error {
	data, err := yaml.Marshal(gm.current)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(gm.savePath, 0o755); err != nil {
		return fmt.Errorf("failed to create save path %s: %w", gm.savePath, err)
	}
	if err := os.WriteFile(gm.path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to store graphics settings: %w", err)
	}
	return nil
}

// Load reads the stored settings. A missing file or one written by another
// version leaves the defaults in place. Unreadable files are reported and
// the defaults are kept.
func (gm *GraphicsManager) Load() error {
	gm.current = DefaultGraphicsSettings()
	data, err := os.ReadFile(gm.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored GraphicsSettings
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("can't parse %s: %w", gm.path(), err)
	}
	if stored.Version != CurrentGraphicsSettingsVersion {
		core.LogInfo("graphics settings version %d is outdated, using defaults", stored.Version)
		return nil
	}
	gm.current = stored
	return nil
}
