package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func TestGraphicsManagerStoreLoad(t *testing.T) {
	dir := t.TempDir()
	gm := NewGraphicsManager(dir)
	require.NoError(t, gm.Load())
	assert.Equal(t, DefaultGraphicsSettings(), gm.Settings())

	custom := GraphicsSettings{
		Resolution:       ResolutionCustom,
		UseShadows:       false,
		UseDynamicLights: true,
		ParticleEffects:  ParticlesPartial,
		EffectSettings:   EffectLow,
	}
	gm.SetSettings(custom)
	require.NoError(t, gm.Store())

	data, err := os.ReadFile(filepath.Join(dir, graphicsSettingsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "resolution: Custom")
	assert.Contains(t, string(data), "particleEffects: Partial")

	loaded := NewGraphicsManager(dir)
	require.NoError(t, loaded.Load())
	custom.Version = CurrentGraphicsSettingsVersion
	assert.Equal(t, custom, loaded.Settings())
}

func TestGraphicsManagerLoadResets(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"old version", "version: 2\nresolution: Low\nuseShadows: false\n", false},
		{"bad enum", "version: 3\nresolution: Ultra\n", true},
		{"bad yaml", "version: [3\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, graphicsSettingsFile), []byte(tt.content), 0o644))
			gm := NewGraphicsManager(dir)
			err := gm.Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, DefaultGraphicsSettings(), gm.Settings())
		})
	}
}

func TestToEngineSettings(t *testing.T) {
	base := core.DefaultEngineSettings()
	base.Width, base.Height = 3840, 2160

	tests := []struct {
		name        string
		graphics    func(*GraphicsSettings)
		wantWidth   uint32
		wantHeight  uint32
		wantShadows bool
		particles   bool
		quality     metadata.MaterialQuality
	}{
		{"defaults", func(*GraphicsSettings) {}, 1920, 1080, true, true, metadata.QualityHigh},
		{"low", func(g *GraphicsSettings) {
			g.Resolution = ResolutionLow
			g.UseShadows = false
			g.ParticleEffects = ParticlesNone
			g.EffectSettings = EffectLow
		}, 1280, 720, false, false, metadata.QualityLow},
		{"native", func(g *GraphicsSettings) { g.Resolution = ResolutionNative }, 3840, 2160, true, true, metadata.QualityHigh},
		{"partial particles", func(g *GraphicsSettings) { g.ParticleEffects = ParticlesPartial }, 1920, 1080, true, true, metadata.QualityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graphics := DefaultGraphicsSettings()
			tt.graphics(&graphics)
			settings, quality := graphics.ToEngineSettings(base)
			assert.Equal(t, tt.wantWidth, settings.Width)
			assert.Equal(t, tt.wantHeight, settings.Height)
			assert.Equal(t, tt.wantShadows, settings.InitShadows)
			assert.Equal(t, tt.particles, settings.ParticlesEnabled)
			assert.Equal(t, tt.quality, quality)
			assert.Equal(t, base.ApplicationName, settings.ApplicationName)
		})
	}

	small := base
	small.Width, small.Height = 800, 600
	settings, _ := DefaultGraphicsSettings().ToEngineSettings(small)
	assert.Equal(t, uint32(800), settings.Width)
	assert.Equal(t, uint32(600), settings.Height)
}
