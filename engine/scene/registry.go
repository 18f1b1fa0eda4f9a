package scene

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// ParticleSystemManager keeps particle system templates by name.
type ParticleSystemManager struct {
	systems map[string]metadata.ParticleSystemSettings
}

func NewParticleSystemManager() *ParticleSystemManager {
	return &ParticleSystemManager{systems: make(map[string]metadata.ParticleSystemSettings)}
}

func (pm *ParticleSystemManager) Register(settings metadata.ParticleSystemSettings) error {
	if _, ok := pm.systems[settings.Name]; ok {
		return fmt.Errorf("particle system %s: %w", settings.Name, core.ErrAlreadyExists)
	}
	pm.systems[settings.Name] = settings
	return nil
}

func (pm *ParticleSystemManager) Get(name string) (metadata.ParticleSystemSettings, error) {
	settings, ok := pm.systems[name]
	if !ok {
		return settings, fmt.Errorf("particle system %s: %w", name, core.ErrNotFound)
	}
	return settings, nil
}

func (pm *ParticleSystemManager) Count() int {
	return len(pm.systems)
}

// FontManager keeps the glyph tables of registered fonts.
type FontManager struct {
	fonts map[string]metadata.FontSettings
}

func NewFontManager() *FontManager {
	return &FontManager{fonts: make(map[string]metadata.FontSettings)}
}

func (fm *FontManager) Register(settings metadata.FontSettings) error {
	if _, ok := fm.fonts[settings.Name]; ok {
		return fmt.Errorf("font %s: %w", settings.Name, core.ErrAlreadyExists)
	}
	fm.fonts[settings.Name] = settings
	return nil
}

func (fm *FontManager) Get(name string) (metadata.FontSettings, error) {
	settings, ok := fm.fonts[name]
	if !ok {
		return settings, fmt.Errorf("font %s: %w", name, core.ErrNotFound)
	}
	return settings, nil
}

func (fm *FontManager) Count() int {
	return len(fm.fonts)
}

func (fm *FontManager) Names() []string {
	names := make([]string, 0, len(fm.fonts))
	for name := range fm.fonts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TextWidth sums the advances of the symbols of text, in atlas pixels.
// Symbols missing from the font are skipped.
func (fm *FontManager) TextWidth(name, text string) (int32, error) {
	font, err := fm.Get(name)
	if err != nil {
		return 0, err
	}
	var width int32
	for _, r := range text {
		if symbol, ok := font.Symbols[r]; ok {
			width += symbol.Advance
		}
	}
	return width, nil
}
