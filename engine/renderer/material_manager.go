package renderer

import (
	"fmt"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type MaterialManager struct {
	backend  RendererBackend
	shaders  *ShaderManager
	textures TextureSource
	cache    *PipelineCacheManager

	materials map[string]*Material
	order     []string
}

func NewMaterialManager(backend RendererBackend, shaders *ShaderManager, textures TextureSource, cache *PipelineCacheManager) *MaterialManager {
	return &MaterialManager{
		backend:   backend,
		shaders:   shaders,
		textures:  textures,
		cache:     cache,
		materials: make(map[string]*Material),
	}
}

// Register builds the pipeline, layouts and textures of a material once.
// Any failure is fatal and leaves nothing allocated.
func (mm *MaterialManager) Register(settings metadata.MaterialSettings) (*Material, error) {
	if settings.Name == "" {
		return nil, core.Fatalf("material without a name")
	}
	if _, ok := mm.materials[settings.Name]; ok {
		return nil, fmt.Errorf("material %s: %w", settings.Name, core.ErrAlreadyExists)
	}
	m, err := newMaterial(mm.backend, mm.shaders, mm.textures, mm.cache, settings)
	if err != nil {
		return nil, err
	}
	mm.materials[settings.Name] = m
	mm.order = append(mm.order, settings.Name)
	core.LogDebug("material %s registered for %s", settings.Name, settings.PassType)
	return m, nil
}

// Get returns the material called name. When emptyAllowed is set a missing
// material yields (nil, nil) instead of a fatal error.
func (mm *MaterialManager) Get(name string, emptyAllowed bool) (*Material, error) {
	m, ok := mm.materials[name]
	if !ok {
		if emptyAllowed {
			return nil, nil
		}
		return nil, core.Fatalf("can't find material %s", name)
	}
	return m, nil
}

// Duplicate registers a copy of name's settings under newName.
func (mm *MaterialManager) Duplicate(name, newName string) (*Material, error) {
	m, err := mm.Get(name, false)
	if err != nil {
		return nil, err
	}
	settings := m.Settings()
	settings.Name = newName
	settings.Textures = append([]metadata.TextureInfo(nil), settings.Textures...)
	return mm.Register(settings)
}

// ResetPipelines drains the device and rebuilds every pipeline.
func (mm *MaterialManager) ResetPipelines() error {
	if err := mm.backend.WaitIdle(); err != nil {
		return err
	}
	for _, name := range mm.order {
		if err := mm.materials[name].resetPipeline(); err != nil {
			return err
		}
	}
	return nil
}

// ResetDescriptors drains the device and rewrites every descriptor set.
func (mm *MaterialManager) ResetDescriptors() error {
	if err := mm.backend.WaitIdle(); err != nil {
		return err
	}
	for _, name := range mm.order {
		if err := mm.materials[name].resetDescriptorSets(); err != nil {
			return err
		}
	}
	return nil
}

func (mm *MaterialManager) Count() int {
	return len(mm.materials)
}

// Names returns material names in registration order.
func (mm *MaterialManager) Names() []string {
	return append([]string(nil), mm.order...)
}

// Shutdown destroys materials in reverse registration order.
func (mm *MaterialManager) Shutdown() {
	for i := len(mm.order) - 1; i >= 0; i-- {
		mm.materials[mm.order[i]].Destroy()
	}
	mm.materials = make(map[string]*Material)
	mm.order = nil
}
