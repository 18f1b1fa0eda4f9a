package renderer

import (
	"fmt"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// TextureSource decodes the image files referenced by materials.
type TextureSource interface {
	LoadImage(filename string) (*metadata.ImageData, error)
}

/** @brief Selects which of an entity's instances is used. */
type MaterialVariant uint8

const (
	VariantMain MaterialVariant = iota
	VariantReflection
	VariantRefraction
)

type instanceKey struct {
	entity  core.EntityID
	variant MaterialVariant
}

type stageInstance struct {
	// one per swapchain image, empty when the stage has no uniforms
	buffers []*metadata.Buffer
	// one per swapchain image
	sets []*metadata.DescriptorSet
}

type materialInstance struct {
	stages  []stageInstance
	pool    *metadata.DescriptorPool
	release ReleaseStack
}

type materialTexture struct {
	info    metadata.TextureInfo
	texture *metadata.Texture
}

/** @brief Allocation counters, used to verify that descriptor sets are never reallocated. */
type MaterialStats struct {
	DescriptorSetAllocations int
	DescriptorSetUpdates     int
	UniformWrites            int
	PipelineBuilds           int
}

// Material is a pipeline plus the per entity instances that feed it.
type Material struct {
	backend       RendererBackend
	cache         *PipelineCacheManager
	settings      metadata.MaterialSettings
	swapchainSize uint32

	shaders    []*ShaderInfo
	setLayouts []*metadata.DescriptorSetLayout
	layout     *metadata.PipelineLayout
	pipeline   *metadata.Pipeline
	textures   []materialTexture

	instances []*materialInstance
	entities  map[instanceKey]int
	scratch   [][]byte
	stats     MaterialStats

	release ReleaseStack
}

func newMaterial(backend RendererBackend, shaders *ShaderManager, textures TextureSource, cache *PipelineCacheManager, settings metadata.MaterialSettings) (_ *Material, err error) {
	m := &Material{
		backend:       backend,
		cache:         cache,
		settings:      settings,
		swapchainSize: backend.SwapchainImageCount(),
		entities:      make(map[instanceKey]int),
	}
	defer func() {
		if err != nil {
			m.release.Release()
		}
	}()

	if err = m.resolveShaders(shaders); err != nil {
		return nil, err
	}
	if err = m.createTextures(textures); err != nil {
		return nil, err
	}
	if err = m.createLayouts(); err != nil {
		return nil, err
	}
	if err = m.buildPipeline(); err != nil {
		return nil, err
	}
	m.scratch = make([][]byte, len(m.shaders))
	return m, nil
}

func (m *Material) resolveShaders(shaders *ShaderManager) error {
	stages := []struct {
		name  string
		stage metadata.ShaderType
	}{
		{m.settings.VertexShaderName, metadata.VertexShader},
		{m.settings.FragmentShaderName, metadata.FragmentShader},
		{m.settings.GeometryShaderName, metadata.GeometryShader},
	}
	if m.settings.VertexShaderName == "" {
		return core.Fatalf("material %s has no vertex shader", m.settings.Name)
	}
	for _, s := range stages {
		if s.name == "" {
			continue
		}
		si, err := shaders.Get(s.name)
		if err != nil {
			return fmt.Errorf("material %s: %w", m.settings.Name, err)
		}
		if si.Stage() != s.stage {
			return core.Fatalf("material %s: shader %s is a %s, expected %s", m.settings.Name, s.name, si.Stage(), s.stage)
		}
		m.shaders = append(m.shaders, si)
	}
	return nil
}

func (m *Material) createTextures(source TextureSource) error {
	for _, info := range m.settings.Textures {
		mt := materialTexture{info: info}
		if info.TextureType == metadata.TextureImageFile {
			img, err := source.LoadImage(info.Filename)
			if err != nil {
				return core.Fatalf("material %s: can't load texture %s: %w", m.settings.Name, info.Filename, err)
			}
			tex, err := m.backend.TextureCreate(metadata.TextureConfig{
				Name:        info.Filename,
				Width:       img.Width,
				Height:      img.Height,
				Layers:      info.Layers,
				IsCubemap:   m.settings.IsCubemap,
				AddressMode: info.TextureAddressMode,
				BorderColor: info.TextureBorderColor,
			}, img)
			if err != nil {
				return core.Fatalf("material %s: failed to create texture %s: %w", m.settings.Name, info.Filename, err)
			}
			mt.texture = Own(&m.release, tex, m.backend.TextureDestroy)
		} else if _, err := m.backend.PassTexture(info.TextureType); err != nil {
			return core.Fatalf("material %s: pass texture %s unavailable: %w", m.settings.Name, info.TextureType, err)
		}
		m.textures = append(m.textures, mt)
	}

	for _, si := range m.shaders {
		for _, name := range si.Settings.SamplerNamesList {
			if m.textureIndex(name) < 0 {
				return core.Fatalf("material %s: incorrect sampler name %q in material configuration", m.settings.Name, name)
			}
		}
	}
	return nil
}

func (m *Material) textureIndex(samplerName string) int {
	for i, t := range m.textures {
		if t.info.SamplerName == samplerName {
			return i
		}
	}
	return -1
}

// textureFor resolves pass textures on every call, their views change on resize.
func (m *Material) textureFor(samplerName string) (*metadata.Texture, error) {
	i := m.textureIndex(samplerName)
	if i < 0 {
		return nil, core.Fatalf("material %s: incorrect sampler name %q", m.settings.Name, samplerName)
	}
	t := m.textures[i]
	if t.texture != nil {
		return t.texture, nil
	}
	return m.backend.PassTexture(t.info.TextureType)
}

func (m *Material) createLayouts() error {
	for _, si := range m.shaders {
		layout, err := m.backend.DescriptorSetLayoutCreate(stageBindings(si))
		if err != nil {
			return core.Fatalf("material %s: failed to create descriptor set layout for %s: %w", m.settings.Name, si.Name(), err)
		}
		m.setLayouts = append(m.setLayouts, Own(&m.release, layout, m.backend.DescriptorSetLayoutDestroy))
	}
	layout, err := m.backend.PipelineLayoutCreate(m.setLayouts)
	if err != nil {
		return core.Fatalf("material %s: failed to create pipeline layout: %w", m.settings.Name, err)
	}
	m.layout = Own(&m.release, layout, m.backend.PipelineLayoutDestroy)
	return nil
}

// stageBindings puts the samplers at binding 0, then the uniform buffer.
func stageBindings(si *ShaderInfo) []metadata.DescriptorBinding {
	var bindings []metadata.DescriptorBinding
	binding := uint32(0)
	if n := len(si.Settings.SamplerNamesList); n > 0 {
		bindings = append(bindings, metadata.DescriptorBinding{
			Binding: binding,
			Type:    metadata.DescriptorCombinedImageSampler,
			Count:   uint32(n),
			Stage:   si.Stage(),
		})
		binding++
	}
	if si.UniformSize() > 0 {
		bindings = append(bindings, metadata.DescriptorBinding{
			Binding: binding,
			Type:    metadata.DescriptorUniformBuffer,
			Count:   1,
			Stage:   si.Stage(),
		})
	}
	return bindings
}

func (m *Material) buildPipeline() error {
	config := &metadata.PipelineConfig{
		Name:     m.settings.Name,
		Pass:     m.settings.PassType,
		Layout:   m.layout,
		Vertex:   m.shaders[0].Settings.VertexInfo,
		Material: m.settings,
	}
	for _, si := range m.shaders {
		config.Stages = append(config.Stages, si.Module)
	}
	var cache *metadata.PipelineCache
	if m.cache != nil {
		cache = m.cache.Handle()
	}
	pipeline, err := m.backend.PipelineCreate(config, cache)
	if err != nil {
		return core.Fatalf("material %s: failed to create pipeline: %w", m.settings.Name, err)
	}
	m.pipeline = pipeline
	m.stats.PipelineBuilds++
	return nil
}

// GetInstanceForEntity returns the instance bound to (entity, variant),
// creating a full set of uniform buffers and descriptor sets on first use.
func (m *Material) GetInstanceForEntity(entity core.EntityID, variant MaterialVariant) (int, error) {
	key := instanceKey{entity: entity, variant: variant}
	if index, ok := m.entities[key]; ok {
		return index, nil
	}
	inst, err := m.createInstance()
	if err != nil {
		return -1, err
	}
	m.instances = append(m.instances, inst)
	index := len(m.instances) - 1
	m.entities[key] = index
	return index, nil
}

func (m *Material) createInstance() (_ *materialInstance, err error) {
	inst := &materialInstance{stages: make([]stageInstance, len(m.shaders))}
	defer func() {
		if err != nil {
			inst.release.Release()
		}
	}()

	sizes := metadata.DescriptorPoolSizes{MaxSets: uint32(len(m.shaders)) * m.swapchainSize}
	for _, si := range m.shaders {
		if si.UniformSize() > 0 {
			sizes.UniformBuffers += m.swapchainSize
		}
		sizes.ImageSamplers += uint32(len(si.Settings.SamplerNamesList)) * m.swapchainSize
	}
	pool, err := m.backend.DescriptorPoolCreate(sizes)
	if err != nil {
		return nil, core.Fatalf("material %s: failed to create descriptor pool: %w", m.settings.Name, err)
	}
	inst.pool = Own(&inst.release, pool, m.backend.DescriptorPoolDestroy)

	for s, si := range m.shaders {
		stage := &inst.stages[s]
		if size := si.UniformSize(); size > 0 {
			for i := uint32(0); i < m.swapchainSize; i++ {
				buf, err := m.backend.BufferCreate(metadata.BufferUsageUniform, uint64(size))
				if err != nil {
					return nil, core.Fatalf("material %s: failed to create uniform buffer: %w", m.settings.Name, err)
				}
				stage.buffers = append(stage.buffers, Own(&inst.release, buf, m.backend.BufferDestroy))
			}
		}
		sets, err := m.backend.DescriptorSetsAllocate(inst.pool, m.setLayouts[s], m.swapchainSize)
		if err != nil {
			return nil, core.Fatalf("material %s: failed to allocate descriptor sets: %w", m.settings.Name, err)
		}
		m.stats.DescriptorSetAllocations++
		stage.sets = sets
		if err := m.writeDescriptorSets(s, stage); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (m *Material) writeDescriptorSets(s int, stage *stageInstance) error {
	si := m.shaders[s]
	var textures []*metadata.Texture
	for _, name := range si.Settings.SamplerNamesList {
		tex, err := m.textureFor(name)
		if err != nil {
			return err
		}
		textures = append(textures, tex)
	}

	for i, set := range stage.sets {
		var writes []metadata.DescriptorWrite
		binding := uint32(0)
		if len(textures) > 0 {
			writes = append(writes, metadata.DescriptorWrite{
				Binding:  binding,
				Type:     metadata.DescriptorCombinedImageSampler,
				Textures: textures,
			})
			binding++
		}
		if len(stage.buffers) > 0 {
			writes = append(writes, metadata.DescriptorWrite{
				Binding: binding,
				Type:    metadata.DescriptorUniformBuffer,
				Buffer:  stage.buffers[i],
				Range:   uint64(si.UniformSize()),
			})
		}
		if len(writes) == 0 {
			continue
		}
		if err := m.backend.DescriptorSetUpdate(set, writes); err != nil {
			return core.Fatalf("material %s: failed to update descriptor set: %w", m.settings.Name, err)
		}
		m.stats.DescriptorSetUpdates++
	}
	return nil
}

func (m *Material) instance(index int, imageIndex uint32) (*materialInstance, error) {
	if index < 0 || index >= len(m.instances) {
		return nil, fmt.Errorf("material %s: instance %d out of range (%d instances)", m.settings.Name, index, len(m.instances))
	}
	if imageIndex >= m.swapchainSize {
		return nil, fmt.Errorf("material %s: image index %d out of range (swapchain size %d)", m.settings.Name, imageIndex, m.swapchainSize)
	}
	return m.instances[index], nil
}

// SetUniformData packs data for every stage and writes it into the buffer
// copy owned by imageIndex. The caller must have waited for the last
// submission that used imageIndex.
func (m *Material) SetUniformData(index int, data *UniformData, imageIndex uint32) error {
	inst, err := m.instance(index, imageIndex)
	if err != nil {
		return err
	}
	for s, si := range m.shaders {
		if si.UniformSize() == 0 {
			continue
		}
		m.scratch[s] = si.Pack(m.scratch[s], data)
		if err := m.backend.BufferWrite(inst.stages[s].buffers[imageIndex], 0, m.scratch[s]); err != nil {
			return fmt.Errorf("material %s: failed to write uniforms of %s: %w", m.settings.Name, si.Name(), err)
		}
		m.stats.UniformWrites++
	}
	return nil
}

// ApplyDrawingCommands binds the pipeline and the descriptor sets of
// (index, imageIndex) into cb.
func (m *Material) ApplyDrawingCommands(cb *metadata.CommandBuffer, index int, imageIndex uint32) error {
	inst, err := m.instance(index, imageIndex)
	if err != nil {
		return err
	}
	sets := make([]*metadata.DescriptorSet, len(inst.stages))
	for s := range inst.stages {
		sets[s] = inst.stages[s].sets[imageIndex]
	}
	m.backend.CmdBindPipeline(cb, m.pipeline)
	m.backend.CmdBindDescriptorSets(cb, m.layout, 0, sets)
	return nil
}

// resetPipeline rebuilds the pipeline after its render pass changed format.
// The device must be idle.
func (m *Material) resetPipeline() error {
	if m.pipeline != nil {
		m.backend.PipelineDestroy(m.pipeline)
		m.pipeline = nil
	}
	return m.buildPipeline()
}

// resetDescriptorSets rewrites the existing descriptor sets in place, so
// they pick up recreated pass textures. Nothing is reallocated. The device
// must be idle.
func (m *Material) resetDescriptorSets() error {
	for _, inst := range m.instances {
		for s := range inst.stages {
			if err := m.writeDescriptorSets(s, &inst.stages[s]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Material) Name() string {
	return m.settings.Name
}

func (m *Material) Settings() metadata.MaterialSettings {
	return m.settings
}

func (m *Material) PassType() metadata.CommandsType {
	return m.settings.PassType
}

func (m *Material) Pipeline() *metadata.Pipeline {
	return m.pipeline
}

func (m *Material) VertexInfo() metadata.VertexInfo {
	return m.shaders[0].Settings.VertexInfo
}

// IsSkeletal reports whether the vertex stage consumes bone data.
func (m *Material) IsSkeletal() bool {
	vs := m.shaders[0]
	if _, ok := vs.Field(metadata.UniformBoneMatrices); ok {
		return true
	}
	return vs.Settings.VertexInfo.Has(metadata.VertexBoneWeights)
}

func (m *Material) InstanceCount() int {
	return len(m.instances)
}

func (m *Material) SwapchainSize() uint32 {
	return m.swapchainSize
}

// InstanceCopies returns, for each stage of instance index, how many uniform
// buffers and descriptor sets it owns.
func (m *Material) InstanceCopies(index int) (buffers []int, sets []int) {
	if index < 0 || index >= len(m.instances) {
		return nil, nil
	}
	for _, st := range m.instances[index].stages {
		buffers = append(buffers, len(st.buffers))
		sets = append(sets, len(st.sets))
	}
	return buffers, sets
}

func (m *Material) Stats() MaterialStats {
	return m.stats
}

// Destroy releases instances, then the pipeline, then layouts and textures.
func (m *Material) Destroy() {
	for i := len(m.instances) - 1; i >= 0; i-- {
		m.instances[i].release.Release()
	}
	m.instances = nil
	m.entities = make(map[instanceKey]int)
	if m.pipeline != nil {
		m.backend.PipelineDestroy(m.pipeline)
		m.pipeline = nil
	}
	m.release.Release()
}
