package renderer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func TestInstanceCopiesMatchSwapchain(t *testing.T) {
	for _, size := range []uint32{2, 3, 4} {
		config := headless.DefaultConfig()
		config.SwapchainSize = size
		r, backend := newTestRenderer(t, config)
		scene := newTestScene(t, r, 3)

		assert.Equal(t, 3, scene.material.InstanceCount())
		for _, index := range scene.instances {
			buffers, sets := scene.material.InstanceCopies(index)
			assert.Equal(t, []int{int(size), int(size)}, buffers)
			assert.Equal(t, []int{int(size), int(size)}, sets)
		}
		// one allocation per stage and instance
		assert.Equal(t, 6, scene.material.Stats().DescriptorSetAllocations)
		assert.Equal(t, 6*int(size), backend.Stats().DescriptorSetsAllocated)
	}
}

func TestGetInstanceForEntityIsIdempotent(t *testing.T) {
	r, _ := newTestRenderer(t, headless.DefaultConfig())
	registerDefaultShaders(t, r)
	m, err := r.Materials.Register(defaultMaterial("wall"))
	require.NoError(t, err)

	player := core.NewEntityID()
	enemy := core.NewEntityID()

	first, err := m.GetInstanceForEntity(player, renderer.VariantMain)
	require.NoError(t, err)
	again, err := m.GetInstanceForEntity(player, renderer.VariantMain)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	reflection, err := m.GetInstanceForEntity(player, renderer.VariantReflection)
	require.NoError(t, err)
	other, err := m.GetInstanceForEntity(enemy, renderer.VariantMain)
	require.NoError(t, err)

	assert.NotEqual(t, first, reflection)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 3, m.InstanceCount())
	assert.Equal(t, 6, m.Stats().DescriptorSetAllocations)
}

func TestMaterialRegistration(t *testing.T) {
	r, _ := newTestRenderer(t, headless.DefaultConfig())
	registerDefaultShaders(t, r)

	m, err := r.Materials.Register(defaultMaterial("wall"))
	require.NoError(t, err)
	assert.Equal(t, metadata.MainPass, m.PassType())
	assert.Equal(t, 1, m.Stats().PipelineBuilds)
	assert.False(t, m.IsSkeletal())
	assert.Equal(t, uint32(32), m.VertexInfo().Stride())

	_, err = r.Materials.Register(defaultMaterial("wall"))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)

	dup, err := r.Materials.Duplicate("wall", "wall_vulnerable")
	require.NoError(t, err)
	assert.Equal(t, "wall_vulnerable", dup.Name())
	assert.Equal(t, []string{"wall", "wall_vulnerable"}, r.Materials.Names())

	missing, err := r.Materials.Get("floor", true)
	assert.NoError(t, err)
	assert.Nil(t, missing)
	_, err = r.Materials.Get("floor", false)
	assert.ErrorIs(t, err, core.ErrFatal)
}

func TestMaterialCreationFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(b *headless.Backend, s *metadata.MaterialSettings)
		message string
	}{
		{
			name: "missing shader",
			prepare: func(b *headless.Backend, s *metadata.MaterialSettings) {
				s.FragmentShaderName = "missing_fs"
			},
			message: "can't find shader missing_fs",
		},
		{
			name: "incorrect sampler name",
			prepare: func(b *headless.Backend, s *metadata.MaterialSettings) {
				s.Textures[0].SamplerName = "albedoSampler"
			},
			message: "incorrect sampler name",
		},
		{
			name: "unreadable texture",
			prepare: func(b *headless.Backend, s *metadata.MaterialSettings) {
				s.Textures[0].Filename = ""
			},
			message: "can't load texture",
		},
		{
			name: "pipeline creation",
			prepare: func(b *headless.Backend, s *metadata.MaterialSettings) {
				b.FailNext(headless.OpPipelineCreate)
			},
			message: "failed to create pipeline",
		},
		{
			name: "texture creation",
			prepare: func(b *headless.Backend, s *metadata.MaterialSettings) {
				b.FailNext(headless.OpTextureCreate)
			},
			message: "failed to create texture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, backend := newTestRenderer(t, headless.DefaultConfig())
			registerDefaultShaders(t, r)
			live := backend.LiveObjects()

			settings := defaultMaterial("wall")
			tt.prepare(backend, &settings)
			_, err := r.Materials.Register(settings)

			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrFatal))
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, live, backend.LiveObjects(), "partially built material leaked objects")
			assert.Equal(t, 0, r.Materials.Count())
		})
	}
}

func TestInstanceCreationFailureReleasesEverything(t *testing.T) {
	r, backend := newTestRenderer(t, headless.DefaultConfig())
	registerDefaultShaders(t, r)
	m, err := r.Materials.Register(defaultMaterial("wall"))
	require.NoError(t, err)
	live := backend.LiveObjects()

	backend.FailNext(headless.OpDescriptorSetsAllocate)
	_, err = m.GetInstanceForEntity(core.NewEntityID(), renderer.VariantMain)
	assert.ErrorIs(t, err, core.ErrFatal)
	assert.Equal(t, live, backend.LiveObjects())
	assert.Equal(t, 0, m.InstanceCount())
}

func TestResetPipelineAndDescriptors(t *testing.T) {
	r, backend := newTestRenderer(t, headless.DefaultConfig())
	scene := newTestScene(t, r, 2)
	before := backend.Stats()

	require.NoError(t, r.Materials.ResetPipelines())
	require.NoError(t, r.Materials.ResetDescriptors())

	after := backend.Stats()
	assert.Equal(t, before.PipelinesCreated+1, after.PipelinesCreated)
	assert.Equal(t, before.PipelinesDestroyed+1, after.PipelinesDestroyed)
	assert.Equal(t, before.DescriptorSetsAllocated, after.DescriptorSetsAllocated)
	// 2 instances, 2 stages, 3 images
	assert.Equal(t, before.DescriptorSetUpdates+12, after.DescriptorSetUpdates)
	assert.Equal(t, 2, scene.material.Stats().PipelineBuilds)
}

func TestResetWaitsForFramesInFlight(t *testing.T) {
	r, backend := newTestRenderer(t, manualConfig())
	scene := newTestScene(t, r, 2)
	for i := uint32(0); i < renderer.MaxFramesInFlight; i++ {
		require.NoError(t, r.DrawFrame(context.Background(), scene))
	}
	require.Equal(t, int(renderer.MaxFramesInFlight), backend.PendingFrames())

	require.NoError(t, r.Materials.ResetPipelines())
	assert.Zero(t, backend.PendingFrames())
	assert.Zero(t, backend.Stats().PipelineDestroyViolations)
	assert.Equal(t, 1, backend.Stats().PipelinesDestroyed)

	require.NoError(t, r.DrawFrame(context.Background(), scene))
	require.NoError(t, r.Materials.ResetDescriptors())
	assert.Zero(t, backend.PendingFrames())
	assert.Zero(t, backend.Stats().HazardViolations)
}

func TestSwapchainFormatChangeRebuildsPipelines(t *testing.T) {
	r, backend := newTestRenderer(t, headless.DefaultConfig())
	scene := newTestScene(t, r, 1)
	before := backend.Stats()

	require.NoError(t, r.Resize(1024, 768))
	assert.Equal(t, before.PipelinesCreated, backend.Stats().PipelinesCreated)

	backend.SetSwapchainFormat(50)
	require.NoError(t, r.Resize(800, 600))
	after := backend.Stats()
	assert.Equal(t, uint32(50), backend.SwapchainFormat())
	assert.Equal(t, before.PipelinesCreated+1, after.PipelinesCreated)
	assert.Equal(t, before.DescriptorSetsAllocated, after.DescriptorSetsAllocated)
	assert.Zero(t, after.PipelineDestroyViolations)
	assert.Equal(t, 2, scene.material.Stats().PipelineBuilds)

	require.NoError(t, r.DrawFrame(context.Background(), scene))
}

func TestSetUniformDataBounds(t *testing.T) {
	r, backend := newTestRenderer(t, headless.DefaultConfig())
	scene := newTestScene(t, r, 1)

	require.NoError(t, scene.material.SetUniformData(0, scene.data, 2))
	assert.Equal(t, 2, backend.Stats().BufferWrites)

	assert.Error(t, scene.material.SetUniformData(0, scene.data, 3))
	assert.Error(t, scene.material.SetUniformData(1, scene.data, 0))
}

func TestShutdownReleasesEverything(t *testing.T) {
	backend := headless.New(headless.DefaultConfig())
	r, err := renderer.New(backend, &memoryTextures{}, saveStore(t.TempDir()))
	require.NoError(t, err)
	scene := newTestScene(t, r, 4)
	scene.passes = []metadata.CommandsType{metadata.ShadowPassDirectLight, metadata.ReflectionPass}

	mesh := &metadata.MeshData{
		Name: "cube",
		Parts: []metadata.MeshPart{{
			Positions: make([]mgl32.Vec3, 3),
			Indices:   []uint32{0, 1, 2},
		}},
	}
	require.NoError(t, r.Meshes.Register(mesh))
	_, err = r.Meshes.Get("cube", scene.material.VertexInfo())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.DrawFrame(context.Background(), scene))
	}
	require.NoError(t, r.Shutdown())
	assert.Equal(t, 0, backend.LiveObjects())
}
