package renderer_test

import (
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

var _ renderer.RendererBackend = (*headless.Backend)(nil)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

type memoryTextures struct {
	loaded []string
}

func (m *memoryTextures) LoadImage(filename string) (*metadata.ImageData, error) {
	if filename == "" {
		return nil, fmt.Errorf("empty filename: %w", core.ErrNotFound)
	}
	m.loaded = append(m.loaded, filename)
	return &metadata.ImageData{Width: 2, Height: 2, Pixels: make([]byte, 2*2*4)}, nil
}

func saveStore(dir string) *assets.FS {
	return assets.NewMemoryFS(fstest.MapFS{}, dir)
}

func newTestRenderer(t *testing.T, config headless.Config) (*renderer.Renderer, *headless.Backend) {
	t.Helper()
	backend := headless.New(config)
	r, err := renderer.New(backend, &memoryTextures{}, saveStore(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { r.Shutdown() })
	return r, backend
}

func manualConfig() headless.Config {
	config := headless.DefaultConfig()
	config.AutoComplete = false
	return config
}

func registerDefaultShaders(t *testing.T, r *renderer.Renderer) {
	t.Helper()
	vs := metadata.DefaultShaderSettings()
	vs.Name = "default_vs"
	vs.ShaderType = metadata.VertexShader
	vs.UniformList = []metadata.UniformDescription{
		{UniformType: metadata.UniformModelViewProjectionMatrix},
		{UniformType: metadata.UniformModelMatrix},
	}
	vs.VertexInfo.VertexDataFlags = []metadata.VertexDataFlag{
		metadata.VertexPosition, metadata.VertexTexCoord, metadata.VertexNormal,
	}
	_, err := r.Shaders.Register(vs, spirv)
	require.NoError(t, err)

	fs := metadata.DefaultShaderSettings()
	fs.Name = "default_fs"
	fs.ShaderType = metadata.FragmentShader
	fs.UniformList = []metadata.UniformDescription{{UniformType: metadata.UniformMaterialInfo}}
	fs.SamplerNamesList = []string{"diffuseSampler", "shadowSampler"}
	_, err = r.Shaders.Register(fs, spirv)
	require.NoError(t, err)
}

func defaultMaterial(name string) metadata.MaterialSettings {
	settings := metadata.DefaultMaterialSettings()
	settings.Name = name
	settings.VertexShaderName = "default_vs"
	settings.FragmentShaderName = "default_fs"

	diffuse := metadata.DefaultTextureInfo()
	diffuse.SamplerName = "diffuseSampler"
	diffuse.Filename = "textures/wall.png"

	shadow := metadata.DefaultTextureInfo()
	shadow.TextureType = metadata.TextureShadowMapDirect
	shadow.SamplerName = "shadowSampler"

	settings.Textures = []metadata.TextureInfo{diffuse, shadow}
	return settings
}

// testScene draws every instance of one material in the main pass and
// records empty offscreen passes.
type testScene struct {
	material  *renderer.Material
	instances []int
	passes    []metadata.CommandsType
	data      *renderer.UniformData
}

func newTestScene(t *testing.T, r *renderer.Renderer, entities int) *testScene {
	t.Helper()
	registerDefaultShaders(t, r)
	m, err := r.Materials.Register(defaultMaterial("wall"))
	require.NoError(t, err)
	s := &testScene{material: m, data: renderer.NewUniformData()}
	for i := 0; i < entities; i++ {
		index, err := m.GetInstanceForEntity(core.NewEntityID(), renderer.VariantMain)
		require.NoError(t, err)
		s.instances = append(s.instances, index)
	}
	return s
}

func (s *testScene) UpdateUniforms(imageIndex uint32) error {
	for _, index := range s.instances {
		if err := s.material.SetUniformData(index, s.data, imageIndex); err != nil {
			return err
		}
	}
	return nil
}

func (s *testScene) RecordPasses(frames *renderer.FrameSubmitter) error {
	for _, pass := range s.passes {
		index := metadata.DefaultBufferIndex(pass)
		if err := frames.Record(pass, index, func(cb *metadata.CommandBuffer) error { return nil }); err != nil {
			return err
		}
		if err := frames.SubmitCommands(pass, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *testScene) RecordMainPass(cb *metadata.CommandBuffer, imageIndex uint32) error {
	for _, index := range s.instances {
		if err := s.material.ApplyDrawingCommands(cb, index, imageIndex); err != nil {
			return err
		}
	}
	return nil
}
