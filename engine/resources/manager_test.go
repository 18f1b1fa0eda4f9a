package resources_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/resources"
)

type recordingRegistry struct {
	calls     []string
	shaders   []metadata.ShaderSettings
	materials []metadata.MaterialSettings
	lights    []metadata.LightSettings
	meshes    []*metadata.MeshData
	particles []metadata.ParticleSystemSettings
	fonts     []metadata.FontSettings
	fail      string
}

func (r *recordingRegistry) record(kind, name string) error {
	r.calls = append(r.calls, kind+":"+name)
	if r.fail == kind+":"+name {
		return core.Fatalf("can't register %s", name)
	}
	return nil
}

func (r *recordingRegistry) RegisterShader(s metadata.ShaderSettings, code []byte) error {
	r.shaders = append(r.shaders, s)
	return r.record("shader", s.Name)
}

func (r *recordingRegistry) RegisterLight(s metadata.LightSettings) error {
	r.lights = append(r.lights, s)
	return r.record("light", s.Name)
}

func (r *recordingRegistry) RegisterMaterial(s metadata.MaterialSettings) error {
	r.materials = append(r.materials, s)
	return r.record("material", s.Name)
}

func (r *recordingRegistry) RegisterMesh(m *metadata.MeshData) error {
	r.meshes = append(r.meshes, m)
	return r.record("mesh", m.Name)
}

func (r *recordingRegistry) RegisterParticleSystem(s metadata.ParticleSystemSettings) error {
	r.particles = append(r.particles, s)
	return r.record("particle", s.Name)
}

func (r *recordingRegistry) RegisterFont(s metadata.FontSettings) error {
	r.fonts = append(r.fonts, s)
	return r.record("font", s.Name)
}

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func triangleGLB(t *testing.T) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	positions := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	indices := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "enemy",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indices),
			Attributes: gltf.PrimitiveAttributes{"POSITION": positions},
		}},
	}}
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

func testFiles(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"resources/main.engine": {Data: []byte(`
applicationName = "Chewman"
gpuIndex = "best"
MSAALevel = 4
`)},
		"resources/shaders/default_vs.shader": {Data: []byte(`
name = "default_vs"
filename = "default_vs.spv"
shaderType = "VertexShader"
uniformList = [{uniformType = "ModelViewProjectionMatrix"}, {uniformType = "CustomVec4", uniformIndex = 2}]

[vertexInfo]
vertexDataFlags = ["Position", "TexCoord", "Normal"]
`)},
		"resources/shaders/default_vs.spv": {Data: spirv},
		"resources/shaders/default_fs.shader": {Data: []byte(`
name = "default_fs"
filename = "default_fs.spv"
shaderType = "FragmentShader"
samplerNamesList = ["diffuseSampler"]
`)},
		"resources/shaders/default_fs.spv": {Data: spirv},
		"resources/materials/wall.material": {Data: []byte(`
name = "wall"
vertexShaderName = "default_vs"
fragmentShaderName = "default_fs"
cullFace = "BackFace"
passType = "MainPass"

[[textures]]
samplerName = "diffuseSampler"
filename = "../textures/wall.png"

[[textures]]
textureType = "ShadowMapDirect"
samplerName = "shadowSampler"
layers = 4
`)},
		"resources/materials/water.material": {Data: []byte(`
name = "water"
vertexShaderName = "default_vs"
fragmentShaderName = "default_fs"
loadQuality = "High"
`)},
		"resources/lights/sun.light": {Data: []byte(`
name = "sun"
lightType = "SunLight"
lightColor = [1.0, 0.9, 0.8]
shininess = 16.0
ambientStrength = [0.2, 0.2, 0.2, 1.0]
`)},
		"resources/meshes/enemy.mesh": {Data: []byte(`
name = "enemy"
filename = "enemy.glb"
scale = [2.0, 2.0, 2.0]
`)},
		"resources/meshes/enemy.glb": {Data: triangleGLB(t)},
		"resources/particles/fire.particle": {Data: []byte(`
name = "fire"
materialName = "fire_particle"
quota = 100

[particleEmitter]
direction = [0.0, 1.0, 0.0]
`)},
		"resources/fonts/main.font": {Data: []byte(`
name = "main"
material = "font_material"
width = 256
height = 256
size = 32

[characters]
"A" = {x = 0, y = 0, width = 10, height = 20, originX = 0, originY = 18, advance = 11}
"é" = {x = 10, y = 0, width = 10, height = 24, originX = 0, originY = 22, advance = 11}
`)},
		"resources/README.txt": {Data: []byte("not a resource")},
	}
}

func newManager(t *testing.T, files fstest.MapFS) (*resources.ResourceManager, *recordingRegistry) {
	t.Helper()
	registry := &recordingRegistry{}
	return resources.NewResourceManager(assets.NewMemoryFS(files, t.TempDir()), registry), registry
}

func TestLoadFolderRegistersInOrder(t *testing.T) {
	rm, registry := newManager(t, testFiles(t))
	rm.SetMaxMaterialLoadQuality(metadata.QualityMedium)

	var progress []float32
	require.NoError(t, rm.LoadFolder("resources", func(p float32) { progress = append(progress, p) }))

	assert.Equal(t, []string{
		"shader:default_fs",
		"shader:default_vs",
		"light:sun",
		"material:wall",
		"mesh:enemy",
		"particle:fire",
		"font:main",
	}, registry.calls)
	// the skipped water material still counts
	require.Len(t, progress, 9)
	assert.Equal(t, float32(0), progress[0])
	assert.Equal(t, float32(1), progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.Equal(t, []string{"resources"}, rm.FolderList())
}

func TestParsedSettings(t *testing.T) {
	rm, _ := newManager(t, testFiles(t))
	data, err := rm.GetLoadDataFromFolder("resources")
	require.NoError(t, err)

	require.Len(t, data.Engine, 1)
	assert.Equal(t, core.BestIndex, data.Engine[0].GPUIndex)
	assert.Equal(t, 4, data.Engine[0].MSAALevel)

	require.Len(t, data.Shaders, 2)
	vs := data.Shaders[1]
	assert.Equal(t, "resources/shaders/default_vs.spv", vs.Settings.Filename)
	assert.Equal(t, metadata.VertexShader, vs.Settings.ShaderType)
	assert.Equal(t, "main", vs.Settings.EntryPoint)
	assert.Equal(t, spirv, vs.Code)
	assert.Equal(t, []metadata.UniformDescription{
		{UniformType: metadata.UniformModelViewProjectionMatrix},
		{UniformType: metadata.UniformCustomVec4, UniformIndex: 2},
	}, vs.Settings.UniformList)
	assert.True(t, vs.Settings.VertexInfo.Has(metadata.VertexNormal))

	require.Len(t, data.Materials, 2)
	wall, water := data.Materials[0], data.Materials[1]
	assert.Equal(t, metadata.QualityHigh, water.LoadQuality)
	assert.Equal(t, metadata.CullBackFace, wall.CullFace)
	assert.True(t, wall.UseDepthTest, "defaults survive")
	require.Len(t, wall.Textures, 2)
	assert.Equal(t, "resources/textures/wall.png", wall.Textures[0].Filename)
	assert.Equal(t, uint32(1), wall.Textures[0].Layers)
	assert.Equal(t, metadata.TextureShadowMapDirect, wall.Textures[1].TextureType)
	assert.Equal(t, uint32(4), wall.Textures[1].Layers)

	require.Len(t, data.Lights, 1)
	assert.Equal(t, metadata.SunLight, data.Lights[0].LightType)
	assert.True(t, data.Lights[0].CastShadows, "defaults survive")

	require.Len(t, data.Meshes, 1)
	assert.Equal(t, "resources/meshes/enemy.glb", data.Meshes[0].Settings.Filename)
	assert.Equal(t, 3, data.Meshes[0].Data.VertexCount())

	require.Len(t, data.Particles, 1)
	assert.InDelta(t, 1, data.Particles[0].ParticleEmitter.ToDirection.Mul4x1([4]float32{0, 0, 1, 0})[1], 1e-5)

	require.Len(t, data.Fonts, 1)
	font := data.Fonts[0]
	assert.Len(t, font.Symbols, 2)
	assert.Equal(t, int32(22), font.Symbols['é'].OriginY)
	assert.Equal(t, int32(22), font.MaxHeight)
	assert.Equal(t, int32(24), font.MaxGlyphHeight)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		message string
	}{
		{"unknown enum", "bad/wall.material", "name = 'wall'\ncullFace = 'Sideways'", "can't load resource file bad/wall.material"},
		{"broken toml", "bad/sun.light", "lightType = ", "can't load resource file bad/sun.light"},
		{"missing binary", "bad/vs.shader", "name = 'vs'\nfilename = 'vs.spv'", "vs.spv"},
		{"missing name", "bad/fire.particle", "quota = 1", "particle system without name"},
		{"descriptor in memory", "bad/main.font", "name = 'main'\ndescriptor = 'main.fnt'", "needs a file system on disk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm, registry := newManager(t, fstest.MapFS{tt.file: {Data: []byte(tt.content)}})
			err := rm.LoadFolder("bad", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrFatal)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, registry.calls)
		})
	}

	rm, _ := newManager(t, fstest.MapFS{})
	_, err := rm.GetLoadDataFromFolder("resources")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistrationErrorStopsLoading(t *testing.T) {
	rm, registry := newManager(t, testFiles(t))
	registry.fail = "light:sun"
	err := rm.LoadFolder("resources", nil)
	assert.ErrorIs(t, err, core.ErrFatal)
	assert.Equal(t, "light:sun", registry.calls[len(registry.calls)-1])
}

func TestLoadSingleFile(t *testing.T) {
	rm, registry := newManager(t, testFiles(t))
	require.NoError(t, rm.LoadFolder("resources/lights/sun.light", nil))
	assert.Equal(t, []string{"light:sun"}, registry.calls)
}

func TestLoadAsync(t *testing.T) {
	files := testFiles(t)
	files["levels/level1/floor.light"] = &fstest.MapFile{Data: []byte("name = 'floor'\nlightType = 'PointLight'")}
	rm, registry := newManager(t, files)

	future := rm.LoadAsync(context.Background(), "resources", "levels/level1")
	data, err := future.Wait()
	require.NoError(t, err)
	assert.True(t, future.Done())
	assert.Equal(t, float32(1), future.Progress())
	assert.Empty(t, registry.calls, "parsing never registers")

	require.Len(t, data.Lights, 2)
	assert.Equal(t, "sun", data.Lights[0].Name)
	assert.Equal(t, "floor", data.Lights[1].Name)

	require.NoError(t, rm.InitializeResources(data, nil))
	assert.Len(t, registry.calls, 9)
	assert.Equal(t, []string{"resources", "levels/level1"}, rm.FolderList())

	future = rm.LoadAsync(context.Background(), "resources", "missing")
	_, err = future.Wait()
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReloadLight(t *testing.T) {
	rm, _ := newManager(t, testFiles(t))
	light, err := rm.ReloadLight("resources/lights/sun.light")
	require.NoError(t, err)
	assert.Equal(t, metadata.SunLight, light.LightType)

	_, err = rm.ReloadLight("resources/materials/wall.material")
	assert.ErrorIs(t, err, core.ErrUnsupportedResource)
}

func TestResourceTypeOf(t *testing.T) {
	for file, want := range map[string]resources.ResourceType{
		"a/b.shader":   resources.ResourceTypeShader,
		"a/b.MATERIAL": resources.ResourceTypeMaterial,
		"main.engine":  resources.ResourceTypeEngine,
		"x.particle":   resources.ResourceTypeParticleSystem,
		"x.spv":        resources.ResourceTypeNone,
		"no_extension": resources.ResourceTypeNone,
	} {
		assert.Equal(t, want, resources.ResourceTypeOf(file), fmt.Sprintf("file %s", file))
	}
}
