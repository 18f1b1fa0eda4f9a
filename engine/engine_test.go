package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine"
	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/scene"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

const sunLight = `
name = "sun"
lightType = "SunLight"
lightColor = [1.0, 1.0, 1.0]
`

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"resources/main.engine": {Data: []byte(`
applicationName = "Chewman test"
backend = "headless"
initShadows = false
initWater = false
logLevel = "warn"
`)},
		"resources/shaders/mesh_vs.shader": {Data: []byte(`
name = "mesh_vs"
filename = "mesh_vs.spv"
shaderType = "VertexShader"
uniformList = [{uniformType = "ModelViewProjectionMatrix"}]

[vertexInfo]
vertexDataFlags = ["Position", "Normal"]
`)},
		"resources/shaders/mesh_vs.spv": {Data: spirv},
		"resources/shaders/mesh_fs.shader": {Data: []byte(`
name = "mesh_fs"
filename = "mesh_fs.spv"
shaderType = "FragmentShader"
uniformList = [{uniformType = "MaterialInfo"}]
`)},
		"resources/shaders/mesh_fs.spv": {Data: spirv},
		"resources/materials/wall.material": {Data: []byte(`
name = "wall"
vertexShaderName = "mesh_vs"
fragmentShaderName = "mesh_fs"
`)},
		"resources/lights/sun.light": {Data: []byte(sunLight)},
	}
}

func block() *metadata.MeshData {
	return &metadata.MeshData{
		Name: "block",
		Parts: []metadata.MeshPart{{
			Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Indices:   []uint32{0, 1, 2},
		}},
	}
}

func newEngine(t *testing.T, files fstest.MapFS, game *engine.Game, opts ...engine.Option) *engine.Engine {
	t.Helper()
	config := engine.DefaultApplicationConfig()
	config.SavePath = t.TempDir()
	opts = append([]engine.Option{engine.WithFileSystem(assets.NewMemoryFS(files, config.SavePath))}, opts...)
	e, err := engine.New(config, game, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	return e
}

func quit(e *engine.Engine) {
	e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
}

func TestEngineRunsHeadless(t *testing.T) {
	var initialized, updates int
	var resizes [][2]uint32
	game := &engine.Game{
		FnInitialize: func(e *engine.Engine) error {
			initialized++
			if err := e.Renderer().Meshes.Register(block()); err != nil {
				return err
			}
			entity, err := scene.NewMeshEntity(e.Scene(), "block", "wall")
			if err != nil {
				return err
			}
			node := scene.NewSceneNode("block")
			node.AttachEntity(entity)
			e.Scene().Root().AttachSceneNode(node)
			return nil
		},
		FnUpdate: func(e *engine.Engine, deltaTime float32) error {
			updates++
			if updates == 3 {
				quit(e)
			}
			return nil
		},
		FnOnResize: func(width, height uint32) error {
			resizes = append(resizes, [2]uint32{width, height})
			return nil
		},
	}
	e := newEngine(t, testFiles(), game)
	assert.Equal(t, engine.EngineStageInitialized, e.Stage())
	assert.Equal(t, "Chewman test", e.Settings().ApplicationName)

	var progress []float32
	e.Events().Register(core.EVENT_CODE_LOADING_PROGRESS, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		progress = append(progress, data.Data.F32[0])
		return false
	})

	backend, ok := e.Renderer().Backend.(*headless.Backend)
	require.True(t, ok)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, initialized)
	assert.Equal(t, 3, updates)
	assert.Equal(t, [][2]uint32{{1280, 720}}, resizes)

	require.NotEmpty(t, progress)
	assert.Equal(t, float32(1), progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}

	light, err := e.Scene().Lights.Get("sun")
	require.NoError(t, err)
	assert.Equal(t, metadata.SunLight, light.Settings.LightType)
	assert.Equal(t, 2, e.Renderer().Shaders.Count())

	// one draw per frame once the scene is up
	assert.Equal(t, 3, backend.Stats().DrawCalls)
	assert.GreaterOrEqual(t, e.Metrics().TotalFrames, uint64(3))

	require.NoError(t, e.Shutdown())
	assert.Equal(t, engine.EngineStageShutdown, e.Stage())
	assert.Zero(t, backend.LiveObjects())
	require.NoError(t, e.Shutdown())
}

func TestEngineRunTwice(t *testing.T) {
	e := newEngine(t, testFiles(), nil, engine.WithFrameLimit(1))
	require.NoError(t, e.Run(context.Background()))
	assert.Error(t, e.Run(context.Background()))
}

func TestEngineEscapeQuits(t *testing.T) {
	updates := 0
	game := &engine.Game{
		FnUpdate: func(e *engine.Engine, deltaTime float32) error {
			updates++
			var ctx core.EventContext
			ctx.Data.U16[0] = 256
			e.Events().Fire(core.EVENT_CODE_KEY_PRESSED, nil, ctx)
			return nil
		},
	}
	e := newEngine(t, testFiles(), game)
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, updates)
}

func TestEngineResize(t *testing.T) {
	updates := 0
	var resizes [][2]uint32
	game := &engine.Game{
		FnUpdate: func(e *engine.Engine, deltaTime float32) error {
			updates++
			switch updates {
			case 1:
				var ctx core.EventContext
				ctx.Data.U32[0], ctx.Data.U32[1] = 800, 600
				e.Events().Fire(core.EVENT_CODE_RESIZED, nil, ctx)
			case 3:
				quit(e)
			}
			return nil
		},
		FnOnResize: func(width, height uint32) error {
			resizes = append(resizes, [2]uint32{width, height})
			return nil
		},
	}
	e := newEngine(t, testFiles(), game)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, [][2]uint32{{1280, 720}, {800, 600}}, resizes)
	width, height := e.GetFramebufferSize()
	assert.Equal(t, uint32(800), width)
	assert.Equal(t, uint32(600), height)
	bw, bh := e.Renderer().Backend.Extent()
	assert.Equal(t, uint32(800), bw)
	assert.Equal(t, uint32(600), bh)
}

func TestEngineOptions(t *testing.T) {
	e := newEngine(t, testFiles(), nil,
		engine.WithSettings(func(s *core.EngineSettings) { s.SwapchainSize = 2 }),
		engine.WithMaxMaterialQuality(metadata.QualityLow),
	)
	assert.Equal(t, uint32(2), e.Renderer().Backend.SwapchainImageCount())
	assert.Equal(t, metadata.QualityLow, e.Resources().MaxMaterialLoadQuality())
}

func TestEngineFatalErrors(t *testing.T) {
	t.Run("settings", func(t *testing.T) {
		files := testFiles()
		files["resources/main.engine"] = &fstest.MapFile{Data: []byte(`backend = "metal"`)}
		config := engine.DefaultApplicationConfig()
		config.SavePath = t.TempDir()
		_, err := engine.New(config, nil, engine.WithFileSystem(assets.NewMemoryFS(files, config.SavePath)))
		assert.ErrorIs(t, err, core.ErrFatal)
	})

	t.Run("resources", func(t *testing.T) {
		files := testFiles()
		files["resources/materials/broken.material"] = &fstest.MapFile{Data: []byte(`name = `)}
		e := newEngine(t, files, nil)
		err := e.Run(context.Background())
		assert.ErrorIs(t, err, core.ErrFatal)
		assert.ErrorContains(t, err, "broken.material")
	})

	t.Run("initialize", func(t *testing.T) {
		game := &engine.Game{
			FnInitialize: func(e *engine.Engine) error {
				_, err := scene.NewMeshEntity(e.Scene(), "missing", "wall")
				return err
			},
		}
		e := newEngine(t, testFiles(), game)
		assert.ErrorIs(t, e.Run(context.Background()), core.ErrFatal)
	})
}

func TestEngineReloadsLights(t *testing.T) {
	root := t.TempDir()
	for name, file := range testFiles() {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, file.Data, 0o644))
	}

	config := engine.DefaultApplicationConfig()
	config.AssetRoot = root
	config.SavePath = t.TempDir()
	config.WatchResources = true

	deadline := time.Now().Add(10 * time.Second)
	written := false
	game := &engine.Game{
		FnUpdate: func(e *engine.Engine, deltaTime float32) error {
			if !written {
				written = true
				return os.WriteFile(filepath.Join(root, "resources", "lights", "sun.light"),
					[]byte(sunLight+"castShadows = false\n"), 0o644)
			}
			light, err := e.Scene().Lights.Get("sun")
			if err != nil {
				return err
			}
			if !light.Settings.CastShadows || time.Now().After(deadline) {
				quit(e)
			}
			return nil
		},
	}
	e, err := engine.New(config, game)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	require.NoError(t, e.Run(context.Background()))
	light, err := e.Scene().Lights.Get("sun")
	require.NoError(t, err)
	assert.False(t, light.Settings.CastShadows)
}
