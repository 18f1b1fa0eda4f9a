package game

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine"
	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/scene"
)

var spirv = []byte{0x03, 0x02, 0x23, 0x07}

func material(name string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(`
name = "` + name + `"
vertexShaderName = "mesh_vs"
fragmentShaderName = "mesh_fs"
`)}
}

func gameFiles() fstest.MapFS {
	return fstest.MapFS{
		"resources/main.engine": {Data: []byte(`
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
		"resources/shaders/mesh_fs.spv":           {Data: spirv},
		"resources/materials/nun.material":        material("Nun"),
		"resources/materials/vulnerable.material": material("NunVulnerable"),
	}
}

func TestChewmanRunsHeadless(t *testing.T) {
	config := engine.DefaultApplicationConfig()
	config.SavePath = t.TempDir()
	fs := assets.NewMemoryFS(gameFiles(), config.SavePath)

	base := testConfig()
	angel, witch := base, base
	angel.Type = EnemyTypeAngel
	witch.Type = EnemyTypeWitch

	chewman := NewChewman(NewGraphicsManager(config.SavePath), base, angel, witch)
	chewman.SetTeleportTargets([]mgl32.Vec2{{5, 5}})
	initialize := chewman.FnInitialize
	chewman.FnInitialize = func(e *engine.Engine) error {
		err := e.Renderer().Meshes.Register(&metadata.MeshData{
			Name: "nun",
			Parts: []metadata.MeshPart{{
				Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
				Indices:   []uint32{0, 1, 2},
			}},
		})
		if err != nil {
			return err
		}
		return initialize(e)
	}

	updates := 0
	update := chewman.FnUpdate
	chewman.FnUpdate = func(e *engine.Engine, deltaTime float32) error {
		updates++
		switch updates {
		case 1:
			var key core.EventContext
			key.Data.U16[0] = keyW
			e.Events().Fire(core.EVENT_CODE_KEY_PRESSED, nil, key)
		case 5:
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		return update(e, deltaTime)
	}

	e, err := engine.New(config, chewman.Game, engine.WithFileSystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	require.NoError(t, e.Run(context.Background()))

	enemies := chewman.Enemies()
	require.Len(t, enemies, 3)
	assert.Equal(t, EnemyTypeNun, enemies[0].Type())
	assert.Equal(t, EnemyTypeAngel, enemies[1].Type())
	assert.Equal(t, EnemyTypeWitch, enemies[2].Type())
	assert.Greater(t, enemies[1].GetHeight(), float32(0))

	camera := e.Scene().MainCamera()
	assert.NotEqual(t, defaultCameraPosition, camera.Position())

	state := chewman.state()
	assert.Equal(t, uint32(1280), state.width)
	assert.Equal(t, uint32(720), state.height)

	require.NoError(t, enemies[0].IncreaseState(EnemyStateVulnerable))
	entity, ok := enemies[0].(*DefaultEnemy).mesh.(*scene.MeshEntity)
	require.True(t, ok)
	assert.Equal(t, "NunVulnerable", entity.Material().Name())
	require.NoError(t, enemies[2].IncreaseState(EnemyStateDead))
	assert.Len(t, state.mapNode.Children(), 2)

	require.NoError(t, e.Shutdown())
	_, err = os.Stat(filepath.Join(config.SavePath, graphicsSettingsFile))
	assert.NoError(t, err)
}

func TestChewmanUnknownEnemy(t *testing.T) {
	config := engine.DefaultApplicationConfig()
	config.SavePath = t.TempDir()
	spawn := testConfig()
	spawn.Type = EnemyType(42)
	chewman := NewChewman(nil, spawn)

	e, err := engine.New(config, chewman.Game, engine.WithFileSystem(assets.NewMemoryFS(gameFiles(), config.SavePath)))
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	assert.ErrorContains(t, e.Run(context.Background()), "unknown enemy type 42")
}
