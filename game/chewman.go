package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/scene"
)

// GLFW key codes used by the game.
const (
	keyA     = 65
	keyD     = 68
	keyE     = 69
	keyP     = 80
	keyQ     = 81
	keyS     = 83
	keyW     = 87
	keyRight = 262
	keyLeft  = 263
	keyDown  = 264
	keyUp    = 265
)

const (
	cameraMoveSpeed = 5.0
	cameraTurnSpeed = 1.0
)

var defaultCameraPosition = mgl32.Vec3{10.5, 5.0, 9.5}

type Chewman struct {
	*engine.Game

	graphics        *GraphicsManager
	spawns          []EnemyConfig
	teleportTargets []mgl32.Vec2
}

type gameState struct {
	camera  *scene.Camera
	mapNode *scene.SceneNode
	enemies []Enemy
	keys    map[uint16]bool

	width  uint32
	height uint32
}

// NewChewman builds the game callbacks. Every spawn creates one enemy of
// its Type when the resources are ready.
func NewChewman(graphics *GraphicsManager, spawns ...EnemyConfig) *Chewman {
	g := &Chewman{
		Game: &engine.Game{
			State: &gameState{keys: make(map[uint16]bool)},
		},
		graphics: graphics,
		spawns:   spawns,
	}
	g.FnInitialize = g.Initialize
	g.FnUpdate = g.Update
	g.FnOnResize = g.OnResize
	g.FnShutdown = g.Shutdown
	return g
}

// SetTeleportTargets lists where witches can teleport to.
func (g *Chewman) SetTeleportTargets(targets []mgl32.Vec2) {
	g.teleportTargets = targets
}

func (g *Chewman) state() *gameState {
	return g.State.(*gameState)
}

func (g *Chewman) Enemies() []Enemy {
	return g.state().enemies
}

func (g *Chewman) Initialize(e *engine.Engine) error {
	core.LogDebug("Chewman Initialize fn....")
	state := g.state()

	state.camera = e.Scene().MainCamera()
	state.camera.SetNearFar(0.1, 100.0)
	state.camera.SetPosition(defaultCameraPosition)
	state.camera.LookAt(mgl32.Vec3{0, 0, 0})

	state.mapNode = scene.NewSceneNode("map")
	e.Scene().Root().AttachSceneNode(state.mapNode)

	for _, spawn := range g.spawns {
		enemy, err := g.spawn(e.Scene(), state.mapNode, spawn)
		if err != nil {
			return err
		}
		state.enemies = append(state.enemies, enemy)
	}

	e.Events().Register(core.EVENT_CODE_KEY_PRESSED, g, g.onKey)
	e.Events().Register(core.EVENT_CODE_KEY_RELEASED, g, g.onKey)
	return nil
}

func (g *Chewman) spawn(sm *scene.SceneManager, mapNode *scene.SceneNode, config EnemyConfig) (Enemy, error) {
	switch config.Type {
	case EnemyTypeNun:
		return NewDefaultEnemy(sm, mapNode, config)
	case EnemyTypeAngel:
		return NewAngel(sm, mapNode, config)
	case EnemyTypeWitch:
		return NewWitch(sm, mapNode, config, g.teleportTargets)
	default:
		return nil, fmt.Errorf("unknown enemy type %d", config.Type)
	}
}

func (g *Chewman) Update(e *engine.Engine, deltaTime float32) error {
	state := g.state()

	if state.keys[keyA] || state.keys[keyLeft] {
		state.camera.Yaw(cameraTurnSpeed * deltaTime)
	}
	if state.keys[keyD] || state.keys[keyRight] {
		state.camera.Yaw(-cameraTurnSpeed * deltaTime)
	}
	if state.keys[keyUp] {
		state.camera.Pitch(cameraTurnSpeed * deltaTime)
	}
	if state.keys[keyDown] {
		state.camera.Pitch(-cameraTurnSpeed * deltaTime)
	}
	if state.keys[keyW] {
		state.camera.MoveForward(cameraMoveSpeed * deltaTime)
	}
	if state.keys[keyS] {
		state.camera.MoveBackward(cameraMoveSpeed * deltaTime)
	}
	if state.keys[keyQ] {
		state.camera.MoveUp(cameraMoveSpeed * deltaTime)
	}
	if state.keys[keyE] {
		state.camera.MoveUp(-cameraMoveSpeed * deltaTime)
	}

	for _, enemy := range state.enemies {
		enemy.Update(deltaTime)
	}
	return nil
}

func (g *Chewman) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *Chewman) Shutdown() error {
	if g.graphics == nil {
		return nil
	}
	return g.graphics.Store()
}

func (g *Chewman) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	state := g.state()
	key := data.Data.U16[0]
	if code == core.EVENT_CODE_KEY_RELEASED {
		delete(state.keys, key)
		return false
	}
	state.keys[key] = true
	if key == keyP && state.camera != nil {
		pos := state.camera.Position()
		core.LogDebug("Pos:[%.2f, %.2f, %.2f]", pos.X(), pos.Y(), pos.Z())
	}
	return false
}
