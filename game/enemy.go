package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/scene"
)

type EnemyType uint8

const (
	EnemyTypeNun EnemyType = iota
	EnemyTypeAngel
	EnemyTypeWitch
)

func (t EnemyType) String() string {
	switch t {
	case EnemyTypeAngel:
		return "angel"
	case EnemyTypeWitch:
		return "witch"
	default:
		return "nun"
	}
}

// EnemyState values are counted: every IncreaseState needs a matching
// DecreaseState before the state turns off again.
type EnemyState uint8

const (
	EnemyStateFrozen EnemyState = iota
	EnemyStateVulnerable
	EnemyStateDead
	enemyStateCount
)

func (s EnemyState) String() string {
	switch s {
	case EnemyStateFrozen:
		return "frozen"
	case EnemyStateVulnerable:
		return "vulnerable"
	case EnemyStateDead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type MoveDirection uint8

const (
	MoveDirectionUp MoveDirection = iota
	MoveDirectionRight
	MoveDirectionDown
	MoveDirectionLeft
	MoveDirectionNone
)

type Enemy interface {
	Update(deltaTime float32)
	IncreaseState(state EnemyState) error
	DecreaseState(state EnemyState) error
	IsStateActive(state EnemyState) bool
	GetHeight() float32
	Type() EnemyType
	Node() *scene.SceneNode
}

// skin is the part of a mesh entity an enemy changes when it turns
// vulnerable.
type skin interface {
	SetMaterial(materialName string) error
}

/** @brief Describes how an enemy looks and where it starts. */
type EnemyConfig struct {
	Type               EnemyType
	MeshName           string
	NormalMaterial     string
	VulnerableMaterial string
	// Map position: X is the column, Y the row.
	Position mgl32.Vec2
}

// DefaultEnemy walks the map on the ground. Its node tree is
// root (translation) -> rotate (direction) -> mesh.
type DefaultEnemy struct {
	config EnemyConfig
	states [enemyStateCount]int

	position  mgl32.Vec2
	direction MoveDirection
	time      float32
	height    func(time float32) float32

	mapNode    *scene.SceneNode
	rootNode   *scene.SceneNode
	rotateNode *scene.SceneNode
	meshNode   *scene.SceneNode
	mesh       skin
}

var _ Enemy = (*DefaultEnemy)(nil)

// NewDefaultEnemy creates the enemy mesh with its normal material and
// attaches the enemy below mapNode.
func NewDefaultEnemy(sm *scene.SceneManager, mapNode *scene.SceneNode, config EnemyConfig) (*DefaultEnemy, error) {
	entity, err := scene.NewMeshEntity(sm, config.MeshName, config.NormalMaterial)
	if err != nil {
		return nil, fmt.Errorf("can't create %s enemy: %w", config.Type, err)
	}
	return newDefaultEnemy(mapNode, entity, config), nil
}

func newDefaultEnemy(mapNode *scene.SceneNode, mesh skin, config EnemyConfig) *DefaultEnemy {
	e := &DefaultEnemy{
		config:     config,
		position:   config.Position,
		direction:  MoveDirectionNone,
		height:     func(float32) float32 { return 0 },
		mapNode:    mapNode,
		rootNode:   scene.NewSceneNode(config.Type.String()),
		rotateNode: scene.NewSceneNode(""),
		meshNode:   scene.NewSceneNode(""),
		mesh:       mesh,
	}
	e.rootNode.AttachSceneNode(e.rotateNode)
	e.rotateNode.AttachSceneNode(e.meshNode)
	if entity, ok := mesh.(scene.Entity); ok {
		e.meshNode.AttachEntity(entity)
	}
	mapNode.AttachSceneNode(e.rootNode)
	e.updateTransform()
	return e
}

func (e *DefaultEnemy) Type() EnemyType {
	return e.config.Type
}

func (e *DefaultEnemy) Node() *scene.SceneNode {
	return e.rootNode
}

func (e *DefaultEnemy) Position() mgl32.Vec2 {
	return e.position
}

func (e *DefaultEnemy) SetPosition(position mgl32.Vec2) {
	e.position = position
	e.updateTransform()
}

func (e *DefaultEnemy) Direction() MoveDirection {
	return e.direction
}

func (e *DefaultEnemy) SetDirection(direction MoveDirection) {
	e.direction = direction
}

func (e *DefaultEnemy) Update(deltaTime float32) {
	e.time += deltaTime
	e.updateTransform()
}

func (e *DefaultEnemy) updateTransform() {
	e.rootNode.SetNodeTransformation(mgl32.Translate3D(e.position.Y(), e.GetHeight(), -e.position.X()))
	angle := mgl32.DegToRad(180 + 90*float32(e.direction))
	e.rotateNode.SetNodeTransformation(mgl32.HomogRotate3DY(angle))
}

func (e *DefaultEnemy) GetHeight() float32 {
	return e.height(e.time)
}

func (e *DefaultEnemy) IsStateActive(state EnemyState) bool {
	return state < enemyStateCount && e.states[state] > 0
}

func (e *DefaultEnemy) IncreaseState(state EnemyState) error {
	if state >= enemyStateCount {
		return fmt.Errorf("unknown enemy %s", state)
	}
	// the counter only moves once the material matches it
	if state == EnemyStateVulnerable {
		if err := e.mesh.SetMaterial(e.config.VulnerableMaterial); err != nil {
			return err
		}
	}
	e.states[state]++
	if state == EnemyStateDead {
		e.rootNode.Detach()
	}
	return nil
}

func (e *DefaultEnemy) DecreaseState(state EnemyState) error {
	if state >= enemyStateCount {
		return fmt.Errorf("unknown enemy %s", state)
	}
	if e.states[state] == 0 {
		core.LogWarn("%s enemy is not %s", e.config.Type, state)
		return nil
	}
	if e.states[state] == 1 && state == EnemyStateVulnerable {
		if err := e.mesh.SetMaterial(e.config.NormalMaterial); err != nil {
			return err
		}
	}
	e.states[state]--
	if e.states[state] == 0 && state == EnemyStateDead {
		e.mapNode.AttachSceneNode(e.rootNode)
		e.updateTransform()
	}
	return nil
}
