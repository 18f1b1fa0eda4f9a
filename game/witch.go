package game

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/scene"
)

type MagicType uint8

const (
	MagicFireball MagicType = iota
	MagicTeleport
	MagicDefrost
)

func (m MagicType) String() string {
	switch m {
	case MagicTeleport:
		return "teleport"
	case MagicDefrost:
		return "defrost"
	default:
		return "fireball"
	}
}

// Seconds.
var castDuration = map[MagicType]float32{
	MagicFireball: 0.5,
	MagicTeleport: 1.0,
	MagicDefrost:  1.5,
}

const (
	fireballRestore        = 4.0
	teleportRestore        = 12.0
	initialTeleportRestore = 6.5
)

// Witch casts magic between moves. A fireball needs the player on the same
// line, a teleport needs its cooldown and somewhere to go, and a frozen
// witch defrosts herself.
type Witch struct {
	*DefaultEnemy

	// PlayerOnLine reports whether a fireball would reach the player.
	PlayerOnLine func(position mgl32.Vec2, direction MoveDirection) bool
	// OnMagic is called when a spell completes.
	OnMagic func(magic MagicType, position mgl32.Vec2)

	teleportTargets []mgl32.Vec2
	rnd             *rand.Rand

	castingTime     float32
	magicType       MagicType
	fireRestore     float32
	teleportRestore float32
}

var _ Enemy = (*Witch)(nil)

func NewWitch(sm *scene.SceneManager, mapNode *scene.SceneNode, config EnemyConfig, teleportTargets []mgl32.Vec2) (*Witch, error) {
	config.Type = EnemyTypeWitch
	enemy, err := NewDefaultEnemy(sm, mapNode, config)
	if err != nil {
		return nil, err
	}
	return newWitch(enemy, teleportTargets, uint64(time.Now().UnixNano())), nil
}

func newWitch(enemy *DefaultEnemy, teleportTargets []mgl32.Vec2, seed uint64) *Witch {
	return &Witch{
		DefaultEnemy:    enemy,
		teleportTargets: teleportTargets,
		rnd:             rand.New(rand.NewSource(seed)),
		castingTime:     -1,
		teleportRestore: initialTeleportRestore,
	}
}

// Casting returns the spell in progress.
func (w *Witch) Casting() (MagicType, bool) {
	return w.magicType, w.castingTime >= 0
}

func (w *Witch) Update(deltaTime float32) {
	w.DefaultEnemy.Update(deltaTime)
	if w.IsStateActive(EnemyStateDead) {
		return
	}
	w.fireRestore = max(w.fireRestore-deltaTime, 0)
	w.teleportRestore = max(w.teleportRestore-deltaTime, 0)

	if w.castingTime >= 0 {
		w.castingTime += deltaTime
		if w.castingTime >= castDuration[w.magicType] {
			w.applyMagic()
		}
		return
	}

	switch {
	case w.IsStateActive(EnemyStateFrozen):
		w.startMagic(MagicDefrost)
	case w.IsStateActive(EnemyStateVulnerable):
	case w.fireRestore == 0 && w.PlayerOnLine != nil && w.PlayerOnLine(w.position, w.direction):
		w.startMagic(MagicFireball)
	case w.teleportRestore == 0 && len(w.teleportTargets) > 0:
		w.startMagic(MagicTeleport)
	}
}

func (w *Witch) startMagic(magic MagicType) {
	w.magicType = magic
	w.castingTime = 0
}

func (w *Witch) stopCasting() {
	w.castingTime = -1
}

func (w *Witch) applyMagic() {
	w.stopCasting()
	switch w.magicType {
	case MagicFireball:
		w.fireRestore = fireballRestore
	case MagicTeleport:
		w.teleportRestore = teleportRestore
		w.SetPosition(w.teleportTargets[w.rnd.Intn(len(w.teleportTargets))])
	case MagicDefrost:
		for w.IsStateActive(EnemyStateFrozen) {
			if err := w.DefaultEnemy.DecreaseState(EnemyStateFrozen); err != nil {
				core.LogError("defrost failed: %s", err.Error())
				break
			}
		}
	}
	if w.OnMagic != nil {
		w.OnMagic(w.magicType, w.position)
	}
}

// IncreaseState interrupts the spell in progress. A defrost survives
// further freezing.
func (w *Witch) IncreaseState(state EnemyState) error {
	if err := w.DefaultEnemy.IncreaseState(state); err != nil {
		return err
	}
	if magic, casting := w.Casting(); casting && !(magic == MagicDefrost && state == EnemyStateFrozen) {
		w.stopCasting()
	}
	return nil
}

// Reset puts the witch back to its starting cooldowns.
func (w *Witch) Reset() {
	w.stopCasting()
	w.fireRestore = 0
	w.teleportRestore = initialTeleportRestore
}
