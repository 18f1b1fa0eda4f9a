package game

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/scene"
)

type fakeSkin struct {
	materials []string
	err       error
}

func (s *fakeSkin) SetMaterial(materialName string) error {
	if s.err != nil {
		return s.err
	}
	s.materials = append(s.materials, materialName)
	return nil
}

func testConfig() EnemyConfig {
	return EnemyConfig{
		MeshName:           "nun",
		NormalMaterial:     "Nun",
		VulnerableMaterial: "NunVulnerable",
		Position:           mgl32.Vec2{2, 3},
	}
}

func TestDefaultEnemyStates(t *testing.T) {
	mapNode := scene.NewSceneNode("map")
	skin := &fakeSkin{}
	enemy := newDefaultEnemy(mapNode, skin, testConfig())

	require.Len(t, mapNode.Children(), 1)
	assert.Equal(t, mgl32.Vec3{3, 0, -2}, enemy.Node().WorldPosition())
	assert.Zero(t, enemy.GetHeight())

	t.Run("vulnerable swaps material", func(t *testing.T) {
		require.NoError(t, enemy.IncreaseState(EnemyStateVulnerable))
		require.NoError(t, enemy.IncreaseState(EnemyStateVulnerable))
		assert.True(t, enemy.IsStateActive(EnemyStateVulnerable))

		require.NoError(t, enemy.DecreaseState(EnemyStateVulnerable))
		assert.True(t, enemy.IsStateActive(EnemyStateVulnerable))
		require.NoError(t, enemy.DecreaseState(EnemyStateVulnerable))
		assert.False(t, enemy.IsStateActive(EnemyStateVulnerable))

		assert.Equal(t, []string{"NunVulnerable", "NunVulnerable", "Nun"}, skin.materials)
	})

	t.Run("dead detaches", func(t *testing.T) {
		require.NoError(t, enemy.IncreaseState(EnemyStateDead))
		assert.Empty(t, mapNode.Children())
		assert.Nil(t, enemy.Node().Parent())

		require.NoError(t, enemy.DecreaseState(EnemyStateDead))
		assert.Equal(t, []*scene.SceneNode{enemy.Node()}, mapNode.Children())
	})

	t.Run("decrease of inactive state is ignored", func(t *testing.T) {
		require.NoError(t, enemy.DecreaseState(EnemyStateFrozen))
		assert.False(t, enemy.IsStateActive(EnemyStateFrozen))
		require.NoError(t, enemy.IncreaseState(EnemyStateFrozen))
		assert.True(t, enemy.IsStateActive(EnemyStateFrozen))
	})

	t.Run("unknown state", func(t *testing.T) {
		assert.Error(t, enemy.IncreaseState(enemyStateCount))
		assert.False(t, enemy.IsStateActive(enemyStateCount))
	})
}

func TestDefaultEnemyMaterialError(t *testing.T) {
	boom := errors.New("missing material")
	enemy := newDefaultEnemy(scene.NewSceneNode("map"), &fakeSkin{err: boom}, testConfig())
	assert.ErrorIs(t, enemy.IncreaseState(EnemyStateVulnerable), boom)
}

func TestFailedMaterialSwapKeepsState(t *testing.T) {
	skin := &fakeSkin{err: errors.New("no such material")}
	enemy := newDefaultEnemy(scene.NewSceneNode("map"), skin, testConfig())

	assert.Error(t, enemy.IncreaseState(EnemyStateVulnerable))
	assert.False(t, enemy.IsStateActive(EnemyStateVulnerable))

	skin.err = nil
	require.NoError(t, enemy.IncreaseState(EnemyStateVulnerable))

	skin.err = errors.New("no such material")
	assert.Error(t, enemy.DecreaseState(EnemyStateVulnerable))
	assert.True(t, enemy.IsStateActive(EnemyStateVulnerable))

	skin.err = nil
	require.NoError(t, enemy.DecreaseState(EnemyStateVulnerable))
	assert.False(t, enemy.IsStateActive(EnemyStateVulnerable))
	assert.Equal(t, []string{"NunVulnerable", "Nun"}, skin.materials)
}

func TestDefaultEnemyDirection(t *testing.T) {
	enemy := newDefaultEnemy(scene.NewSceneNode("map"), &fakeSkin{}, testConfig())
	enemy.SetDirection(MoveDirectionRight)
	enemy.SetPosition(mgl32.Vec2{1, 1})
	enemy.Update(0.1)

	assert.Equal(t, MoveDirectionRight, enemy.Direction())
	rotation := enemy.rotateNode.NodeTransformation()
	forward := rotation.Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3()
	// 270 degrees around Y.
	assertVec3InDelta(t, mgl32.Vec3{-1, 0, 0}, forward, 1e-5)
}

func TestAngelFloats(t *testing.T) {
	angel := newAngel(newDefaultEnemy(scene.NewSceneNode("map"), &fakeSkin{}, testConfig()))

	seen := map[bool]bool{}
	prev := angel.GetHeight()
	for i := 0; i < 100; i++ {
		angel.Update(0.05)
		h := angel.GetHeight()
		assert.GreaterOrEqual(t, h, float32(angelBaseHeight-angelFloatHeight-1e-5))
		assert.LessOrEqual(t, h, float32(angelBaseHeight+angelFloatHeight+1e-5))
		seen[h > prev] = true
		prev = h
	}
	assert.True(t, seen[true] && seen[false], "height should go up and down")
	assert.InDelta(t, angel.GetHeight(), angel.Node().WorldPosition().Y(), 1e-5)
}

func newTestWitch(targets []mgl32.Vec2) *Witch {
	return newWitch(newDefaultEnemy(scene.NewSceneNode("map"), &fakeSkin{}, testConfig()), targets, 1)
}

func TestWitchFireball(t *testing.T) {
	witch := newTestWitch(nil)
	onLine := false
	witch.PlayerOnLine = func(mgl32.Vec2, MoveDirection) bool { return onLine }
	var cast []MagicType
	witch.OnMagic = func(magic MagicType, _ mgl32.Vec2) { cast = append(cast, magic) }

	witch.Update(0.1)
	_, casting := witch.Casting()
	assert.False(t, casting)

	onLine = true
	witch.Update(0.1)
	magic, casting := witch.Casting()
	require.True(t, casting)
	assert.Equal(t, MagicFireball, magic)

	witch.Update(0.6)
	assert.Equal(t, []MagicType{MagicFireball}, cast)

	// cooling down
	witch.Update(1)
	_, casting = witch.Casting()
	assert.False(t, casting)
}

func TestWitchTeleport(t *testing.T) {
	target := mgl32.Vec2{7, 8}
	witch := newTestWitch([]mgl32.Vec2{target})
	var cast []MagicType
	witch.OnMagic = func(magic MagicType, _ mgl32.Vec2) { cast = append(cast, magic) }

	witch.Update(initialTeleportRestore - 1)
	_, casting := witch.Casting()
	assert.False(t, casting)

	witch.Update(1)
	magic, casting := witch.Casting()
	require.True(t, casting)
	assert.Equal(t, MagicTeleport, magic)

	witch.Update(1)
	assert.Equal(t, target, witch.Position())
	assert.Equal(t, mgl32.Vec3{8, 0, -7}, witch.Node().WorldPosition())
	assert.Equal(t, []MagicType{MagicTeleport}, cast)
}

func TestWitchDefrost(t *testing.T) {
	witch := newTestWitch(nil)
	require.NoError(t, witch.IncreaseState(EnemyStateFrozen))
	require.NoError(t, witch.IncreaseState(EnemyStateFrozen))

	witch.Update(0.1)
	magic, casting := witch.Casting()
	require.True(t, casting)
	assert.Equal(t, MagicDefrost, magic)

	// freezing again does not break the defrost
	require.NoError(t, witch.IncreaseState(EnemyStateFrozen))
	_, casting = witch.Casting()
	assert.True(t, casting)

	witch.Update(2)
	assert.False(t, witch.IsStateActive(EnemyStateFrozen))
}

func TestWitchInterrupted(t *testing.T) {
	witch := newTestWitch([]mgl32.Vec2{{1, 1}})
	witch.Update(initialTeleportRestore)
	_, casting := witch.Casting()
	require.True(t, casting)

	require.NoError(t, witch.IncreaseState(EnemyStateVulnerable))
	_, casting = witch.Casting()
	assert.False(t, casting)

	// vulnerable witches don't cast
	witch.Update(0.1)
	_, casting = witch.Casting()
	assert.False(t, casting)

	require.NoError(t, witch.IncreaseState(EnemyStateDead))
	require.NoError(t, witch.DecreaseState(EnemyStateVulnerable))
	witch.Update(0.1)
	_, casting = witch.Casting()
	assert.False(t, casting)

	witch.Reset()
	assert.Equal(t, float32(initialTeleportRestore), witch.teleportRestore)
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], delta, "component %d of %v", i, actual)
	}
}
