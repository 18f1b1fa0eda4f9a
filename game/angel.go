package game

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/chewman/engine/scene"
)

const (
	angelBaseHeight  = 0.4
	angelFloatHeight = 0.15
	angelFloatSpeed  = 2.5
)

// Angel floats above the ground.
type Angel struct {
	*DefaultEnemy
}

func NewAngel(sm *scene.SceneManager, mapNode *scene.SceneNode, config EnemyConfig) (*Angel, error) {
	config.Type = EnemyTypeAngel
	enemy, err := NewDefaultEnemy(sm, mapNode, config)
	if err != nil {
		return nil, err
	}
	return newAngel(enemy), nil
}

func newAngel(enemy *DefaultEnemy) *Angel {
	enemy.height = angelHeight
	enemy.updateTransform()
	return &Angel{DefaultEnemy: enemy}
}

func angelHeight(time float32) float32 {
	return angelBaseHeight + angelFloatHeight*math32.Sin(time*angelFloatSpeed)
}
