package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalfWrapsCause(t *testing.T) {
	cause := errors.New("vkCreateGraphicsPipelines: VK_ERROR_OUT_OF_DEVICE_MEMORY")
	err := Fatalf("failed to create pipeline for material %s: %w", "Wall", cause)

	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to create pipeline for material Wall: vkCreateGraphicsPipelines: VK_ERROR_OUT_OF_DEVICE_MEMORY", err.Error())
}

func TestAsFatal(t *testing.T) {
	assert.Nil(t, AsFatal(nil))

	plain := fmt.Errorf("can't load resource file %s: %w", "a.material", ErrNotFound)
	err := AsFatal(plain)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, plain.Error(), err.Error())

	// already fatal errors are passed through untouched
	assert.Same(t, err, AsFatal(err))
}

func TestSwapchainOutOfDateIsNotFatal(t *testing.T) {
	err := fmt.Errorf("acquire: %w", ErrSwapchainOutOfDate)
	assert.False(t, IsFatal(err))
}
