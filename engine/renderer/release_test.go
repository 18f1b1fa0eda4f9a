package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func TestReleaseStackOrder(t *testing.T) {
	var order []string
	var r ReleaseStack
	destroy := func(name string) { order = append(order, name) }

	Own(&r, "layout", destroy)
	Own(&r, "pipeline", destroy)

	var child ReleaseStack
	Own(&child, "buffer", destroy)
	r.Adopt(&child)
	assert.Equal(t, 0, child.Len())
	assert.Equal(t, 3, r.Len())

	r.Release()
	assert.Equal(t, []string{"buffer", "pipeline", "layout"}, order)

	r.Release()
	assert.Len(t, order, 3)
}

func TestPassGraphIsTopological(t *testing.T) {
	seen := map[string]bool{}
	for _, pass := range submissionOrder {
		for _, dep := range PassDependencies(pass) {
			assert.True(t, seen[dep.String()], "%s submitted before its dependency %s", pass, dep)
		}
		seen[pass.String()] = true
	}
	for _, pass := range submissionOrder {
		assert.True(t, isOffscreen(pass))
		assert.Contains(t, PassDependencies(metadata.MainPass), pass)
	}
	assert.Len(t, submissionOrder, len(readySemaphoreNames))
}
