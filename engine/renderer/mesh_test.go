package renderer_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func floatsOf(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestInterleaveVertices(t *testing.T) {
	part := &metadata.MeshPart{
		Positions: []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}},
		TexCoords: []mgl32.Vec2{{0.5, 0.25}},
	}
	layout := metadata.VertexInfo{
		VertexDataFlags: []metadata.VertexDataFlag{metadata.VertexTexCoord, metadata.VertexPosition, metadata.VertexColor},
		PositionSize:    3,
		ColorSize:       4,
	}

	got := floatsOf(renderer.InterleaveVertices(part, layout))
	assert.Equal(t, []float32{
		1, 2, 3, 1, 1, 1, 1, 0.5, 0.25,
		4, 5, 6, 1, 1, 1, 1, 0, 0,
	}, got)
}

func TestMeshUploadedOncePerLayout(t *testing.T) {
	r, backend := newTestRenderer(t, headless.DefaultConfig())
	mesh := &metadata.MeshData{
		Name: "enemy",
		Parts: []metadata.MeshPart{
			{Positions: make([]mgl32.Vec3, 4), Indices: []uint32{0, 1, 2, 2, 3, 0}},
			{Positions: make([]mgl32.Vec3, 3), Indices: []uint32{0, 1, 2}},
		},
	}
	require.NoError(t, r.Meshes.Register(mesh))
	assert.ErrorIs(t, r.Meshes.Register(mesh), core.ErrAlreadyExists)

	live := backend.LiveObjects()
	layout := metadata.VertexInfo{VertexDataFlags: []metadata.VertexDataFlag{metadata.VertexPosition}, PositionSize: 3}
	first, err := r.Meshes.Get("enemy", layout)
	require.NoError(t, err)
	again, err := r.Meshes.Get("enemy", layout)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, live+2, backend.LiveObjects())
	assert.Equal(t, uint32(6), first.Geometries[0].IndexCount)

	layout.VertexDataFlags = append(layout.VertexDataFlags, metadata.VertexNormal)
	other, err := r.Meshes.Get("enemy", layout)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, live+4, backend.LiveObjects())

	_, err = r.Meshes.Get("witch", layout)
	assert.ErrorIs(t, err, core.ErrFatal)
}
