package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func decodeMat4(b []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m
}

func TestShaderInfoOffsets(t *testing.T) {
	settings := metadata.DefaultShaderSettings()
	settings.Name = "default_vs"
	settings.UniformList = []metadata.UniformDescription{
		{UniformType: metadata.UniformModelMatrix},
		{UniformType: metadata.UniformModelViewProjectionMatrix},
		{UniformType: metadata.UniformTime},
		{UniformType: metadata.UniformBoneMatrices},
	}
	si, err := NewShaderInfo(settings)
	require.NoError(t, err)

	fields := si.Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, uint32(0), fields[0].Offset)
	assert.Equal(t, uint32(64), fields[1].Offset)
	assert.Equal(t, uint32(128), fields[2].Offset)
	assert.Equal(t, uint32(132), fields[3].Offset)
	assert.Equal(t, uint32(64*64), fields[3].Size)
	assert.Equal(t, uint32(132+64*64), si.UniformSize())
}

func TestPackMatrixRoundTrip(t *testing.T) {
	settings := metadata.DefaultShaderSettings()
	settings.Name = "mvp_vs"
	settings.UniformList = []metadata.UniformDescription{
		{UniformType: metadata.UniformModelMatrix},
		{UniformType: metadata.UniformModelViewProjectionMatrix},
	}
	si, err := NewShaderInfo(settings)
	require.NoError(t, err)

	data := NewUniformData()
	data.Model = mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(0.5))
	data.View = mgl32.LookAtV(mgl32.Vec3{0, 5, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	data.Projection = mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 100)

	packed := si.Pack(nil, data)
	require.Len(t, packed, 128)

	model, ok := si.Field(metadata.UniformModelMatrix)
	require.True(t, ok)
	assert.Equal(t, data.Model, decodeMat4(si.ReadField(packed, model)))

	mvp, ok := si.Field(metadata.UniformModelViewProjectionMatrix)
	require.True(t, ok)
	assert.Equal(t, data.Projection.Mul4(data.View).Mul4(data.Model), decodeMat4(si.ReadField(packed, mvp)))
}

func TestPackPadsShortLists(t *testing.T) {
	settings := metadata.DefaultShaderSettings()
	settings.Name = "skinned_vs"
	settings.MaxBonesSize = 4
	settings.UniformList = []metadata.UniformDescription{{UniformType: metadata.UniformBoneMatrices}}
	si, err := NewShaderInfo(settings)
	require.NoError(t, err)

	data := NewUniformData()
	data.Bones = []mgl32.Mat4{mgl32.Ident4()}
	packed := si.Pack(make([]byte, 0, 8), data)

	require.Len(t, packed, 4*64)
	assert.Equal(t, mgl32.Ident4(), decodeMat4(packed[:64]))
	assert.Equal(t, mgl32.Mat4{}, decodeMat4(packed[64:128]))

	// bones past the maximum are dropped
	data.Bones = make([]mgl32.Mat4, 10)
	assert.NotPanics(t, func() { si.Pack(packed, data) })
}

func TestShaderInfoRejectsZeroSizedList(t *testing.T) {
	settings := metadata.DefaultShaderSettings()
	settings.Name = "broken_vs"
	settings.MaxLightSize = 0
	settings.UniformList = []metadata.UniformDescription{{UniformType: metadata.UniformLightPoint}}
	_, err := NewShaderInfo(settings)
	assert.Error(t, err)
}
