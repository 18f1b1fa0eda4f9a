package loaders_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

func TestLoadSPIRV(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	got, err := loaders.LoadSPIRV("default_vs", code)
	require.NoError(t, err)
	assert.Equal(t, code, got)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, loaders.Bytecode(code))

	for name, bad := range map[string][]byte{
		"empty":     {},
		"truncated": {0x03, 0x02, 0x23},
		"magic":     {0x00, 0x00, 0x00, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loaders.LoadSPIRV("default_vs", bad)
			assert.ErrorIs(t, err, core.ErrUnsupportedResource)
		})
	}
}

func TestDecodeBMPFlipped(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))

	data, err := loaders.DecodeImage("grid.bmp", buf.Bytes(), loaders.ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, data.Pixels[0:4])

	flipped, err := loaders.DecodeImage("grid.bmp", buf.Bytes(), loaders.ImageOptions{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, flipped.Pixels[0:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, flipped.Pixels[8:12])
}

func TestNextPowerOfTwo(t *testing.T) {
	for in, want := range map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 17: 32, 1024: 1024, 1025: 2048} {
		assert.Equal(t, want, loaders.NextPowerOfTwo(in), "input %d", in)
	}
}

func encodeTriangle(t *testing.T) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	positions := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}})
	normals := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	indices := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "triangle",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indices),
			Attributes: gltf.PrimitiveAttributes{"POSITION": positions, "NORMAL": normals},
		}},
	}}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

func TestDecodeGLTF(t *testing.T) {
	data := encodeTriangle(t)

	settings := metadata.DefaultMeshLoadSettings()
	settings.Name = "triangle"
	settings.Scale = mgl32.Vec3{2, 2, 2}
	mesh, err := loaders.DecodeGLTF(data, nil, settings)
	require.NoError(t, err)
	require.Len(t, mesh.Parts, 1)
	assert.False(t, mesh.IsSkeletal())
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Parts[0].Indices)
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, mesh.Parts[0].Positions[1])

	settings.SwitchYZ = true
	mesh, err = loaders.DecodeGLTF(data, nil, settings)
	require.NoError(t, err)
	assertVec3InDelta(t, mgl32.Vec3{0, 2, 0}, mesh.Parts[0].Positions[2], 1e-5)
	assertVec3InDelta(t, mgl32.Vec3{0, 1, 0}, mesh.Parts[0].Normals[0], 1e-5)

	_, err = loaders.DecodeGLTF([]byte("{"), nil, settings)
	assert.ErrorIs(t, err, core.ErrUnsupportedResource)
}

const testFont = `info face="Test" size=32 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=32 base=26 scaleW=256 scaleH=128 pages=1 packed=0 alphaChnl=0 redChnl=4 greenChnl=4 blueChnl=4
page id=0 file="test_0.png"
chars count=2
char id=65   x=10    y=20    width=12    height=14    xoffset=1     yoffset=6     xadvance=13    page=0  chnl=15
char id=66   x=30    y=20    width=11    height=14    xoffset=1     yoffset=6     xadvance=12    page=0  chnl=15
kernings count=1
kerning first=65  second=66  amount=-1
`

func TestLoadBitmapFont(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.fnt"), []byte(testFont), 0o644))
	page := image.NewNRGBA(image.Rect(0, 0, 256, 128))
	require.NoError(t, writePNG(filepath.Join(dir, "test_0.png"), page))

	font, err := loaders.LoadBitmapFont(filepath.Join(dir, "test.fnt"))
	require.NoError(t, err)
	assert.Equal(t, "Test", font.Face)
	assert.Equal(t, uint32(256), font.AtlasWidth)
	assert.Equal(t, uint32(128), font.AtlasHeight)
	require.Len(t, font.Symbols, 2)
	assert.Equal(t, metadata.FontSymbol{X: 10, Y: 20, Width: 12, Height: 14, OriginX: -1, OriginY: 20, Advance: 13}, font.Symbols['A'])
	assert.Equal(t, int32(-1), font.Kernings[loaders.KerningPair{First: 'A', Second: 'B'}])

	_, err = loaders.LoadBitmapFont(filepath.Join(dir, "missing.fnt"))
	assert.Error(t, err)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], delta, "component %d of %v", i, actual)
	}
}
