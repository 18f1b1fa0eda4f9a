package assets_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/core"
)

func TestMemoryFS(t *testing.T) {
	fsys := assets.NewMemoryFS(fstest.MapFS{
		"resources/shaders/default.shader":  {Data: []byte("name = 'default'")},
		"resources/shaders/default_vs.spv":  {Data: []byte{3, 2, 0x23, 7}},
		"resources/materials/wall.material": {Data: []byte("name = 'wall'")},
		"levels/level1.map":                 {Data: []byte("#")},
	}, "save")

	files, err := fsys.FolderList("resources")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"resources/materials/wall.material",
		"resources/shaders/default.shader",
		"resources/shaders/default_vs.spv",
	}, files)

	data, err := fsys.FileContent("./resources/materials/wall.material")
	require.NoError(t, err)
	assert.Equal(t, "name = 'wall'", string(data))

	assert.True(t, fsys.Exists("levels/level1.map"))
	assert.True(t, fsys.IsDir("resources/shaders"))
	assert.False(t, fsys.IsDir("levels/level1.map"))
	assert.False(t, fsys.Exists("levels/level2.map"))
	assert.Equal(t, "save", fsys.SavePath())

	_, err = fsys.FileContent("levels/level2.map")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = fsys.FolderList("music")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, ok := fsys.LocalPath("levels/level1.map")
	assert.False(t, ok)
}

func TestDesktopFS(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "resources", "fonts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "resources", "fonts", "main.font"), []byte("size = 32"), 0o644))
	save := filepath.Join(t.TempDir(), "save")

	fsys, err := assets.NewDesktopFS(root, save)
	require.NoError(t, err)
	assert.DirExists(t, save)

	files, err := fsys.FolderList("resources")
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/fonts/main.font"}, files)

	local, ok := fsys.LocalPath("resources/fonts/main.font")
	require.True(t, ok)
	assert.FileExists(t, local)

	_, err = assets.NewDesktopFS(filepath.Join(root, "missing"), save)
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "resources/shaders/default_vs.spv", assets.ResolvePath("resources/shaders/default.shader", "default_vs.spv"))
	assert.Equal(t, "resources/textures/wall.png", assets.ResolvePath("resources/materials/wall.material", "../textures/wall.png"))
	assert.Equal(t, "", assets.ResolvePath("resources/materials/wall.material", ""))
}

func TestSavedBlobs(t *testing.T) {
	save := filepath.Join(t.TempDir(), "save")
	for name, fsys := range map[string]*assets.FS{
		"on disk":   assets.NewMemoryFS(fstest.MapFS{}, save),
		"in memory": assets.NewMemoryFS(fstest.MapFS{}, ""),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := fsys.ReadSaved("cache.bin")
			assert.ErrorIs(t, err, core.ErrNotFound)

			require.NoError(t, fsys.WriteSaved("cache.bin", []byte("first")))
			require.NoError(t, fsys.WriteSaved("cache.bin", []byte("second")))
			data, err := fsys.ReadSaved("cache.bin")
			require.NoError(t, err)
			assert.Equal(t, "second", string(data))
		})
	}
	assert.FileExists(t, filepath.Join(save, "cache.bin"))
	assert.NoFileExists(t, filepath.Join(save, "cache.bin.tmp"))
}

func TestTextureLoader(t *testing.T) {
	fsys := assets.NewMemoryFS(fstest.MapFS{
		"textures/wall.png": {Data: encodePNG(t, 3, 2)},
		"textures/bad.png":  {Data: []byte("not a png")},
	}, "")

	img, err := assets.NewTextureLoader(fsys, loaders.ImageOptions{}).LoadImage("textures/wall.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Len(t, img.Pixels, 3*2*4)

	img, err = assets.NewTextureLoader(fsys, loaders.ImageOptions{PowerOfTwo: true}).LoadImage("textures/wall.png")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), img.Width)
	assert.Equal(t, uint32(2), img.Height)

	_, err = assets.NewTextureLoader(fsys, loaders.ImageOptions{}).LoadImage("textures/bad.png")
	assert.ErrorIs(t, err, core.ErrUnsupportedResource)
	_, err = assets.NewTextureLoader(fsys, loaders.ImageOptions{}).LoadImage("textures/none.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "resources", "lights"), 0o755))

	w, err := assets.NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRecursive("resources"))

	require.NoError(t, os.WriteFile(filepath.Join(root, "resources", "lights", "sun.light"), []byte("lightType = 'SunLight'"), 0o644))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Path == "resources/lights/sun.light" {
				assert.False(t, e.Removed)
				require.NoError(t, w.Close())
				assert.ErrorIs(t, w.AddRecursive("resources"), assets.ErrWatcherClosed)
				return
			}
		case <-timeout:
			t.Fatal("no change reported")
		}
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
