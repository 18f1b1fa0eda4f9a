package renderer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
)

func runWithCache(t *testing.T, config headless.Config, dir string) (isNew bool, blob []byte) {
	t.Helper()
	backend := headless.New(config)
	r, err := renderer.New(backend, &memoryTextures{}, saveStore(dir))
	require.NoError(t, err)
	isNew = r.PipelineCache.IsNew()
	registerDefaultShaders(t, r)
	_, err = r.Materials.Register(defaultMaterial("wall"))
	require.NoError(t, err)
	blob, err = backend.PipelineCacheData(r.PipelineCache.Handle())
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())
	return isNew, blob
}

func TestPipelineCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := headless.DefaultConfig()

	isNew, blob := runWithCache(t, config, dir)
	assert.True(t, isNew)
	assert.Equal(t, "wall\n", string(blob))
	assert.FileExists(t, filepath.Join(dir, renderer.PipelineCacheFilename))

	// the second run starts from the stored blob and does not rewrite it
	isNew, blob = runWithCache(t, config, dir)
	assert.False(t, isNew)
	assert.Equal(t, "wall\nwall\n", string(blob))

	isNew, _ = runWithCache(t, config, dir)
	assert.False(t, isNew)
}

func TestPipelineCacheRejectsForeignDevice(t *testing.T) {
	dir := t.TempDir()
	config := headless.DefaultConfig()
	runWithCache(t, config, dir)

	config.Device.DriverVersion++
	isNew, blob := runWithCache(t, config, dir)
	assert.True(t, isNew)
	assert.Equal(t, "wall\n", string(blob))

	config.Device.PipelineCacheUUID[0] = 'x'
	isNew, _ = runWithCache(t, config, dir)
	assert.True(t, isNew)
}

func TestPipelineCacheIgnoresCorruptedFile(t *testing.T) {
	for name, content := range map[string][]byte{
		"empty":     {},
		"bad magic": []byte("NOPE0000000000000000000000000000000000000000000000000000"),
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, renderer.PipelineCacheFilename), content, 0o644))

			backend := headless.New(headless.DefaultConfig())
			cache := renderer.NewPipelineCacheManager(backend, saveStore(dir))
			require.NoError(t, cache.Load())
			defer cache.Destroy()
			assert.True(t, cache.IsNew())
			assert.NotNil(t, cache.Handle())
		})
	}
}

func TestPipelineCacheDriverRejection(t *testing.T) {
	dir := t.TempDir()
	config := headless.DefaultConfig()
	runWithCache(t, config, dir)

	backend := headless.New(config)
	backend.FailNext(headless.OpPipelineCacheCreate)
	cache := renderer.NewPipelineCacheManager(backend, saveStore(dir))
	require.NoError(t, cache.Load())
	defer cache.Destroy()
	assert.True(t, cache.IsNew())

	data, err := backend.PipelineCacheData(cache.Handle())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPipelineCacheInMemoryStore(t *testing.T) {
	store := saveStore("")
	backend := headless.New(headless.DefaultConfig())
	cache := renderer.NewPipelineCacheManager(backend, store)
	require.NoError(t, cache.Load())
	require.NoError(t, cache.Store())
	cache.Destroy()

	stored, err := store.ReadSaved(renderer.PipelineCacheFilename)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	cache = renderer.NewPipelineCacheManager(headless.New(headless.DefaultConfig()), store)
	require.NoError(t, cache.Load())
	defer cache.Destroy()
	assert.False(t, cache.IsNew())
}
