package engine

import (
	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Folder every resource path is relative to.
	AssetRoot string
	// Folder for user data: graphics settings and the pipeline cache.
	SavePath string
	// Engine settings file, relative to AssetRoot. Defaults are used when it is missing.
	SettingsFile string
	// Folders registered before the first frame, usually what the loading screen needs.
	CoreFolders []string
	// Folders parsed in the background while the loading screen is shown.
	ResourceFolders []string
	// Reload changed light files while running.
	WatchResources bool
}

func DefaultApplicationConfig() ApplicationConfig {
	return ApplicationConfig{
		AssetRoot:       ".",
		SavePath:        "save",
		SettingsFile:    "resources/main.engine",
		ResourceFolders: []string{"resources"},
		StartPosX:       100,
		StartPosY:       100,
	}
}

// Option customizes an Engine before it initializes.
type Option func(*Engine)

// WithSettings adjusts the engine settings after the settings file is read.
func WithSettings(fn func(*core.EngineSettings)) Option {
	return func(e *Engine) { e.settingsHooks = append(e.settingsHooks, fn) }
}

// WithBackend replaces the device layer chosen from the settings.
func WithBackend(backend renderer.RendererBackend) Option {
	return func(e *Engine) { e.backend = backend }
}

// WithMaxMaterialQuality skips materials above quality while loading.
func WithMaxMaterialQuality(quality metadata.MaterialQuality) Option {
	return func(e *Engine) { e.maxMaterialQuality = quality }
}

// WithFrameLimit stops Run after frames rendered frames. Zero means no limit.
func WithFrameLimit(frames uint64) Option {
	return func(e *Engine) { e.frameLimit = frames }
}

// WithFileSystem replaces the desktop file system rooted at AssetRoot.
func WithFileSystem(fs assets.FileSystem) Option {
	return func(e *Engine) { e.fs = fs }
}
