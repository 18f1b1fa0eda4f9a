// Package engine wires the platform, the renderer, the resource manager and
// the scene into one explicit context and drives the frame loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/platform"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/headless"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/renderer/vulkan"
	"github.com/spaghettifunk/chewman/engine/resources"
	"github.com/spaghettifunk/chewman/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shut down"
	default:
		return "uninitialized"
	}
}

// GLFW code of the escape key.
const keyEscape = 256

type Engine struct {
	config   ApplicationConfig
	game     *Game
	settings core.EngineSettings

	settingsHooks      []func(*core.EngineSettings)
	maxMaterialQuality metadata.MaterialQuality
	frameLimit         uint64

	currentStage Stage
	isRunning    bool
	isSuspended  bool
	isLoading    bool
	width        uint32
	height       uint32
	resize       *[2]uint32

	events    *core.EventSystem
	platform  *platform.Platform
	fs        assets.FileSystem
	watcher   *assets.Watcher
	backend   renderer.RendererBackend
	renderer  *renderer.Renderer
	scene     *scene.SceneManager
	resources *resources.ResourceManager
	clock     *core.Clock
	metrics   *core.Metrics
}

// New builds the engine context: settings, platform, backend, renderer and
// managers. Nothing is loaded until Run.
func New(config ApplicationConfig, game *Game, opts ...Option) (_ *Engine, err error) {
	if game == nil {
		game = &Game{}
	}
	e := &Engine{
		config:             config,
		game:               game,
		maxMaterialQuality: metadata.QualityHigh,
		events:             core.NewEventSystem(),
		clock:              core.NewClock(),
		metrics:            core.NewMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	defer func() {
		if err != nil {
			if shutdownErr := e.Shutdown(); shutdownErr != nil {
				core.LogError("shutdown after failed start: %s", shutdownErr.Error())
			}
		}
	}()

	if e.fs == nil {
		desktop, err := assets.NewDesktopFS(config.AssetRoot, config.SavePath)
		if err != nil {
			return nil, core.AsFatal(err)
		}
		e.fs = desktop
	}
	if e.settings, err = e.loadSettings(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(e.settings.LogLevel))
	e.width, e.height = e.settings.Width, e.settings.Height

	if e.backend == nil {
		if e.backend, err = e.createBackend(); err != nil {
			return nil, err
		}
	}
	textures := assets.NewTextureLoader(e.fs, loaders.ImageOptions{})
	if e.renderer, err = renderer.New(e.backend, textures, e.fs); err != nil {
		return nil, err
	}
	e.scene = scene.NewSceneManager(e.renderer, e.settings)
	e.resources = resources.NewResourceManager(e.fs, &registry{renderer: e.renderer, scene: e.scene})
	e.resources.SetMaxMaterialLoadQuality(e.maxMaterialQuality)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if config.WatchResources {
		e.startWatcher()
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized (%s backend, %dx%d)", e.settings.ApplicationName, e.settings.Backend, e.width, e.height)
	return e, nil
}

func (e *Engine) loadSettings() (core.EngineSettings, error) {
	settings := core.DefaultEngineSettings()
	if e.config.SettingsFile != "" && e.fs.Exists(e.config.SettingsFile) {
		content, err := e.fs.FileContent(e.config.SettingsFile)
		if err != nil {
			return settings, core.AsFatal(err)
		}
		if settings, err = core.ParseEngineSettings(content); err != nil {
			return settings, core.Fatalf("can't load engine settings %s: %w", e.config.SettingsFile, err)
		}
	}
	for _, hook := range e.settingsHooks {
		hook(&settings)
	}
	return settings, nil
}

func (e *Engine) createBackend() (renderer.RendererBackend, error) {
	if e.settings.Backend == core.BackendHeadless {
		config := headless.DefaultConfig()
		config.SwapchainSize = e.settings.SwapchainSize
		config.Width, config.Height = e.width, e.height
		return headless.New(config), nil
	}
	e.platform = platform.New(e.events)
	if err := e.platform.Startup(e.settings.ApplicationName, e.config.StartPosX, e.config.StartPosY, e.width, e.height); err != nil {
		e.platform = nil
		return nil, err
	}
	e.width, e.height = e.platform.FramebufferSize()
	return vulkan.New(e.platform, e.settings), nil
}

func (e *Engine) startWatcher() {
	disk, ok := e.fs.(interface{ LocalPath(string) (string, bool) })
	if !ok {
		core.LogWarn("resource watching needs a file system on disk")
		return
	}
	root, ok := disk.LocalPath(".")
	if !ok {
		core.LogWarn("resource watching needs a file system on disk")
		return
	}
	watcher, err := assets.NewWatcher(root)
	if err != nil {
		core.LogWarn("resource watching disabled: %s", err.Error())
		return
	}
	for _, folder := range append(append([]string(nil), e.config.CoreFolders...), e.config.ResourceFolders...) {
		if err := watcher.AddRecursive(folder); err != nil {
			core.LogWarn("can't watch %s: %s", folder, err.Error())
		}
	}
	e.watcher = watcher
}

// Run loads the resources and renders frames until the window closes, a
// quit event arrives, ctx is canceled or the frame limit is reached. Core
// folders are registered first, then the loading screen is shown while the
// resource folders are parsed in the background.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine can't run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	for _, folder := range e.config.CoreFolders {
		if err := e.resources.LoadFolder(folder, nil); err != nil {
			return err
		}
	}
	loadCtx, cancelLoad := context.WithCancel(ctx)
	defer cancelLoad()
	future := e.resources.LoadAsync(loadCtx, e.config.ResourceFolders...)
	e.isLoading = true

	e.clock.Start()
	for e.isRunning {
		if ctx.Err() != nil {
			break
		}
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}
		if err := e.applyResize(); err != nil {
			return err
		}
		if e.isSuspended {
			e.waitWhileSuspended(ctx)
			continue
		}

		e.clock.Update()
		frameStart := time.Now()
		e.processChanges()

		src, err := e.frameSource(future, e.clock.Delta())
		if err != nil {
			return err
		}
		if err := e.renderer.DrawFrame(ctx, src); err != nil {
			switch {
			case errors.Is(err, core.ErrSwapchainBooting):
				core.LogDebug("swapchain booting, frame skipped")
				continue
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		}

		e.metrics.Update(time.Since(frameStart).Seconds())
		if e.frameLimit > 0 && e.metrics.TotalFrames >= e.frameLimit {
			break
		}
	}
	if e.isLoading {
		cancelLoad()
		_, _ = future.Wait()
	}
	return nil
}

// frameSource finishes loading once the background parse is done and
// returns what to draw this frame.
func (e *Engine) frameSource(future *resources.Future, deltaTime float32) (renderer.FrameSource, error) {
	if e.isLoading {
		if !future.Done() {
			e.fireProgress(future.Progress() / 2)
			return loadingScreen{}, nil
		}
		data, err := future.Wait()
		if err != nil {
			return nil, err
		}
		if err := e.resources.InitializeResources(data, func(p float32) { e.fireProgress(0.5 + p/2) }); err != nil {
			return nil, err
		}
		e.isLoading = false
		core.LogInfo("resources loaded: %d shaders, %d materials, %d meshes",
			e.renderer.Shaders.Count(), e.renderer.Materials.Count(), e.renderer.Meshes.Count())

		if e.game.FnInitialize != nil {
			if err := e.game.FnInitialize(e); err != nil {
				return nil, err
			}
		}
		if e.game.FnOnResize != nil {
			if err := e.game.FnOnResize(e.width, e.height); err != nil {
				return nil, err
			}
		}
	}

	if e.game.FnUpdate != nil {
		if err := e.game.FnUpdate(e, deltaTime); err != nil {
			return nil, fmt.Errorf("game update failed: %w", err)
		}
	}
	e.scene.Update(deltaTime)
	return e.scene, nil
}

func (e *Engine) fireProgress(progress float32) {
	var ctx core.EventContext
	ctx.Data.F32[0] = progress
	e.events.Fire(core.EVENT_CODE_LOADING_PROGRESS, e, ctx)
}

func (e *Engine) waitWhileSuspended(ctx context.Context) {
	if e.platform != nil {
		e.platform.WaitWhileMinimized()
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

// applyResize handles the last resize event received since the previous
// frame. A zero extent suspends rendering.
func (e *Engine) applyResize() error {
	if e.resize == nil {
		return nil
	}
	width, height := e.resize[0], e.resize[1]
	e.resize = nil
	if width == e.width && height == e.height {
		return nil
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return nil
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.Resize(width, height); err != nil {
		return err
	}
	e.scene.Resize(width, height)
	if e.game.FnOnResize != nil && !e.isLoading {
		return e.game.FnOnResize(width, height)
	}
	return nil
}

// processChanges applies changed resource files. Only lights can change
// while running.
func (e *Engine) processChanges() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case change := <-e.watcher.Events():
			e.reload(change)
		default:
			return
		}
	}
}

func (e *Engine) reload(change assets.ChangeEvent) {
	kind := resources.ResourceTypeOf(change.Path)
	switch {
	case kind == resources.ResourceTypeNone:
		return
	case change.Removed:
		core.LogInfo("%s removed, restart to apply", change.Path)
	case kind == resources.ResourceTypeLight:
		settings, err := e.resources.ReloadLight(change.Path)
		if err != nil {
			core.LogError("can't reload %s: %s", change.Path, err.Error())
			return
		}
		err = e.scene.Lights.UpdateLight(settings)
		if errors.Is(err, core.ErrNotFound) {
			err = e.scene.RegisterLight(settings)
		}
		if err != nil {
			core.LogError("can't apply %s: %s", change.Path, err.Error())
			return
		}
		core.LogInfo("light %s reloaded", settings.Name)
	default:
		core.LogInfo("%s changed, restart to apply", change.Path)
	}
}

// Shutdown releases everything in reverse creation order. It is safe to
// call more than once.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
	}
	if e.game.FnShutdown != nil && e.renderer != nil {
		errs = append(errs, e.game.FnShutdown())
	}
	if e.renderer != nil {
		errs = append(errs, e.renderer.Shutdown())
		e.renderer = nil
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
		e.platform = nil
	}
	e.events.Shutdown()
	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func (e *Engine) Settings() core.EngineSettings {
	return e.settings
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Scene() *scene.SceneManager {
	return e.scene
}

func (e *Engine) Resources() *resources.ResourceManager {
	return e.resources
}

func (e *Engine) FileSystem() assets.FileSystem {
	return e.fs
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// Time is the scene time in seconds.
func (e *Engine) Time() float32 {
	return e.scene.Time()
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Data.U16[0] == keyEscape {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	e.resize = &[2]uint32{data.Data.U32[0], data.Data.U32[1]}
	return false
}
