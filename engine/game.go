package engine

// Game is the set of hooks the engine calls. Hooks left nil are skipped.
type Game struct {
	State interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once every resource is registered.
type Initialize func(e *Engine) error
type Update func(e *Engine, deltaTime float32) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
