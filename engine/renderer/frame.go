package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// MaxFramesInFlight bounds how many frames the CPU records ahead of the GPU.
const MaxFramesInFlight uint32 = 2

// waits are sliced so a cancelled context is noticed
const waitSlice = 100 * time.Millisecond

type frameState int

const (
	frameIdle frameState = iota
	frameAcquired
	frameRecordingMain
	frameMainRecorded
)

func (s frameState) String() string {
	switch s {
	case frameIdle:
		return "idle"
	case frameAcquired:
		return "acquired"
	case frameRecordingMain:
		return "recording main pass"
	case frameMainRecorded:
		return "main pass recorded"
	}
	return "unknown"
}

var ErrFrameState = errors.New("invalid frame state")

type passEdge struct {
	producer metadata.CommandsType
	consumer metadata.CommandsType
}

// imageUse records which frame slot, and which use of that slot, last
// rendered to a swapchain image.
type imageUse struct {
	slot   uint32
	serial uint64
}

type pendingSubmit struct {
	pass metadata.CommandsType
	cb   *metadata.CommandBuffer
}

// FrameSubmitter drives one rendered frame: acquire, record per pass,
// submit in dependency order, present. Fences, semaphores and command
// buffers are indexed by the frame index. Everything a material writes is
// indexed by the swapchain image index.
type FrameSubmitter struct {
	backend           RendererBackend
	maxFramesInFlight uint32
	currentFrame      uint32
	imageIndex        uint32
	state             frameState
	generation        uint32

	inFlightFences []*metadata.Fence
	// serial of the latest frame recorded in each slot, 0 when unused
	slotSerials []uint64
	// the frame that last used each swapchain image
	imagesInFlight []imageUse
	serial         uint64
	imageAvailable []*metadata.Semaphore
	renderFinished []*metadata.Semaphore
	ready          [][metadata.PassCount]*metadata.Semaphore
	edges          []map[passEdge]*metadata.Semaphore

	commandBuffers map[metadata.BufferIndex][]*metadata.CommandBuffer
	pending        []pendingSubmit
}

func NewFrameSubmitter(backend RendererBackend, maxFramesInFlight uint32) (_ *FrameSubmitter, err error) {
	if maxFramesInFlight == 0 {
		return nil, fmt.Errorf("max frames in flight must be positive")
	}
	fs := &FrameSubmitter{
		backend:           backend,
		maxFramesInFlight: maxFramesInFlight,
		slotSerials:       make([]uint64, maxFramesInFlight),
		imagesInFlight:    make([]imageUse, backend.SwapchainImageCount()),
		commandBuffers:    make(map[metadata.BufferIndex][]*metadata.CommandBuffer),
	}
	defer func() {
		if err != nil {
			fs.Destroy()
		}
	}()

	for f := uint32(0); f < maxFramesInFlight; f++ {
		// created signaled so the first wait on each slot returns immediately
		fence, err := backend.FenceCreate(true)
		if err != nil {
			return nil, core.Fatalf("failed to create in-flight fence: %w", err)
		}
		fs.inFlightFences = append(fs.inFlightFences, fence)

		sem, err := backend.SemaphoreCreate(fmt.Sprintf("imageAvailable[%d]", f))
		if err != nil {
			return nil, core.Fatalf("failed to create semaphore: %w", err)
		}
		fs.imageAvailable = append(fs.imageAvailable, sem)

		sem, err = backend.SemaphoreCreate(fmt.Sprintf("renderFinished[%d]", f))
		if err != nil {
			return nil, core.Fatalf("failed to create semaphore: %w", err)
		}
		fs.renderFinished = append(fs.renderFinished, sem)

		var ready [metadata.PassCount]*metadata.Semaphore
		for p := range ready {
			ready[p], err = backend.SemaphoreCreate(fmt.Sprintf("%s[%d]", readySemaphoreNames[p], f))
			if err != nil {
				fs.ready = append(fs.ready, ready)
				return nil, core.Fatalf("failed to create semaphore: %w", err)
			}
		}
		fs.ready = append(fs.ready, ready)
		fs.edges = append(fs.edges, make(map[passEdge]*metadata.Semaphore))
	}

	if _, err := fs.CommandBuffer(metadata.BUFFER_INDEX_MAIN); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FrameSubmitter) CurrentFrame() uint32 {
	return fs.currentFrame
}

func (fs *FrameSubmitter) ImageIndex() uint32 {
	return fs.imageIndex
}

func (fs *FrameSubmitter) MaxFramesInFlight() uint32 {
	return fs.maxFramesInFlight
}

// Generation counts swapchain recreations.
func (fs *FrameSubmitter) Generation() uint32 {
	return fs.generation
}

// CommandBuffer returns the copy of the logical buffer index for the current
// frame, allocating one copy per frame on first use.
func (fs *FrameSubmitter) CommandBuffer(index metadata.BufferIndex) (*metadata.CommandBuffer, error) {
	copies, ok := fs.commandBuffers[index]
	if !ok {
		for f := uint32(0); f < fs.maxFramesInFlight; f++ {
			cb, err := fs.backend.CommandBufferAllocate(index)
			if err != nil {
				for _, c := range copies {
					fs.backend.CommandBufferFree(c)
				}
				return nil, core.Fatalf("failed to allocate command buffer %d: %w", index, err)
			}
			copies = append(copies, cb)
		}
		fs.commandBuffers[index] = copies
	}
	return copies[fs.currentFrame], nil
}

func (fs *FrameSubmitter) waitFence(ctx context.Context, fence *metadata.Fence) error {
	for {
		err := fs.backend.FenceWait(fence, waitSlice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrTimeout) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// WaitAvailableFramebuffer blocks until the frame slot about to be reused
// has finished on the GPU, then acquires the next swapchain image. It also
// waits for any older frame still reading the acquired image, after which
// the image's uniform copies may be written.
func (fs *FrameSubmitter) WaitAvailableFramebuffer(ctx context.Context) error {
	if fs.state != frameIdle {
		return fmt.Errorf("%w: wait for framebuffer while %s", ErrFrameState, fs.state)
	}
	fence := fs.inFlightFences[fs.currentFrame]
	if err := fs.waitFence(ctx, fence); err != nil {
		return fmt.Errorf("in-flight fence wait failed: %w", err)
	}

	var imageIndex uint32
	for {
		idx, err := fs.backend.AcquireNextImage(fs.imageAvailable[fs.currentFrame], waitSlice)
		if err == nil {
			imageIndex = idx
			break
		}
		if !errors.Is(err, core.ErrTimeout) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	// Once a slot is reused its fence belongs to a newer frame, and the wait
	// above on that slot already covered the older one.
	if prev := fs.imagesInFlight[imageIndex]; prev.serial != 0 && prev.slot != fs.currentFrame &&
		fs.slotSerials[prev.slot] == prev.serial {
		if err := fs.waitFence(ctx, fs.inFlightFences[prev.slot]); err != nil {
			return fmt.Errorf("image fence wait failed: %w", err)
		}
	}
	fs.serial++
	fs.slotSerials[fs.currentFrame] = fs.serial
	fs.imagesInFlight[imageIndex] = imageUse{slot: fs.currentFrame, serial: fs.serial}
	fs.imageIndex = imageIndex
	fs.pending = fs.pending[:0]
	fs.state = frameAcquired
	return nil
}

// StartRenderCommandBufferCreation begins the main command buffer and its
// render pass on the acquired image.
func (fs *FrameSubmitter) StartRenderCommandBufferCreation() (*metadata.CommandBuffer, error) {
	if fs.state != frameAcquired {
		return nil, fmt.Errorf("%w: start main pass while %s", ErrFrameState, fs.state)
	}
	cb, err := fs.CommandBuffer(metadata.BUFFER_INDEX_MAIN)
	if err != nil {
		return nil, err
	}
	if err := fs.backend.CommandBufferBegin(cb); err != nil {
		return nil, err
	}
	if err := fs.backend.RenderPassBegin(cb, metadata.MainPass, fs.imageIndex); err != nil {
		_ = fs.backend.CommandBufferReset(cb)
		return nil, err
	}
	fs.state = frameRecordingMain
	return cb, nil
}

func (fs *FrameSubmitter) EndRenderCommandBufferCreation() error {
	if fs.state != frameRecordingMain {
		return fmt.Errorf("%w: end main pass while %s", ErrFrameState, fs.state)
	}
	cb := fs.commandBuffers[metadata.BUFFER_INDEX_MAIN][fs.currentFrame]
	if err := fs.backend.RenderPassEnd(cb, metadata.MainPass); err != nil {
		return err
	}
	if err := fs.backend.CommandBufferEnd(cb); err != nil {
		return err
	}
	fs.state = frameMainRecorded
	return nil
}

// RecordMain scopes the main pass recording. On error or panic the command
// buffer is reset and the frame returns to the acquired state.
func (fs *FrameSubmitter) RecordMain(record func(cb *metadata.CommandBuffer) error) (err error) {
	cb, err := fs.StartRenderCommandBufferCreation()
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = fs.backend.CommandBufferReset(cb)
			fs.state = frameAcquired
		}
	}()
	if err = record(cb); err != nil {
		return err
	}
	if err = fs.EndRenderCommandBufferCreation(); err != nil {
		return err
	}
	done = true
	return nil
}

// Record scopes the recording of an offscreen pass into buffer index. The
// command buffer ends up either ended and ready for SubmitCommands or reset.
func (fs *FrameSubmitter) Record(pass metadata.CommandsType, index metadata.BufferIndex, record func(cb *metadata.CommandBuffer) error) (err error) {
	if fs.state != frameAcquired {
		return fmt.Errorf("%w: record %s while %s", ErrFrameState, pass, fs.state)
	}
	if !isOffscreen(pass) {
		return fmt.Errorf("%w: %s is not an offscreen pass", ErrFrameState, pass)
	}
	cb, err := fs.CommandBuffer(index)
	if err != nil {
		return err
	}
	if err := fs.backend.CommandBufferBegin(cb); err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			_ = fs.backend.CommandBufferReset(cb)
		}
	}()

	usesRenderPass := pass != metadata.ComputeParticlesPass
	if usesRenderPass {
		if err = fs.backend.RenderPassBegin(cb, pass, fs.imageIndex); err != nil {
			return err
		}
	}
	if err = record(cb); err != nil {
		return err
	}
	if usesRenderPass {
		if err = fs.backend.RenderPassEnd(cb, pass); err != nil {
			return err
		}
	}
	if err = fs.backend.CommandBufferEnd(cb); err != nil {
		return err
	}
	done = true
	return nil
}

// SubmitCommands queues the recorded buffer index for pass. The queue is
// flushed by RenderCommands in dependency order, so the call order of
// SubmitCommands does not matter.
func (fs *FrameSubmitter) SubmitCommands(pass metadata.CommandsType, index metadata.BufferIndex) error {
	switch {
	case pass == metadata.MainPass:
		return fmt.Errorf("%w: the main pass is submitted by RenderCommands", ErrFrameState)
	case pass == metadata.PostEffectPasses:
		return fmt.Errorf("%w: post effects are recorded inside the main pass", ErrFrameState)
	case fs.state == frameIdle:
		return fmt.Errorf("%w: submit %s without an acquired image", ErrFrameState, pass)
	}
	for _, p := range fs.pending {
		if p.pass == pass {
			return fmt.Errorf("%w: %s submitted twice in one frame", ErrFrameState, pass)
		}
	}
	copies, ok := fs.commandBuffers[index]
	if !ok {
		return fmt.Errorf("%w: command buffer %d was never recorded", ErrFrameState, index)
	}
	cb := copies[fs.currentFrame]
	if cb.State != metadata.COMMAND_BUFFER_STATE_RECORDING_ENDED {
		return fmt.Errorf("%w: command buffer %d is not ready for submission", ErrFrameState, index)
	}
	fs.pending = append(fs.pending, pendingSubmit{pass: pass, cb: cb})
	return nil
}

func (fs *FrameSubmitter) edgeSemaphore(producer, consumer metadata.CommandsType) (*metadata.Semaphore, error) {
	key := passEdge{producer: producer, consumer: consumer}
	edges := fs.edges[fs.currentFrame]
	if sem, ok := edges[key]; ok {
		return sem, nil
	}
	sem, err := fs.backend.SemaphoreCreate(fmt.Sprintf("%s->%s[%d]", producer, consumer, fs.currentFrame))
	if err != nil {
		return nil, core.Fatalf("failed to create semaphore: %w", err)
	}
	edges[key] = sem
	return sem, nil
}

func (fs *FrameSubmitter) pendingFor(pass metadata.CommandsType) *pendingSubmit {
	for i := range fs.pending {
		if fs.pending[i].pass == pass {
			return &fs.pending[i]
		}
	}
	return nil
}

// flushPending submits queued offscreen passes in dependency order and
// returns what the main pass has to wait on. Each producer signals one
// semaphore per consumer, so no binary semaphore is waited twice.
func (fs *FrameSubmitter) flushPending() ([]metadata.SemaphoreWait, error) {
	waits := make(map[metadata.CommandsType][]metadata.SemaphoreWait)
	queued := make([]metadata.CommandsType, 0, len(fs.pending))
	for _, pass := range submissionOrder {
		if fs.pendingFor(pass) != nil {
			queued = append(queued, pass)
		}
	}

	for i, pass := range queued {
		p := fs.pendingFor(pass)
		var consumers []metadata.CommandsType
		for _, later := range queued[i+1:] {
			if dependsOn(later, pass) {
				consumers = append(consumers, later)
			}
		}
		consumers = append(consumers, metadata.MainPass)

		signals := make([]*metadata.Semaphore, 0, len(consumers))
		for c, consumer := range consumers {
			sem := fs.ready[fs.currentFrame][readyIndex(pass)]
			if c > 0 {
				var err error
				if sem, err = fs.edgeSemaphore(pass, consumer); err != nil {
					return nil, err
				}
			}
			signals = append(signals, sem)
			waits[consumer] = append(waits[consumer], metadata.SemaphoreWait{Semaphore: sem, Stage: consumerStage(pass)})
		}

		if err := fs.backend.QueueSubmit(metadata.SubmitInfo{
			CommandBuffer: p.cb,
			Wait:          waits[pass],
			Signal:        signals,
		}); err != nil {
			return nil, core.Fatalf("failed to submit %s: %w", pass, err)
		}
	}
	return waits[metadata.MainPass], nil
}

// RenderCommands submits the queued passes and the main pass, presents the
// image and advances the frame index. core.ErrSwapchainOutOfDate means the
// frame was submitted but the swapchain must be recreated.
func (fs *FrameSubmitter) RenderCommands() error {
	if fs.state != frameMainRecorded {
		return fmt.Errorf("%w: render while %s", ErrFrameState, fs.state)
	}
	mainWaits, err := fs.flushPending()
	if err != nil {
		return err
	}

	waits := append([]metadata.SemaphoreWait{{
		Semaphore: fs.imageAvailable[fs.currentFrame],
		Stage:     metadata.WaitStageColorAttachmentOutput,
	}}, mainWaits...)

	fence := fs.inFlightFences[fs.currentFrame]
	if err := fs.backend.FenceReset(fence); err != nil {
		return core.Fatalf("failed to reset in-flight fence: %w", err)
	}
	if err := fs.backend.QueueSubmit(metadata.SubmitInfo{
		CommandBuffer: fs.commandBuffers[metadata.BUFFER_INDEX_MAIN][fs.currentFrame],
		Wait:          waits,
		Signal:        []*metadata.Semaphore{fs.renderFinished[fs.currentFrame]},
		Fence:         fence,
	}); err != nil {
		return core.Fatalf("failed to submit main pass: %w", err)
	}

	presentErr := fs.backend.QueuePresent(fs.renderFinished[fs.currentFrame], fs.imageIndex)
	fs.pending = fs.pending[:0]
	fs.state = frameIdle
	fs.currentFrame = (fs.currentFrame + 1) % fs.maxFramesInFlight
	return presentErr
}

// AbortFrame drops an acquired frame after a recording failure. The device
// is drained and the image available semaphore replaced, since it was
// signaled by the acquire and will never be waited on.
func (fs *FrameSubmitter) AbortFrame() error {
	if fs.state == frameIdle {
		return nil
	}
	fs.pending = fs.pending[:0]
	fs.state = frameIdle
	if err := fs.backend.WaitIdle(); err != nil {
		return err
	}
	old := fs.imageAvailable[fs.currentFrame]
	sem, err := fs.backend.SemaphoreCreate(old.Name)
	if err != nil {
		return core.Fatalf("failed to create semaphore: %w", err)
	}
	fs.backend.SemaphoreDestroy(old)
	fs.imageAvailable[fs.currentFrame] = sem
	return nil
}

// Resize drains the device and recreates everything that depends on the
// swapchain. Materials, pipelines and their instances are untouched.
func (fs *FrameSubmitter) Resize(width, height uint32) error {
	if err := fs.AbortFrame(); err != nil {
		return err
	}
	if err := fs.backend.WaitIdle(); err != nil {
		return err
	}
	before := fs.backend.SwapchainImageCount()
	if err := fs.backend.RecreateSwapchain(width, height); err != nil {
		return err
	}
	if after := fs.backend.SwapchainImageCount(); after != before {
		return core.Fatalf("swapchain image count changed from %d to %d on resize", before, after)
	}
	clear(fs.imagesInFlight)
	fs.freeCommandBuffers()
	if _, err := fs.CommandBuffer(metadata.BUFFER_INDEX_MAIN); err != nil {
		return err
	}
	fs.generation++
	core.LogInfo("swapchain recreated (%dx%d), generation %d", width, height, fs.generation)
	return nil
}

func (fs *FrameSubmitter) freeCommandBuffers() {
	for index, copies := range fs.commandBuffers {
		for _, cb := range copies {
			fs.backend.CommandBufferFree(cb)
		}
		delete(fs.commandBuffers, index)
	}
}

// Destroy frees command buffers and sync objects. The device must be idle.
func (fs *FrameSubmitter) Destroy() {
	fs.freeCommandBuffers()
	for _, edges := range fs.edges {
		for _, sem := range edges {
			fs.backend.SemaphoreDestroy(sem)
		}
	}
	for _, ready := range fs.ready {
		for _, sem := range ready {
			if sem != nil {
				fs.backend.SemaphoreDestroy(sem)
			}
		}
	}
	for _, sem := range fs.renderFinished {
		fs.backend.SemaphoreDestroy(sem)
	}
	for _, sem := range fs.imageAvailable {
		fs.backend.SemaphoreDestroy(sem)
	}
	for _, fence := range fs.inFlightFences {
		fs.backend.FenceDestroy(fence)
	}
	fs.edges, fs.ready, fs.renderFinished, fs.imageAvailable, fs.inFlightFences = nil, nil, nil, nil, nil
}
