// Package headless is an in-memory device layer. It tracks every object and
// every submission so frame pacing and synchronization can be checked
// without a GPU.
package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/chewman/engine/containers"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

/** @brief Backend configuration. */
type Config struct {
	SwapchainSize uint32
	Width         uint32
	Height        uint32
	/** @brief Submissions complete immediately. Otherwise CompleteNext drives the queue. */
	AutoComplete bool
	/** @brief Capacity of the queue of incomplete submissions. */
	MaxPending int
	/** @brief How many of the latest submissions Submissions returns. */
	History         int
	SwapchainFormat uint32
	Device          metadata.DeviceInfo
}

func DefaultConfig() Config {
	return Config{
		SwapchainSize:   3,
		SwapchainFormat: 44, // VK_FORMAT_B8G8R8A8_UNORM
		Width:           1280,
		Height:          720,
		AutoComplete:    true,
		MaxPending:      64,
		History:         256,
		Device: metadata.DeviceInfo{
			Name:              "headless",
			VendorID:          0x10de,
			DeviceID:          0x1,
			DriverVersion:     1,
			PipelineCacheUUID: [16]byte{'h', 'e', 'a', 'd', 'l', 'e', 's', 's'},
		},
	}
}

// Op names a creation call that can be made to fail.
type Op string

const (
	OpShaderModuleCreate     Op = "ShaderModuleCreate"
	OpPipelineCreate         Op = "PipelineCreate"
	OpPipelineCacheCreate    Op = "PipelineCacheCreate"
	OpBufferCreate           Op = "BufferCreate"
	OpTextureCreate          Op = "TextureCreate"
	OpDescriptorSetsAllocate Op = "DescriptorSetsAllocate"
	OpRecreateSwapchain      Op = "RecreateSwapchain"
)

/** @brief Counters for everything the backend has done. */
type Stats struct {
	Submits   int
	Presents  int
	DrawCalls int

	BufferWrites            int
	DescriptorSetsAllocated int
	DescriptorSetUpdates    int
	PipelinesCreated        int
	PipelinesDestroyed      int

	SwapchainsCreated     int
	SwapchainsDestroyed   int
	ImageViewsCreated     int
	ImageViewsDestroyed   int
	DepthImagesCreated    int
	DepthImagesDestroyed  int
	ColorImagesCreated    int
	ColorImagesDestroyed  int
	FramebuffersCreated   int
	FramebuffersDestroyed int

	/** @brief A buffer was written while a pending submission still read it. */
	HazardViolations int
	/** @brief A binary semaphore was signaled twice or waited while unsignaled. */
	SemaphoreViolations int
	/** @brief A command buffer was begun while its last submission was pending. */
	CommandBufferViolations int
	/** @brief A pipeline was destroyed while a submission was pending. */
	PipelineDestroyViolations int
}

type fence struct {
	done chan struct{}
}

func (f *fence) signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type semaphore struct {
	signaled bool
}

type commandBuffer struct {
	pass    metadata.CommandsType
	buffers map[*metadata.Buffer]struct{}
	pending int
}

type descriptorSet struct {
	buffers []*metadata.Buffer
}

type descriptorPool struct {
	allocated uint32
}

type pipelineCache struct {
	data []byte
}

// Submission is one recorded QueueSubmit.
type Submission struct {
	Info    metadata.SubmitInfo
	Frame   int
	buffers []*metadata.Buffer
}

type Backend struct {
	mu     sync.Mutex
	config Config
	width  uint32
	height uint32

	initialized  bool
	nextImage    uint32
	presentCount int
	passTextures map[metadata.TextureType]*metadata.Texture
	format       uint32
	nextFormat   uint32

	pending  *containers.RingQueue[*Submission]
	history  *containers.RingQueue[*Submission]
	contents map[*metadata.Buffer][]byte
	failures map[Op]int

	outOfDateOnAcquire bool
	outOfDateOnPresent bool

	live  int
	stats Stats
}

func New(config Config) *Backend {
	if config.MaxPending <= 0 {
		config.MaxPending = 64
	}
	if config.History <= 0 {
		config.History = 256
	}
	return &Backend{
		config:       config,
		width:        config.Width,
		height:       config.Height,
		passTextures: make(map[metadata.TextureType]*metadata.Texture),
		format:       config.SwapchainFormat,
		pending:      containers.NewRingQueue[*Submission](config.MaxPending),
		history:      containers.NewRingQueue[*Submission](config.History),
		contents:     make(map[*metadata.Buffer][]byte),
		failures:     make(map[Op]int),
	}
}

func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.config.SwapchainSize < 2 {
		return core.Fatalf("headless: swapchain needs at least 2 images, got %d", b.config.SwapchainSize)
	}
	b.createSwapchainObjects()
	b.initialized = true
	core.LogInfo("headless device initialized (%dx%d, %d images)", b.width, b.height, b.config.SwapchainSize)
	return nil
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil
	}
	b.destroySwapchainObjects()
	b.initialized = false
	return nil
}

func (b *Backend) createSwapchainObjects() {
	n := int(b.config.SwapchainSize)
	b.stats.SwapchainsCreated++
	b.stats.ImageViewsCreated += n
	b.stats.DepthImagesCreated++
	b.stats.ColorImagesCreated++
	b.stats.FramebuffersCreated += n
	for t := metadata.TextureShadowMapDirect; t <= metadata.TextureLastEffect; t++ {
		b.passTextures[t] = &metadata.Texture{
			Name:      t.String(),
			Width:     b.width,
			Height:    b.height,
			MipLevels: 1,
			Type:      t,
		}
	}
}

func (b *Backend) destroySwapchainObjects() {
	n := int(b.config.SwapchainSize)
	b.stats.SwapchainsDestroyed++
	b.stats.ImageViewsDestroyed += n
	b.stats.DepthImagesDestroyed++
	b.stats.ColorImagesDestroyed++
	b.stats.FramebuffersDestroyed += n
	clear(b.passTextures)
}

func (b *Backend) WaitIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.pending.IsEmpty() {
		b.completeOne()
	}
	return nil
}

func (b *Backend) DeviceInfo() metadata.DeviceInfo {
	return b.config.Device
}

func (b *Backend) SwapchainImageCount() uint32 {
	return b.config.SwapchainSize
}

func (b *Backend) SwapchainFormat() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format
}

// SetSwapchainFormat makes the next swapchain recreation report format.
func (b *Backend) SetSwapchainFormat(format uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextFormat = format
}

func (b *Backend) Extent() (uint32, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *Backend) RecreateSwapchain(width, height uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpRecreateSwapchain); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("headless: invalid extent %dx%d", width, height)
	}
	b.destroySwapchainObjects()
	b.width, b.height = width, height
	b.nextImage = 0
	if b.nextFormat != 0 {
		b.format, b.nextFormat = b.nextFormat, 0
	}
	b.createSwapchainObjects()
	return nil
}

// FailNext makes the next call of op fail with a fatal error.
func (b *Backend) FailNext(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op]++
}

func (b *Backend) injected(op Op) error {
	if b.failures[op] == 0 {
		return nil
	}
	b.failures[op]--
	return core.Fatalf("headless: injected %s failure", op)
}

// SetOutOfDate makes the next acquire or present report an out of date swapchain.
func (b *Backend) SetOutOfDate(onAcquire, onPresent bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outOfDateOnAcquire = onAcquire
	b.outOfDateOnPresent = onPresent
}

func (b *Backend) FenceCreate(signaled bool) (*metadata.Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := &fence{done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	b.live++
	return &metadata.Fence{InternalData: f}, nil
}

func (b *Backend) FenceWait(handle *metadata.Fence, timeout time.Duration) error {
	b.mu.Lock()
	done := handle.InternalData.(*fence).done
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return core.ErrTimeout
	}
}

func (b *Backend) FenceReset(handle *metadata.Fence) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := handle.InternalData.(*fence)
	if !f.signaled() {
		return fmt.Errorf("headless: resetting an unsignaled fence")
	}
	f.done = make(chan struct{})
	return nil
}

func (b *Backend) FenceDestroy(handle *metadata.Fence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) SemaphoreCreate(name string) (*metadata.Semaphore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live++
	return &metadata.Semaphore{Name: name, InternalData: &semaphore{}}, nil
}

func (b *Backend) SemaphoreDestroy(handle *metadata.Semaphore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) signal(handle *metadata.Semaphore) {
	s := handle.InternalData.(*semaphore)
	if s.signaled {
		b.stats.SemaphoreViolations++
		core.LogWarn("semaphore %s signaled twice", handle.Name)
	}
	s.signaled = true
}

func (b *Backend) wait(handle *metadata.Semaphore) {
	s := handle.InternalData.(*semaphore)
	if !s.signaled {
		b.stats.SemaphoreViolations++
		core.LogWarn("semaphore %s waited while unsignaled", handle.Name)
	}
	s.signaled = false
}

func (b *Backend) CommandBufferAllocate(index metadata.BufferIndex) (*metadata.CommandBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live++
	return &metadata.CommandBuffer{
		Index:        index,
		State:        metadata.COMMAND_BUFFER_STATE_READY,
		InternalData: &commandBuffer{buffers: make(map[*metadata.Buffer]struct{})},
	}, nil
}

func (b *Backend) CommandBufferFree(cb *metadata.CommandBuffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb.State = metadata.COMMAND_BUFFER_STATE_NOT_ALLOCATED
	b.live--
}

func (b *Backend) CommandBufferBegin(cb *metadata.CommandBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch cb.State {
	case metadata.COMMAND_BUFFER_STATE_RECORDING, metadata.COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return fmt.Errorf("headless: command buffer %d is already recording", cb.Index)
	case metadata.COMMAND_BUFFER_STATE_NOT_ALLOCATED:
		return fmt.Errorf("headless: command buffer %d is not allocated", cb.Index)
	}
	internal := cb.InternalData.(*commandBuffer)
	if internal.pending > 0 {
		b.stats.CommandBufferViolations++
	}
	clear(internal.buffers)
	cb.State = metadata.COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (b *Backend) CommandBufferEnd(cb *metadata.CommandBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb.State != metadata.COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("headless: command buffer %d ended while not recording", cb.Index)
	}
	cb.State = metadata.COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (b *Backend) CommandBufferReset(cb *metadata.CommandBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(cb.InternalData.(*commandBuffer).buffers)
	cb.State = metadata.COMMAND_BUFFER_STATE_READY
	return nil
}

func (b *Backend) RenderPassBegin(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb.State != metadata.COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("headless: render pass %s begun outside recording", pass)
	}
	if imageIndex >= b.config.SwapchainSize {
		return fmt.Errorf("headless: image index %d out of range", imageIndex)
	}
	cb.InternalData.(*commandBuffer).pass = pass
	cb.State = metadata.COMMAND_BUFFER_STATE_IN_RENDER_PASS
	return nil
}

func (b *Backend) RenderPassEnd(cb *metadata.CommandBuffer, pass metadata.CommandsType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb.State != metadata.COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("headless: render pass %s ended outside a render pass", pass)
	}
	cb.State = metadata.COMMAND_BUFFER_STATE_RECORDING
	return nil
}

// AcquireNextImage hands out images round robin.
func (b *Backend) AcquireNextImage(signal *metadata.Semaphore, timeout time.Duration) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outOfDateOnAcquire {
		b.outOfDateOnAcquire = false
		return 0, core.ErrSwapchainOutOfDate
	}
	idx := b.nextImage
	b.nextImage = (b.nextImage + 1) % b.config.SwapchainSize
	b.signal(signal)
	return idx, nil
}

func (b *Backend) QueueSubmit(info metadata.SubmitInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb := info.CommandBuffer
	if cb.State != metadata.COMMAND_BUFFER_STATE_RECORDING_ENDED {
		return fmt.Errorf("headless: command buffer %d submitted before it was ended", cb.Index)
	}
	for _, w := range info.Wait {
		b.wait(w.Semaphore)
	}
	for _, s := range info.Signal {
		b.signal(s)
	}

	internal := cb.InternalData.(*commandBuffer)
	sub := &Submission{
		Info:  info,
		Frame: b.presentCount,
	}
	sub.Info.Wait = append([]metadata.SemaphoreWait(nil), info.Wait...)
	sub.Info.Signal = append([]*metadata.Semaphore(nil), info.Signal...)
	for buf := range internal.buffers {
		sub.buffers = append(sub.buffers, buf)
	}
	cb.State = metadata.COMMAND_BUFFER_STATE_SUBMITTED
	if b.history.IsFull() {
		_, _ = b.history.Dequeue()
	}
	_ = b.history.Enqueue(sub)
	b.stats.Submits++

	if b.config.AutoComplete {
		b.complete(sub)
		return nil
	}
	if err := b.pending.Enqueue(sub); err != nil {
		return fmt.Errorf("headless: %w", err)
	}
	internal.pending++
	return nil
}

func (b *Backend) complete(sub *Submission) {
	if sub.Info.Fence != nil {
		f := sub.Info.Fence.InternalData.(*fence)
		if !f.signaled() {
			close(f.done)
		}
	}
}

func (b *Backend) completeOne() bool {
	sub, err := b.pending.Dequeue()
	if err != nil {
		return false
	}
	sub.Info.CommandBuffer.InternalData.(*commandBuffer).pending--
	b.complete(sub)
	return true
}

// CompleteNext finishes the oldest pending submission.
func (b *Backend) CompleteNext() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completeOne()
}

// CompleteFrame finishes pending submissions up to and including the
// oldest one that signals a fence.
func (b *Backend) CompleteFrame() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		sub, err := b.pending.Peek()
		if err != nil {
			return false
		}
		b.completeOne()
		if sub.Info.Fence != nil {
			return true
		}
	}
}

// PendingFrames counts pending submissions that signal a fence.
func (b *Backend) PendingFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := 0; i < b.pending.Len(); i++ {
		if b.pending.At(i).Info.Fence != nil {
			n++
		}
	}
	return n
}

func (b *Backend) QueuePresent(wait *metadata.Semaphore, imageIndex uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wait(wait)
	b.presentCount++
	b.stats.Presents++
	if b.outOfDateOnPresent {
		b.outOfDateOnPresent = false
		return core.ErrSwapchainOutOfDate
	}
	return nil
}

func (b *Backend) ShaderModuleCreate(name string, stage metadata.ShaderType, entryPoint string, code []byte) (*metadata.ShaderModule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpShaderModuleCreate); err != nil {
		return nil, err
	}
	if len(code)%4 != 0 {
		return nil, core.Fatalf("headless: shader %s code size %d is not a multiple of 4", name, len(code))
	}
	b.live++
	return &metadata.ShaderModule{Name: name, Stage: stage, EntryPoint: entryPoint}, nil
}

func (b *Backend) ShaderModuleDestroy(module *metadata.ShaderModule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live++
	return &metadata.DescriptorSetLayout{Bindings: append([]metadata.DescriptorBinding(nil), bindings...)}, nil
}

func (b *Backend) DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) PipelineLayoutCreate(setLayouts []*metadata.DescriptorSetLayout) (*metadata.PipelineLayout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live++
	return &metadata.PipelineLayout{SetLayouts: append([]*metadata.DescriptorSetLayout(nil), setLayouts...)}, nil
}

func (b *Backend) PipelineLayoutDestroy(layout *metadata.PipelineLayout) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

// PipelineCreate appends the pipeline name to the cache blob, standing in
// for the driver's compiled state.
func (b *Backend) PipelineCreate(config *metadata.PipelineConfig, cache *metadata.PipelineCache) (*metadata.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpPipelineCreate); err != nil {
		return nil, err
	}
	if len(config.Stages) == 0 {
		return nil, core.Fatalf("headless: pipeline %s has no stages", config.Name)
	}
	if cache != nil {
		pc := cache.InternalData.(*pipelineCache)
		pc.data = append(pc.data, config.Name...)
		pc.data = append(pc.data, '\n')
	}
	b.live++
	b.stats.PipelinesCreated++
	return &metadata.Pipeline{Config: config}, nil
}

func (b *Backend) PipelineDestroy(pipeline *metadata.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending.IsEmpty() {
		b.stats.PipelineDestroyViolations++
		core.LogWarn("pipeline %s destroyed while %d submissions are pending", pipeline.Config.Name, b.pending.Len())
	}
	b.live--
	b.stats.PipelinesDestroyed++
}

func (b *Backend) PipelineCacheCreate(initialData []byte) (*metadata.PipelineCache, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpPipelineCacheCreate); err != nil {
		return nil, err
	}
	b.live++
	return &metadata.PipelineCache{InternalData: &pipelineCache{data: append([]byte(nil), initialData...)}}, nil
}

func (b *Backend) PipelineCacheData(cache *metadata.PipelineCache) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), cache.InternalData.(*pipelineCache).data...), nil
}

func (b *Backend) PipelineCacheDestroy(cache *metadata.PipelineCache) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) BufferCreate(usage metadata.BufferUsage, size uint64) (*metadata.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpBufferCreate); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, core.Fatalf("headless: zero sized buffer")
	}
	buf := &metadata.Buffer{Size: size, Usage: usage}
	b.contents[buf] = make([]byte, size)
	b.live++
	return buf, nil
}

// BufferWrite counts a hazard when a submission that reads buffer is still pending.
func (b *Backend) BufferWrite(buffer *metadata.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	mem, ok := b.contents[buffer]
	if !ok {
		return fmt.Errorf("headless: write to a destroyed buffer")
	}
	if offset+uint64(len(data)) > buffer.Size {
		return fmt.Errorf("headless: write of %d bytes at %d overflows buffer of %d", len(data), offset, buffer.Size)
	}
	for i := 0; i < b.pending.Len(); i++ {
		sub := b.pending.At(i)
		for _, used := range sub.buffers {
			if used == buffer {
				b.stats.HazardViolations++
				core.LogWarn("buffer written while frame %d reads it", sub.Frame)
			}
		}
	}
	copy(mem[offset:], data)
	b.stats.BufferWrites++
	return nil
}

func (b *Backend) BufferDestroy(buffer *metadata.Buffer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.contents, buffer)
	b.live--
}

// BufferContents returns a copy of the buffer memory.
func (b *Backend) BufferContents(buffer *metadata.Buffer) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.contents[buffer]...)
}

func (b *Backend) TextureCreate(config metadata.TextureConfig, image *metadata.ImageData) (*metadata.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpTextureCreate); err != nil {
		return nil, err
	}
	if image == nil || uint32(len(image.Pixels)) != image.Width*image.Height*4*max(config.Layers, 1) {
		return nil, core.Fatalf("headless: texture %s pixel data does not match its size", config.Name)
	}
	b.live++
	return &metadata.Texture{
		Name:      config.Name,
		Width:     image.Width,
		Height:    image.Height,
		MipLevels: 1,
		Type:      metadata.TextureImageFile,
	}, nil
}

func (b *Backend) TextureDestroy(texture *metadata.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) PassTexture(textureType metadata.TextureType) (*metadata.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tex, ok := b.passTextures[textureType]
	if !ok {
		return nil, fmt.Errorf("headless: no pass texture %s", textureType)
	}
	return tex, nil
}

func (b *Backend) DescriptorPoolCreate(sizes metadata.DescriptorPoolSizes) (*metadata.DescriptorPool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sizes.MaxSets == 0 {
		return nil, core.Fatalf("headless: descriptor pool without sets")
	}
	b.live++
	return &metadata.DescriptorPool{Sizes: sizes, InternalData: &descriptorPool{}}, nil
}

func (b *Backend) DescriptorPoolDestroy(pool *metadata.DescriptorPool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) DescriptorSetsAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout, count uint32) ([]*metadata.DescriptorSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.injected(OpDescriptorSetsAllocate); err != nil {
		return nil, err
	}
	p := pool.InternalData.(*descriptorPool)
	if p.allocated+count > pool.Sizes.MaxSets {
		return nil, core.Fatalf("headless: descriptor pool exhausted (%d of %d sets)", p.allocated, pool.Sizes.MaxSets)
	}
	p.allocated += count
	sets := make([]*metadata.DescriptorSet, count)
	for i := range sets {
		sets[i] = &metadata.DescriptorSet{Layout: layout, InternalData: &descriptorSet{}}
	}
	b.stats.DescriptorSetsAllocated += int(count)
	return sets, nil
}

func (b *Backend) DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ds := set.InternalData.(*descriptorSet)
	ds.buffers = ds.buffers[:0]
	for _, w := range writes {
		if w.Buffer != nil {
			ds.buffers = append(ds.buffers, w.Buffer)
		}
	}
	b.stats.DescriptorSetUpdates++
	return nil
}

func (b *Backend) GeometryCreate(vertices []byte, vertexCount uint32, indices []uint32) (*metadata.Geometry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vertexCount == 0 {
		return nil, core.Fatalf("headless: geometry without vertices")
	}
	b.live++
	return &metadata.Geometry{VertexCount: vertexCount, IndexCount: uint32(len(indices))}, nil
}

func (b *Backend) GeometryDestroy(geometry *metadata.Geometry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live--
}

func (b *Backend) CmdBindPipeline(cb *metadata.CommandBuffer, pipeline *metadata.Pipeline) {}

func (b *Backend) CmdBindDescriptorSets(cb *metadata.CommandBuffer, layout *metadata.PipelineLayout, firstSet uint32, sets []*metadata.DescriptorSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	internal := cb.InternalData.(*commandBuffer)
	for _, set := range sets {
		for _, buf := range set.InternalData.(*descriptorSet).buffers {
			internal.buffers[buf] = struct{}{}
		}
	}
}

func (b *Backend) CmdDrawGeometry(cb *metadata.CommandBuffer, geometry *metadata.Geometry, instanceCount uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.DrawCalls++
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// LiveObjects counts created objects not yet destroyed.
func (b *Backend) LiveObjects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Submissions returns the latest Config.History submissions in order.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Submission, b.history.Len())
	for i := range out {
		out[i] = *b.history.At(i)
	}
	return out
}
