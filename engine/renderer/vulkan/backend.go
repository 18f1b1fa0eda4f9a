package vulkan

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/platform"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

var _ renderer.RendererBackend = (*Backend)(nil)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

var waitStages = map[metadata.WaitStage]vk.PipelineStageFlags{
	metadata.WaitStageColorAttachmentOutput: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
	metadata.WaitStageFragmentShader:        vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	metadata.WaitStageVertexInput:           vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
}

// Backend is the Vulkan device layer driven by the renderer.
type Backend struct {
	platform *platform.Platform
	settings core.EngineSettings
	context  *VulkanContext
}

func New(p *platform.Platform, settings core.EngineSettings) *Backend {
	return &Backend{
		platform: p,
		settings: settings,
		context: &VulkanContext{
			RenderPasses: make(map[metadata.CommandsType]*VulkanRenderpass),
			PassTargets:  make(map[metadata.CommandsType]*passTarget),
		},
	}
}

func (b *Backend) Initialize() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return core.Fatalf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return core.Fatalf("failed to initialize vk: %w", err)
	}

	// TODO: custom allocator.
	b.context.Allocator = nil

	if err := b.createInstance(); err != nil {
		return err
	}

	// Debugger
	if b.settings.UseValidation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := check(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg), "vkCreateDebugReportCallbackEXT"); err != nil {
			return err
		}
		b.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.platform.Window.CreateWindowSurface(b.context.Instance, nil)
	if err != nil {
		return core.Fatalf("vulkan surface creation failed: %w", err)
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(b.context, b.settings); err != nil {
		return err
	}

	width, height := b.platform.FramebufferSize()
	sc, err := SwapchainCreate(b.context, width, height, b.settings.SwapchainSize, b.settings.PresentMode)
	if err != nil {
		return err
	}
	b.context.Swapchain = sc
	b.context.FramebufferWidth = sc.Extent.Width
	b.context.FramebufferHeight = sc.Extent.Height

	if err := b.createRenderPasses(); err != nil {
		return err
	}
	if err := b.createSwapchainTargets(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (b *Backend) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.settings.ApplicationName),
		PEngineName:        VulkanSafeString("Chewman Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, b.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if b.settings.UseValidation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredLayers = []string{validationLayerName}
		if err := checkLayers(requiredLayers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if err := check(vk.CreateInstance(&createInfo, b.context.Allocator, &instance), "vkCreateInstance"); err != nil {
		return err
	}
	b.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return core.Fatalf("failed to load instance functions: %w", err)
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

// checkLayers verifies every required validation layer is installed.
func checkLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if cString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return core.Fatalf("required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (b *Backend) mainRenderpassConfig() VulkanRenderpassConfig {
	samples := b.context.Device.MSAASamples
	return VulkanRenderpassConfig{
		ColorFormats: []vk.Format{b.context.Swapchain.ImageFormat.Format},
		DepthFormat:  b.context.Device.DepthFormat,
		Samples:      samples,
		Resolve:      samples > vk.SampleCount1Bit,
		Present:      true,
		ClearColor:   [4]float32{0.0, 0.0, 0.2, 1.0},
	}
}

// createRenderPasses builds the main pass and one pass per offscreen target.
// Render passes only depend on formats, so they survive swapchain recreation.
func (b *Backend) createRenderPasses() error {
	rp, err := RenderpassCreate(b.context, b.mainRenderpassConfig())
	if err != nil {
		return err
	}
	b.context.RenderPasses[metadata.MainPass] = rp
	for _, desc := range passTargetDescs(b.settings) {
		rp, err := RenderpassCreate(b.context, passRenderpassConfig(b.context, desc))
		if err != nil {
			return err
		}
		b.context.RenderPasses[desc.Pass] = rp
	}
	return nil
}

func (b *Backend) createSwapchainTargets() error {
	ctx := b.context
	sc := ctx.Swapchain
	main := ctx.RenderPasses[metadata.MainPass]

	if main.Config.Resolve {
		msColor, err := ImageCreate(ctx, VulkanImageConfig{
			Width:      sc.Extent.Width,
			Height:     sc.Extent.Height,
			Format:     sc.ImageFormat.Format,
			Usage:      vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransientAttachmentBit),
			Samples:    main.Config.Samples,
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			CreateView: true,
		})
		if err != nil {
			return err
		}
		ctx.MultisampleColor = msColor
	}

	sc.Framebuffers = make([]*VulkanFramebuffer, 0, sc.ImageCount)
	for _, view := range sc.Views {
		attachments := []vk.ImageView{view, sc.DepthAttachment.View}
		if main.Config.Resolve {
			attachments = []vk.ImageView{ctx.MultisampleColor.View, sc.DepthAttachment.View, view}
		}
		fb, err := FramebufferCreate(ctx, main, sc.Extent.Width, sc.Extent.Height, 1, attachments)
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}

	for _, desc := range passTargetDescs(b.settings) {
		target, err := passTargetCreate(ctx, ctx.RenderPasses[desc.Pass], desc, sc.Extent.Width, sc.Extent.Height)
		if err != nil {
			return err
		}
		ctx.PassTargets[desc.Pass] = target
	}
	return nil
}

func (b *Backend) destroySwapchainTargets() {
	ctx := b.context
	for pass, target := range ctx.PassTargets {
		target.destroy(ctx)
		delete(ctx.PassTargets, pass)
	}
	if ctx.Swapchain != nil {
		for _, fb := range ctx.Swapchain.Framebuffers {
			fb.Destroy(ctx)
		}
		ctx.Swapchain.Framebuffers = nil
	}
	ctx.MultisampleColor.ImageDestroy(ctx)
	ctx.MultisampleColor = nil
}

func (b *Backend) Shutdown() error {
	ctx := b.context
	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

		// Destroy in the opposite order of creation.
		b.destroySwapchainTargets()
		for pass, rp := range ctx.RenderPasses {
			rp.RenderpassDestroy(ctx)
			delete(ctx.RenderPasses, pass)
		}
		if ctx.Swapchain != nil {
			ctx.Swapchain.SwapchainDestroy(ctx)
			ctx.Swapchain = nil
		}

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(ctx)
	}

	if ctx.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}

	if ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}

	if ctx.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
	return nil
}

func (b *Backend) WaitIdle() error {
	return check(vk.DeviceWaitIdle(b.context.Device.LogicalDevice), "vkDeviceWaitIdle")
}

func (b *Backend) DeviceInfo() metadata.DeviceInfo {
	return b.context.Device.Info()
}

func (b *Backend) SwapchainImageCount() uint32 {
	return b.context.Swapchain.ImageCount
}

func (b *Backend) Extent() (uint32, uint32) {
	return b.context.FramebufferWidth, b.context.FramebufferHeight
}

// RecreateSwapchain keeps the image count of the old swapchain, since every
// per-image resource of the renderer is sized by it.
func (b *Backend) RecreateSwapchain(width, height uint32) error {
	ctx := b.context
	// If already being recreated, do not try again.
	if ctx.RecreatingSwapchain {
		return core.ErrSwapchainBooting
	}
	// Detect if the window is too small to be drawn to
	if width == 0 || height == 0 {
		core.LogDebug("RecreateSwapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}
	ctx.RecreatingSwapchain = true
	defer func() { ctx.RecreatingSwapchain = false }()

	if err := b.WaitIdle(); err != nil {
		return err
	}

	// Requery support
	if err := DeviceQuerySwapchainSupport(ctx.Device.PhysicalDevice, ctx.Surface, &ctx.Device.SwapchainSupport); err != nil {
		return err
	}

	imageCount := ctx.Swapchain.ImageCount
	format := ctx.Swapchain.ImageFormat.Format
	b.destroySwapchainTargets()
	ctx.Swapchain.SwapchainDestroy(ctx)

	sc, err := SwapchainCreate(ctx, width, height, imageCount, b.settings.PresentMode)
	if err != nil {
		return err
	}
	ctx.Swapchain = sc
	if sc.ImageCount != imageCount {
		return core.Fatalf("swapchain image count changed from %d to %d", imageCount, sc.ImageCount)
	}
	ctx.FramebufferWidth = sc.Extent.Width
	ctx.FramebufferHeight = sc.Extent.Height

	if sc.ImageFormat.Format != format {
		ctx.RenderPasses[metadata.MainPass].RenderpassDestroy(ctx)
		rp, err := RenderpassCreate(ctx, b.mainRenderpassConfig())
		if err != nil {
			return err
		}
		ctx.RenderPasses[metadata.MainPass] = rp
	}
	return b.createSwapchainTargets()
}

func (b *Backend) SwapchainFormat() uint32 {
	return uint32(b.context.Swapchain.ImageFormat.Format)
}

func fenceOf(fence *metadata.Fence) *VulkanFence {
	return fence.InternalData.(*VulkanFence)
}

func semaphoreOf(semaphore *metadata.Semaphore) *VulkanSemaphore {
	return semaphore.InternalData.(*VulkanSemaphore)
}

func (b *Backend) FenceCreate(signaled bool) (*metadata.Fence, error) {
	f, err := NewFence(b.context, signaled)
	if err != nil {
		return nil, err
	}
	return &metadata.Fence{InternalData: f}, nil
}

func (b *Backend) FenceWait(fence *metadata.Fence, timeout time.Duration) error {
	return fenceOf(fence).FenceWait(b.context, timeout)
}

func (b *Backend) FenceReset(fence *metadata.Fence) error {
	return fenceOf(fence).FenceReset(b.context)
}

func (b *Backend) FenceDestroy(fence *metadata.Fence) {
	fenceOf(fence).FenceDestroy(b.context)
}

func (b *Backend) SemaphoreCreate(name string) (*metadata.Semaphore, error) {
	s, err := NewSemaphore(b.context, name)
	if err != nil {
		return nil, err
	}
	return &metadata.Semaphore{Name: name, InternalData: s}, nil
}

func (b *Backend) SemaphoreDestroy(semaphore *metadata.Semaphore) {
	semaphoreOf(semaphore).Destroy(b.context)
}

func (b *Backend) CommandBufferAllocate(index metadata.BufferIndex) (*metadata.CommandBuffer, error) {
	vcb, err := NewVulkanCommandBuffer(b.context, b.context.Device.GraphicsCommandPool, true)
	if err != nil {
		return nil, err
	}
	return &metadata.CommandBuffer{Index: index, State: vcb.State, InternalData: vcb}, nil
}

func (b *Backend) CommandBufferFree(cb *metadata.CommandBuffer) {
	if vcb, ok := cb.InternalData.(*VulkanCommandBuffer); ok {
		vcb.Free(b.context, b.context.Device.GraphicsCommandPool)
		cb.State = vcb.State
	}
}

func (b *Backend) CommandBufferBegin(cb *metadata.CommandBuffer) error {
	vcb, err := commandBufferOf(cb)
	if err != nil {
		return err
	}
	if err := vcb.Begin(false, false, false); err != nil {
		return err
	}
	cb.State = vcb.State
	return nil
}

func (b *Backend) CommandBufferEnd(cb *metadata.CommandBuffer) error {
	vcb, err := commandBufferOf(cb)
	if err != nil {
		return err
	}
	if err := vcb.End(); err != nil {
		return err
	}
	cb.State = vcb.State
	return nil
}

func (b *Backend) CommandBufferReset(cb *metadata.CommandBuffer) error {
	vcb, err := commandBufferOf(cb)
	if err != nil {
		return err
	}
	if err := vcb.Reset(); err != nil {
		return err
	}
	cb.State = vcb.State
	return nil
}

// renderTarget resolves the render pass and framebuffer pass records into.
func (b *Backend) renderTarget(pass metadata.CommandsType, imageIndex uint32) (*VulkanRenderpass, *VulkanFramebuffer, error) {
	if pass == metadata.MainPass || pass == metadata.PostEffectPasses {
		fbs := b.context.Swapchain.Framebuffers
		if int(imageIndex) >= len(fbs) {
			return nil, nil, core.Fatalf("image index %d out of range", imageIndex)
		}
		return b.context.RenderPasses[metadata.MainPass], fbs[imageIndex], nil
	}
	target, ok := b.context.PassTargets[pass]
	if !ok {
		return nil, nil, core.Fatalf("%s has no render target", pass)
	}
	return b.context.RenderPasses[pass], target.framebuffer, nil
}

func (b *Backend) RenderPassBegin(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error {
	vcb, err := commandBufferOf(cb)
	if err != nil {
		return err
	}
	rp, fb, err := b.renderTarget(pass, imageIndex)
	if err != nil {
		return err
	}
	rp.RenderpassBegin(vcb, fb)
	cb.State = vcb.State
	return nil
}

func (b *Backend) RenderPassEnd(cb *metadata.CommandBuffer, pass metadata.CommandsType) error {
	vcb, err := commandBufferOf(cb)
	if err != nil {
		return err
	}
	rp, _, err := b.renderTarget(pass, 0)
	if err != nil {
		return err
	}
	rp.RenderpassEnd(vcb)
	cb.State = vcb.State
	return nil
}

func (b *Backend) AcquireNextImage(signal *metadata.Semaphore, timeout time.Duration) (uint32, error) {
	return b.context.Swapchain.AcquireNextImage(b.context, timeout, semaphoreOf(signal).Handle)
}

func (b *Backend) QueueSubmit(info metadata.SubmitInfo) error {
	vcb, err := commandBufferOf(info.CommandBuffer)
	if err != nil {
		return err
	}

	waits := make([]vk.Semaphore, len(info.Wait))
	stages := make([]vk.PipelineStageFlags, len(info.Wait))
	for i, w := range info.Wait {
		waits[i] = semaphoreOf(w.Semaphore).Handle
		stages[i] = waitStages[w.Stage]
	}
	signals := make([]vk.Semaphore, len(info.Signal))
	for i, s := range info.Signal {
		signals[i] = semaphoreOf(s).Handle
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{vcb.Handle},
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	var fence *VulkanFence
	fenceHandle := vk.NullFence
	if info.Fence != nil {
		fence = fenceOf(info.Fence)
		fenceHandle = fence.Handle
	}

	queue := b.context.Device.GraphicsQueue
	if err := lockPool.SafeQueueCall(uint32(b.context.Device.GraphicsQueueIndex), func() error {
		return check(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fenceHandle), "vkQueueSubmit")
	}); err != nil {
		return err
	}
	if fence != nil {
		fence.IsSignaled = false
	}
	vcb.UpdateSubmitted()
	info.CommandBuffer.State = vcb.State
	return nil
}

func (b *Backend) QueuePresent(wait *metadata.Semaphore, imageIndex uint32) error {
	return b.context.Swapchain.Present(b.context, semaphoreOf(wait).Handle, imageIndex)
}

func (b *Backend) ShaderModuleCreate(name string, stage metadata.ShaderType, entryPoint string, code []byte) (*metadata.ShaderModule, error) {
	sm, err := NewShaderModule(b.context, name, stage, code)
	if err != nil {
		return nil, err
	}
	return &metadata.ShaderModule{Name: name, Stage: stage, EntryPoint: entryPoint, InternalData: sm}, nil
}

func (b *Backend) ShaderModuleDestroy(module *metadata.ShaderModule) {
	if sm, ok := module.InternalData.(*VulkanShaderModule); ok {
		sm.Destroy(b.context)
	}
}

func (b *Backend) DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error) {
	layout, err := DescriptorSetLayoutCreate(b.context, bindings)
	if err != nil {
		return nil, err
	}
	return &metadata.DescriptorSetLayout{Bindings: bindings, InternalData: layout}, nil
}

func (b *Backend) DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(b.context.Device.LogicalDevice, layout.InternalData.(vk.DescriptorSetLayout), b.context.Allocator)
}

func (b *Backend) PipelineLayoutCreate(setLayouts []*metadata.DescriptorSetLayout) (*metadata.PipelineLayout, error) {
	handles := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		handles[i] = l.InternalData.(vk.DescriptorSetLayout)
	}
	layout, err := PipelineLayoutCreate(b.context, handles)
	if err != nil {
		return nil, err
	}
	return &metadata.PipelineLayout{SetLayouts: setLayouts, InternalData: layout}, nil
}

func (b *Backend) PipelineLayoutDestroy(layout *metadata.PipelineLayout) {
	vk.DestroyPipelineLayout(b.context.Device.LogicalDevice, layout.InternalData.(vk.PipelineLayout), b.context.Allocator)
}

func (b *Backend) PipelineCreate(config *metadata.PipelineConfig, cache *metadata.PipelineCache) (*metadata.Pipeline, error) {
	pass := config.Pass
	if pass == metadata.PostEffectPasses {
		pass = metadata.MainPass
	}
	rp, ok := b.context.RenderPasses[pass]
	if !ok {
		return nil, core.Fatalf("pipeline %s: no render pass for %s", config.Name, config.Pass)
	}
	var cacheHandle vk.PipelineCache
	if cache != nil {
		cacheHandle = cache.InternalData.(vk.PipelineCache)
	}
	pipeline, err := NewGraphicsPipeline(b.context, config, config.Layout.InternalData.(vk.PipelineLayout), rp, cacheHandle)
	if err != nil {
		return nil, err
	}
	return &metadata.Pipeline{Config: config, InternalData: pipeline}, nil
}

func (b *Backend) PipelineDestroy(pipeline *metadata.Pipeline) {
	if p, ok := pipeline.InternalData.(*VulkanPipeline); ok {
		p.Destroy(b.context)
	}
}

func (b *Backend) PipelineCacheCreate(initialData []byte) (*metadata.PipelineCache, error) {
	cache, err := PipelineCacheCreate(b.context, initialData)
	if err != nil {
		return nil, err
	}
	return &metadata.PipelineCache{InternalData: cache}, nil
}

func (b *Backend) PipelineCacheData(cache *metadata.PipelineCache) ([]byte, error) {
	return PipelineCacheData(b.context, cache.InternalData.(vk.PipelineCache))
}

func (b *Backend) PipelineCacheDestroy(cache *metadata.PipelineCache) {
	vk.DestroyPipelineCache(b.context.Device.LogicalDevice, cache.InternalData.(vk.PipelineCache), b.context.Allocator)
}

func (b *Backend) BufferCreate(usage metadata.BufferUsage, size uint64) (*metadata.Buffer, error) {
	flags, hostVisible := usageFlags(usage)
	vb, err := BufferCreate(b.context, size, flags, hostVisible)
	if err != nil {
		return nil, err
	}
	return &metadata.Buffer{Size: size, Usage: usage, InternalData: vb}, nil
}

func (b *Backend) BufferWrite(buffer *metadata.Buffer, offset uint64, data []byte) error {
	vb, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok {
		return core.Fatalf("buffer has no device data")
	}
	return vb.Write(b.context, offset, data)
}

func (b *Backend) BufferDestroy(buffer *metadata.Buffer) {
	if vb, ok := buffer.InternalData.(*VulkanBuffer); ok {
		vb.Destroy(b.context)
	}
}

// TextureCreate uploads image. Layers are stacked vertically in the pixel data.
func (b *Backend) TextureCreate(config metadata.TextureConfig, image *metadata.ImageData) (_ *metadata.Texture, err error) {
	layers := max(config.Layers, 1)
	if config.IsCubemap {
		layers = 6
	}
	if image.Height%layers != 0 {
		return nil, core.Fatalf("texture %s: height %d is not a multiple of %d layers", config.Name, image.Height, layers)
	}
	size := uint64(image.Width) * uint64(image.Height) * 4
	if uint64(len(image.Pixels)) != size {
		return nil, core.Fatalf("texture %s: got %d bytes of pixels, expected %d", config.Name, len(image.Pixels), size)
	}

	format := vk.FormatR8g8b8a8Unorm
	mipLevels := uint32(1)
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	if SupportsLinearBlit(b.context, format) {
		mipLevels = MipLevelCount(image.Width, image.Height/layers)
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	img, err := ImageCreate(b.context, VulkanImageConfig{
		Width:      image.Width,
		Height:     image.Height / layers,
		Layers:     layers,
		MipLevels:  mipLevels,
		Format:     format,
		Usage:      usage,
		Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		IsCubemap:  config.IsCubemap,
		CreateView: true,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			img.ImageDestroy(b.context)
		}
	}()

	staging, err := BufferCreate(b.context, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), true)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(b.context)
	if err := staging.Write(b.context, 0, image.Pixels); err != nil {
		return nil, err
	}
	if err := SingleUseCommands(b.context, func(cb *VulkanCommandBuffer) error {
		if err := img.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		img.CopyFromBuffer(staging.Handle, cb)
		if img.MipLevels > 1 {
			img.GenerateMipmaps(cb)
			return nil
		}
		return img.TransitionLayout(cb, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	}); err != nil {
		return nil, err
	}

	sampler, err := SamplerCreate(b.context, config.AddressMode, config.BorderColor, false, img.MipLevels)
	if err != nil {
		return nil, err
	}
	return &metadata.Texture{
		Name:         config.Name,
		Width:        img.Width,
		Height:       img.Height,
		MipLevels:    img.MipLevels,
		Type:         metadata.TextureImageFile,
		InternalData: &VulkanTexture{Image: img, Sampler: sampler, owned: true},
	}, nil
}

func (b *Backend) TextureDestroy(texture *metadata.Texture) {
	if vt, ok := texture.InternalData.(*VulkanTexture); ok {
		vt.Destroy(b.context)
	}
}

func (b *Backend) PassTexture(textureType metadata.TextureType) (*metadata.Texture, error) {
	for _, target := range b.context.PassTargets {
		if tex, ok := target.textures[textureType]; ok {
			return tex, nil
		}
	}
	return nil, core.Fatalf("no pass renders %s", textureType)
}

func (b *Backend) DescriptorPoolCreate(sizes metadata.DescriptorPoolSizes) (*metadata.DescriptorPool, error) {
	pool, err := DescriptorPoolCreate(b.context, sizes)
	if err != nil {
		return nil, err
	}
	return &metadata.DescriptorPool{Sizes: sizes, InternalData: pool}, nil
}

// DescriptorPoolDestroy also frees every set allocated from the pool.
func (b *Backend) DescriptorPoolDestroy(pool *metadata.DescriptorPool) {
	_ = lockPool.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(b.context.Device.LogicalDevice, pool.InternalData.(vk.DescriptorPool), b.context.Allocator)
		return nil
	})
}

func (b *Backend) DescriptorSetsAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout, count uint32) ([]*metadata.DescriptorSet, error) {
	handles, err := DescriptorSetsAllocate(b.context, pool.InternalData.(vk.DescriptorPool), layout.InternalData.(vk.DescriptorSetLayout), count)
	if err != nil {
		return nil, err
	}
	sets := make([]*metadata.DescriptorSet, len(handles))
	for i, h := range handles {
		sets[i] = &metadata.DescriptorSet{Layout: layout, InternalData: h}
	}
	return sets, nil
}

func (b *Backend) DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	return DescriptorSetUpdate(b.context, set.InternalData.(vk.DescriptorSet), writes)
}

func (b *Backend) GeometryCreate(vertices []byte, vertexCount uint32, indices []uint32) (*metadata.Geometry, error) {
	g, err := GeometryCreate(b.context, vertices, vertexCount, indices)
	if err != nil {
		return nil, err
	}
	return &metadata.Geometry{VertexCount: vertexCount, IndexCount: uint32(len(indices)), InternalData: g}, nil
}

func (b *Backend) GeometryDestroy(geometry *metadata.Geometry) {
	if g, ok := geometry.InternalData.(*VulkanGeometry); ok {
		g.Destroy(b.context)
	}
}

func (b *Backend) CmdBindPipeline(cb *metadata.CommandBuffer, pipeline *metadata.Pipeline) {
	pipeline.InternalData.(*VulkanPipeline).Bind(cb.InternalData.(*VulkanCommandBuffer))
}

func (b *Backend) CmdBindDescriptorSets(cb *metadata.CommandBuffer, layout *metadata.PipelineLayout, firstSet uint32, sets []*metadata.DescriptorSet) {
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.InternalData.(vk.DescriptorSet)
	}
	vk.CmdBindDescriptorSets(cb.InternalData.(*VulkanCommandBuffer).Handle, vk.PipelineBindPointGraphics,
		layout.InternalData.(vk.PipelineLayout), firstSet, uint32(len(handles)), handles, 0, nil)
}

func (b *Backend) CmdDrawGeometry(cb *metadata.CommandBuffer, geometry *metadata.Geometry, instanceCount uint32) {
	geometry.InternalData.(*VulkanGeometry).Draw(cb.InternalData.(*VulkanCommandBuffer), instanceCount)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
