package renderer

import (
	"time"

	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// RendererBackend is the device layer. Every creation call that fails
// returns an error wrapping core.ErrFatal. AcquireNextImage and QueuePresent
// return core.ErrSwapchainOutOfDate when the swapchain must be recreated.
type RendererBackend interface {
	Initialize() error
	Shutdown() error
	WaitIdle() error
	DeviceInfo() metadata.DeviceInfo
	SwapchainImageCount() uint32
	// SwapchainFormat identifies the color format of the main pass. Main
	// pass pipelines must be rebuilt when it changes.
	SwapchainFormat() uint32
	Extent() (width, height uint32)
	// RecreateSwapchain rebuilds the swapchain, its image views, the depth
	// and multisample attachments, the pass targets and the framebuffers.
	// The image count is preserved.
	RecreateSwapchain(width, height uint32) error

	FenceCreate(signaled bool) (*metadata.Fence, error)
	// FenceWait returns core.ErrTimeout when the fence is still unsignaled after timeout.
	FenceWait(fence *metadata.Fence, timeout time.Duration) error
	FenceReset(fence *metadata.Fence) error
	FenceDestroy(fence *metadata.Fence)
	SemaphoreCreate(name string) (*metadata.Semaphore, error)
	SemaphoreDestroy(semaphore *metadata.Semaphore)

	CommandBufferAllocate(index metadata.BufferIndex) (*metadata.CommandBuffer, error)
	CommandBufferFree(cb *metadata.CommandBuffer)
	CommandBufferBegin(cb *metadata.CommandBuffer) error
	CommandBufferEnd(cb *metadata.CommandBuffer) error
	CommandBufferReset(cb *metadata.CommandBuffer) error
	RenderPassBegin(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error
	RenderPassEnd(cb *metadata.CommandBuffer, pass metadata.CommandsType) error

	AcquireNextImage(signal *metadata.Semaphore, timeout time.Duration) (uint32, error)
	QueueSubmit(info metadata.SubmitInfo) error
	QueuePresent(wait *metadata.Semaphore, imageIndex uint32) error

	ShaderModuleCreate(name string, stage metadata.ShaderType, entryPoint string, code []byte) (*metadata.ShaderModule, error)
	ShaderModuleDestroy(module *metadata.ShaderModule)
	DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error)
	DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout)
	PipelineLayoutCreate(setLayouts []*metadata.DescriptorSetLayout) (*metadata.PipelineLayout, error)
	PipelineLayoutDestroy(layout *metadata.PipelineLayout)
	PipelineCreate(config *metadata.PipelineConfig, cache *metadata.PipelineCache) (*metadata.Pipeline, error)
	PipelineDestroy(pipeline *metadata.Pipeline)
	PipelineCacheCreate(initialData []byte) (*metadata.PipelineCache, error)
	PipelineCacheData(cache *metadata.PipelineCache) ([]byte, error)
	PipelineCacheDestroy(cache *metadata.PipelineCache)

	BufferCreate(usage metadata.BufferUsage, size uint64) (*metadata.Buffer, error)
	// BufferWrite maps the buffer, copies data at offset and unmaps it.
	BufferWrite(buffer *metadata.Buffer, offset uint64, data []byte) error
	BufferDestroy(buffer *metadata.Buffer)
	TextureCreate(config metadata.TextureConfig, image *metadata.ImageData) (*metadata.Texture, error)
	TextureDestroy(texture *metadata.Texture)
	// PassTexture returns the render target a pass writes, owned by the backend.
	PassTexture(textureType metadata.TextureType) (*metadata.Texture, error)
	DescriptorPoolCreate(sizes metadata.DescriptorPoolSizes) (*metadata.DescriptorPool, error)
	DescriptorPoolDestroy(pool *metadata.DescriptorPool)
	DescriptorSetsAllocate(pool *metadata.DescriptorPool, layout *metadata.DescriptorSetLayout, count uint32) ([]*metadata.DescriptorSet, error)
	DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error

	GeometryCreate(vertices []byte, vertexCount uint32, indices []uint32) (*metadata.Geometry, error)
	GeometryDestroy(geometry *metadata.Geometry)

	CmdBindPipeline(cb *metadata.CommandBuffer, pipeline *metadata.Pipeline)
	CmdBindDescriptorSets(cb *metadata.CommandBuffer, layout *metadata.PipelineLayout, firstSet uint32, sets []*metadata.DescriptorSet)
	CmdDrawGeometry(cb *metadata.CommandBuffer, geometry *metadata.Geometry, instanceCount uint32)
}
