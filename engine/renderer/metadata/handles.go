package metadata

// Handles returned by the device layer. InternalData holds the backend object.

type Fence struct {
	InternalData interface{}
}

type Semaphore struct {
	/** @brief Debug name, for example "shadowDirect[1]". */
	Name         string
	InternalData interface{}
}

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY CommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type CommandBuffer struct {
	/** @brief The logical buffer this command buffer records. */
	Index        BufferIndex
	State        CommandBufferState
	InternalData interface{}
}

type BufferUsage uint8

const (
	BufferUsageUniform BufferUsage = iota
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
)

type Buffer struct {
	Size         uint64
	Usage        BufferUsage
	InternalData interface{}
}

/** @brief CPU side pixels, always RGBA8. */
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

type TextureConfig struct {
	Name        string
	Width       uint32
	Height      uint32
	Layers      uint32
	IsCubemap   bool
	AddressMode TextureAddressMode
	BorderColor TextureBorderColor
}

/** @brief A sampled image together with its view and sampler. */
type Texture struct {
	Name         string
	Width        uint32
	Height       uint32
	MipLevels    uint32
	Type         TextureType
	InternalData interface{}
}

type ShaderModule struct {
	Name         string
	Stage        ShaderType
	EntryPoint   string
	InternalData interface{}
}

type DescriptorType uint8

const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorCombinedImageSampler
	DescriptorStorageBuffer
)

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stage   ShaderType
}

type DescriptorSetLayout struct {
	Bindings     []DescriptorBinding
	InternalData interface{}
}

type PipelineLayout struct {
	SetLayouts   []*DescriptorSetLayout
	InternalData interface{}
}

type DescriptorPoolSizes struct {
	UniformBuffers uint32
	ImageSamplers  uint32
	StorageBuffers uint32
	MaxSets        uint32
}

type DescriptorPool struct {
	Sizes        DescriptorPoolSizes
	InternalData interface{}
}

type DescriptorSet struct {
	Layout       *DescriptorSetLayout
	InternalData interface{}
}

/** @brief One binding update of a descriptor set. */
type DescriptorWrite struct {
	Binding  uint32
	Type     DescriptorType
	Buffer   *Buffer
	Range    uint64
	Textures []*Texture
}

type PipelineCache struct {
	InternalData interface{}
}

/** @brief Everything needed to build a graphics pipeline for a material. */
type PipelineConfig struct {
	Name     string
	Pass     CommandsType
	Layout   *PipelineLayout
	Stages   []*ShaderModule
	Vertex   VertexInfo
	Material MaterialSettings
}

type Pipeline struct {
	Config       *PipelineConfig
	InternalData interface{}
}

type Geometry struct {
	VertexCount  uint32
	IndexCount   uint32
	InternalData interface{}
}

type WaitStage uint8

const (
	WaitStageColorAttachmentOutput WaitStage = iota
	WaitStageFragmentShader
	WaitStageVertexInput
)

type SemaphoreWait struct {
	Semaphore *Semaphore
	Stage     WaitStage
}

type SubmitInfo struct {
	CommandBuffer *CommandBuffer
	Wait          []SemaphoreWait
	Signal        []*Semaphore
	/** @brief Signaled once the submission completes. May be nil. */
	Fence *Fence
}

/** @brief Identifies the GPU and driver. Keys the persisted pipeline cache. */
type DeviceInfo struct {
	Name              string
	VendorID          uint32
	DeviceID          uint32
	DriverVersion     uint32
	PipelineCacheUUID [16]byte
}
