package metadata

/** @brief Tags a command buffer or material variant with the render pass it targets. */
type CommandsType uint8

const (
	MainPass CommandsType = iota
	ShadowPassDirectLight
	ShadowPassPointLights
	ReflectionPass
	RefractionPass
	ScreenQuadPass
	/** @brief Screen quad with an additional bloom output. */
	ScreenQuadMRTPass
	/** @brief Screen quad pass for particles and alike, after the regular one. */
	ScreenQuadLatePass
	ScreenQuadDepthPass
	ComputeParticlesPass
	/** @brief Post effects are recorded inside the main command buffer. */
	PostEffectPasses
)

/** @brief The number of offscreen passes that own a ready semaphore per frame. */
const PassCount uint8 = 9

var commandsTypeNames = newEnumTable("pass type", map[string]CommandsType{
	"MainPass":              MainPass,
	"ShadowPassDirectLight": ShadowPassDirectLight,
	"ShadowPassPointLights": ShadowPassPointLights,
	"ReflectionPass":        ReflectionPass,
	"RefractionPass":        RefractionPass,
	"ScreenQuadPass":        ScreenQuadPass,
	"ScreenQuadMRTPass":     ScreenQuadMRTPass,
	"ScreenQuadLatePass":    ScreenQuadLatePass,
	"ScreenQuadDepthPass":   ScreenQuadDepthPass,
	"ComputeParticlesPass":  ComputeParticlesPass,
	"PostEffectPasses":      PostEffectPasses,
})

func (c CommandsType) String() string { return commandsTypeNames.name(c) }

func (c *CommandsType) UnmarshalText(b []byte) (err error) {
	*c, err = commandsTypeNames.parse(string(b))
	return err
}

func (c CommandsType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// IsShadow reports whether the pass renders depth only from a light.
func (c CommandsType) IsShadow() bool {
	return c == ShadowPassDirectLight || c == ShadowPassPointLights
}

/** @brief Identifies a logical command buffer. */
type BufferIndex uint32

const (
	BUFFER_INDEX_MAIN              BufferIndex = 0
	BUFFER_INDEX_SHADOWMAP_SUN     BufferIndex = 100
	BUFFER_INDEX_SHADOWMAP_POINT   BufferIndex = 200
	BUFFER_INDEX_WATER_REFLECTION  BufferIndex = 300
	BUFFER_INDEX_WATER_REFRACTION  BufferIndex = 301
	BUFFER_INDEX_SCREEN_QUAD_DEPTH BufferIndex = 350
	BUFFER_INDEX_SCREEN_QUAD       BufferIndex = 400
	BUFFER_INDEX_SCREEN_QUAD_MRT   BufferIndex = 450
	BUFFER_INDEX_SCREEN_QUAD_LATE  BufferIndex = 451
	BUFFER_INDEX_COMPUTE_PARTICLES BufferIndex = 500
)

// DefaultBufferIndex returns the buffer a pass records into by default.
func DefaultBufferIndex(pass CommandsType) BufferIndex {
	switch pass {
	case ShadowPassDirectLight:
		return BUFFER_INDEX_SHADOWMAP_SUN
	case ShadowPassPointLights:
		return BUFFER_INDEX_SHADOWMAP_POINT
	case ReflectionPass:
		return BUFFER_INDEX_WATER_REFLECTION
	case RefractionPass:
		return BUFFER_INDEX_WATER_REFRACTION
	case ScreenQuadDepthPass:
		return BUFFER_INDEX_SCREEN_QUAD_DEPTH
	case ScreenQuadPass:
		return BUFFER_INDEX_SCREEN_QUAD
	case ScreenQuadMRTPass:
		return BUFFER_INDEX_SCREEN_QUAD_MRT
	case ScreenQuadLatePass:
		return BUFFER_INDEX_SCREEN_QUAD_LATE
	case ComputeParticlesPass:
		return BUFFER_INDEX_COMPUTE_PARTICLES
	default:
		return BUFFER_INDEX_MAIN
	}
}
