package metadata

/** @brief The semantic of a single uniform field a shader stage expects. */
type UniformType uint8

const (
	UniformModelMatrix UniformType = iota
	UniformViewMatrix
	UniformProjectionMatrix
	UniformInverseModelMatrix
	UniformModelViewProjectionMatrix
	UniformViewProjectionMatrix
	UniformViewProjectionMatrixList
	UniformViewProjectionMatrixSize
	UniformCameraPosition
	UniformMaterialInfo
	UniformLightInfo
	UniformLightDirectional
	UniformLightPoint
	UniformLightPointSimple
	UniformLightLine
	UniformLightSpot
	UniformLightPointViewProjectionList
	UniformLightDirectViewProjectionList
	UniformLightDirectViewProjection
	UniformBoneMatrices
	UniformClipPlane
	UniformParticleEmitter
	UniformParticleAffector
	UniformParticleCount
	UniformSpritesheetSize
	UniformImageSize
	UniformTextInfo
	UniformGlyphInfoList
	UniformTextSymbolList
	UniformOverlayInfo
	UniformCustomFloat
	UniformCustomVec4
	UniformCustomMat4
	UniformTime
	UniformDeltaTime
)

var uniformTypeNames = newEnumTable("uniform type", map[string]UniformType{
	"ModelMatrix":                   UniformModelMatrix,
	"ViewMatrix":                    UniformViewMatrix,
	"ProjectionMatrix":              UniformProjectionMatrix,
	"InverseModelMatrix":            UniformInverseModelMatrix,
	"ModelViewProjectionMatrix":     UniformModelViewProjectionMatrix,
	"ViewProjectionMatrix":          UniformViewProjectionMatrix,
	"ViewProjectionMatrixList":      UniformViewProjectionMatrixList,
	"ViewProjectionMatrixSize":      UniformViewProjectionMatrixSize,
	"CameraPosition":                UniformCameraPosition,
	"MaterialInfo":                  UniformMaterialInfo,
	"LightInfo":                     UniformLightInfo,
	"LightDirectional":              UniformLightDirectional,
	"LightPoint":                    UniformLightPoint,
	"LightPointSimple":              UniformLightPointSimple,
	"LightLine":                     UniformLightLine,
	"LightSpot":                     UniformLightSpot,
	"LightPointViewProjectionList":  UniformLightPointViewProjectionList,
	"LightDirectViewProjectionList": UniformLightDirectViewProjectionList,
	"LightDirectViewProjection":     UniformLightDirectViewProjection,
	"BoneMatrices":                  UniformBoneMatrices,
	"ClipPlane":                     UniformClipPlane,
	"ParticleEmitter":               UniformParticleEmitter,
	"ParticleAffector":              UniformParticleAffector,
	"ParticleCount":                 UniformParticleCount,
	"SpritesheetSize":               UniformSpritesheetSize,
	"ImageSize":                     UniformImageSize,
	"TextInfo":                      UniformTextInfo,
	"GlyphInfoList":                 UniformGlyphInfoList,
	"TextSymbolList":                UniformTextSymbolList,
	"OverlayInfo":                   UniformOverlayInfo,
	"CustomFloat":                   UniformCustomFloat,
	"CustomVec4":                    UniformCustomVec4,
	"CustomMat4":                    UniformCustomMat4,
	"Time":                          UniformTime,
	"DeltaTime":                     UniformDeltaTime,
})

func (u UniformType) String() string { return uniformTypeNames.name(u) }

func (u *UniformType) UnmarshalText(b []byte) (err error) {
	*u, err = uniformTypeNames.parse(string(b))
	return err
}

func (u UniformType) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

type ShaderType uint8

const (
	VertexShader ShaderType = iota
	FragmentShader
	GeometryShader
	ComputeShader
)

var shaderTypeNames = newEnumTable("shader type", map[string]ShaderType{
	"VertexShader":   VertexShader,
	"FragmentShader": FragmentShader,
	"GeometryShader": GeometryShader,
	"ComputeShader":  ComputeShader,
})

func (s ShaderType) String() string { return shaderTypeNames.name(s) }

func (s *ShaderType) UnmarshalText(b []byte) (err error) {
	*s, err = shaderTypeNames.parse(string(b))
	return err
}

func (s ShaderType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

/** @brief Storage buffers a shader binds besides its uniforms. */
type BufferType uint8

const (
	BufferAtomicCounter BufferType = iota
	BufferModelMatrixList
	BufferTextSymbolList
)

var bufferTypeNames = newEnumTable("buffer type", map[string]BufferType{
	"AtomicCounter":   BufferAtomicCounter,
	"ModelMatrixList": BufferModelMatrixList,
	"TextSymbolList":  BufferTextSymbolList,
})

func (b BufferType) String() string { return bufferTypeNames.name(b) }

func (b *BufferType) UnmarshalText(t []byte) (err error) {
	*b, err = bufferTypeNames.parse(string(t))
	return err
}

func (b BufferType) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

/** @brief A single vertex attribute present in the vertex layout. */
type VertexDataFlag uint32

const (
	VertexPosition    VertexDataFlag = 1 << 0
	VertexColor       VertexDataFlag = 1 << 1
	VertexTexCoord    VertexDataFlag = 1 << 2
	VertexNormal      VertexDataFlag = 1 << 3
	VertexBinormal    VertexDataFlag = 1 << 4
	VertexTangent     VertexDataFlag = 1 << 5
	VertexBoneWeights VertexDataFlag = 1 << 6
	VertexBoneIds     VertexDataFlag = 1 << 7
	VertexCustom      VertexDataFlag = 1 << 8
)

var vertexDataFlagNames = newEnumTable("vertex data flag", map[string]VertexDataFlag{
	"Position":    VertexPosition,
	"Color":       VertexColor,
	"TexCoord":    VertexTexCoord,
	"Normal":      VertexNormal,
	"Binormal":    VertexBinormal,
	"Tangent":     VertexTangent,
	"BoneWeights": VertexBoneWeights,
	"BoneIds":     VertexBoneIds,
	"Custom":      VertexCustom,
})

func (v VertexDataFlag) String() string { return vertexDataFlagNames.name(v) }

func (v *VertexDataFlag) UnmarshalText(b []byte) (err error) {
	*v, err = vertexDataFlagNames.parse(string(b))
	return err
}

func (v VertexDataFlag) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// VertexAttributeOrder is the order attributes are laid out in a vertex.
var VertexAttributeOrder = []VertexDataFlag{
	VertexPosition, VertexColor, VertexTexCoord, VertexNormal, VertexBinormal,
	VertexTangent, VertexBoneWeights, VertexBoneIds, VertexCustom,
}

/** @brief Describes the vertex layout a vertex shader consumes. */
type VertexInfo struct {
	/** @brief The attributes present in the layout. */
	VertexDataFlags []VertexDataFlag `toml:"vertexDataFlags"`
	/** @brief Component count of the position attribute (2 or 3). */
	PositionSize uint32 `toml:"positionSize"`
	/** @brief Component count of the color attribute (3 or 4). */
	ColorSize uint32 `toml:"colorSize"`
	/** @brief The number of custom float attributes. */
	CustomCount uint32 `toml:"customCount"`
	/** @brief Each attribute lives in its own vertex buffer binding. */
	SeparateBinding bool `toml:"separateBinding"`
}

func (vi VertexInfo) Has(flag VertexDataFlag) bool {
	for _, f := range vi.VertexDataFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Components returns the float count of an attribute in this layout.
func (vi VertexInfo) Components(flag VertexDataFlag) uint32 {
	switch flag {
	case VertexPosition:
		return vi.PositionSize
	case VertexColor:
		return vi.ColorSize
	case VertexTexCoord:
		return 2
	case VertexNormal, VertexBinormal, VertexTangent:
		return 3
	case VertexBoneWeights, VertexBoneIds:
		return 4
	case VertexCustom:
		return vi.CustomCount
	}
	return 0
}

// Stride returns the size in bytes of one interleaved vertex.
func (vi VertexInfo) Stride() uint32 {
	stride := uint32(0)
	for _, f := range VertexAttributeOrder {
		if vi.Has(f) {
			stride += vi.Components(f) * 4
		}
	}
	return stride
}

type UniformDescription struct {
	UniformType UniformType `toml:"uniformType"`
	/** @brief Selects the slot for custom uniforms, ignored otherwise. */
	UniformIndex uint32 `toml:"uniformIndex"`
}

/** @brief Parsed content of a *.shader file. */
type ShaderSettings struct {
	Name             string               `toml:"name"`
	Filename         string               `toml:"filename"`
	ShaderType       ShaderType           `toml:"shaderType"`
	EntryPoint       string               `toml:"entryPoint"`
	UniformList      []UniformDescription `toml:"uniformList"`
	BufferList       []BufferType         `toml:"bufferList"`
	VertexInfo       VertexInfo           `toml:"vertexInfo"`
	SamplerNamesList []string             `toml:"samplerNamesList"`

	MaxBonesSize              uint32 `toml:"maxBonesSize"`
	MaxLightSize              uint32 `toml:"maxLightSize"`
	MaxCascadeLightSize       uint32 `toml:"maxCascadeLightSize"`
	MaxShadowPointLightSize   uint32 `toml:"maxShadowPointLightSize"`
	MaxLineLightSize          uint32 `toml:"maxLineLightSize"`
	MaxViewProjectionMatrices uint32 `toml:"maxViewProjectionMatrices"`
	MaxGlyphCount             uint32 `toml:"maxGlyphCount"`
}

func DefaultShaderSettings() ShaderSettings {
	return ShaderSettings{
		EntryPoint: "main",
		VertexInfo: VertexInfo{
			PositionSize: 3,
			ColorSize:    4,
		},
		MaxBonesSize:              64,
		MaxLightSize:              4,
		MaxCascadeLightSize:       5,
		MaxShadowPointLightSize:   4,
		MaxLineLightSize:          4,
		MaxViewProjectionMatrices: 6,
		MaxGlyphCount:             64,
	}
}
