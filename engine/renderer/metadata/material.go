package metadata

/** @brief Where a material texture comes from. */
type TextureType uint8

const (
	TextureImageFile TextureType = iota
	TextureShadowMapDirect
	TextureShadowMapPoint
	TextureReflection
	TextureRefraction
	TextureScreenQuad
	/** @brief The screen quad after the late pass (with particles). */
	TextureScreenQuadSecond
	TextureScreenQuadDepth
	TextureLastEffect
)

var textureTypeNames = newEnumTable("texture type", map[string]TextureType{
	"ImageFile":        TextureImageFile,
	"ShadowMapDirect":  TextureShadowMapDirect,
	"ShadowMapPoint":   TextureShadowMapPoint,
	"Reflection":       TextureReflection,
	"Refraction":       TextureRefraction,
	"ScreenQuad":       TextureScreenQuad,
	"ScreenQuadSecond": TextureScreenQuadSecond,
	"ScreenQuadDepth":  TextureScreenQuadDepth,
	"LastEffect":       TextureLastEffect,
})

func (t TextureType) String() string { return textureTypeNames.name(t) }

func (t *TextureType) UnmarshalText(b []byte) (err error) {
	*t, err = textureTypeNames.parse(string(b))
	return err
}

func (t TextureType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// IsPassTexture reports whether the texture is a render target owned by the device layer.
func (t TextureType) IsPassTexture() bool {
	return t != TextureImageFile
}

type TextureAddressMode uint8

const (
	AddressRepeat TextureAddressMode = iota
	AddressMirroredRepeat
	AddressClampToEdge
	AddressClampToBorder
	AddressMirrorClampToEdge
)

var addressModeNames = newEnumTable("texture address mode", map[string]TextureAddressMode{
	"Repeat":            AddressRepeat,
	"MirroredRepeat":    AddressMirroredRepeat,
	"ClampToEdge":       AddressClampToEdge,
	"ClampToBorder":     AddressClampToBorder,
	"MirrorClampToEdge": AddressMirrorClampToEdge,
})

func (a TextureAddressMode) String() string { return addressModeNames.name(a) }

func (a *TextureAddressMode) UnmarshalText(b []byte) (err error) {
	*a, err = addressModeNames.parse(string(b))
	return err
}

func (a TextureAddressMode) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

type TextureBorderColor uint8

const (
	BorderTransparentBlack TextureBorderColor = iota
	BorderSolidBlack
	BorderSolidWhite
)

var borderColorNames = newEnumTable("texture border color", map[string]TextureBorderColor{
	"TransparentBlack": BorderTransparentBlack,
	"SolidBlack":       BorderSolidBlack,
	"SolidWhite":       BorderSolidWhite,
})

func (c TextureBorderColor) String() string { return borderColorNames.name(c) }

func (c *TextureBorderColor) UnmarshalText(b []byte) (err error) {
	*c, err = borderColorNames.parse(string(b))
	return err
}

func (c TextureBorderColor) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

type MaterialCullFace uint8

const (
	CullFrontFace MaterialCullFace = iota
	CullBackFace
	CullNone
)

var cullFaceNames = newEnumTable("cull face", map[string]MaterialCullFace{
	"FrontFace": CullFrontFace,
	"BackFace":  CullBackFace,
	"None":      CullNone,
})

func (c MaterialCullFace) String() string { return cullFaceNames.name(c) }

func (c *MaterialCullFace) UnmarshalText(b []byte) (err error) {
	*c, err = cullFaceNames.parse(string(b))
	return err
}

func (c MaterialCullFace) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

type BlendFactor uint8

const (
	BlendSrcAlpha BlendFactor = iota
	BlendDstAlpha
	BlendOneMinusSrcAlpha
	BlendOneMinusDstAlpha
	BlendOne
	BlendZero
)

var blendFactorNames = newEnumTable("blend factor", map[string]BlendFactor{
	"SrcAlpha":         BlendSrcAlpha,
	"DstAlpha":         BlendDstAlpha,
	"OneMinusSrcAlpha": BlendOneMinusSrcAlpha,
	"OneMinusDstAlpha": BlendOneMinusDstAlpha,
	"One":              BlendOne,
	"Zero":             BlendZero,
})

func (f BlendFactor) String() string { return blendFactorNames.name(f) }

func (f *BlendFactor) UnmarshalText(b []byte) (err error) {
	*f, err = blendFactorNames.parse(string(b))
	return err
}

func (f BlendFactor) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

/** @brief The lowest graphics quality that still loads a material. */
type MaterialQuality uint8

const (
	/** @brief Loaded by low, medium and high settings. */
	QualityLow MaterialQuality = iota
	/** @brief Loaded by medium and high settings. */
	QualityMedium
	/** @brief Loaded only by high settings. */
	QualityHigh
)

var qualityNames = newEnumTable("material quality", map[string]MaterialQuality{
	"Low":    QualityLow,
	"Medium": QualityMedium,
	"High":   QualityHigh,
})

func (q MaterialQuality) String() string { return qualityNames.name(q) }

func (q *MaterialQuality) UnmarshalText(b []byte) (err error) {
	*q, err = qualityNames.parse(string(b))
	return err
}

func (q MaterialQuality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

type TextureInfo struct {
	TextureType        TextureType        `toml:"textureType"`
	TextureSubtype     string             `toml:"textureSubtype"`
	TextureAddressMode TextureAddressMode `toml:"textureAddressMode"`
	TextureBorderColor TextureBorderColor `toml:"textureBorderColor"`
	SamplerName        string             `toml:"samplerName"`
	Filename           string             `toml:"filename"`
	Layers             uint32             `toml:"layers"`
	SpritesheetSize    [2]int32           `toml:"spritesheetSize"`
}

/** @brief Parsed content of a *.material file. */
type MaterialSettings struct {
	Name string `toml:"name"`

	VertexShaderName   string `toml:"vertexShaderName"`
	FragmentShaderName string `toml:"fragmentShaderName"`
	GeometryShaderName string `toml:"geometryShaderName"`

	Textures         []TextureInfo    `toml:"textures"`
	IsCubemap        bool             `toml:"isCubemap"`
	UseDepthTest     bool             `toml:"useDepthTest"`
	UseDepthWrite    bool             `toml:"useDepthWrite"`
	UseDepthBias     bool             `toml:"useDepthBias"`
	UseMultisampling bool             `toml:"useMultisampling"`
	UseAlphaBlending bool             `toml:"useAlphaBlending"`
	UseMRT           bool             `toml:"useMRT"`
	UseInstancing    bool             `toml:"useInstancing"`
	IgnoreShadow     bool             `toml:"ignoreShadow"`
	InstanceMaxCount uint32           `toml:"instanceMaxCount"`
	SrcBlendFactor   BlendFactor      `toml:"srcBlendFactor"`
	DstBlendFactor   BlendFactor      `toml:"dstBlendFactor"`
	CullFace         MaterialCullFace `toml:"cullFace"`
	/** @brief Selects the render pass the pipeline is built against. */
	PassType CommandsType `toml:"passType"`
	/** @brief The material is skipped when the configured quality is below this. */
	LoadQuality MaterialQuality `toml:"loadQuality"`
}

func DefaultMaterialSettings() MaterialSettings {
	return MaterialSettings{
		UseDepthTest:     true,
		UseDepthWrite:    true,
		UseMultisampling: true,
		IgnoreShadow:     true,
		SrcBlendFactor:   BlendSrcAlpha,
		DstBlendFactor:   BlendOneMinusSrcAlpha,
		CullFace:         CullFrontFace,
		PassType:         MainPass,
		LoadQuality:      QualityLow,
	}
}

// DefaultTextureInfo is the starting value for every [[textures]] entry.
func DefaultTextureInfo() TextureInfo {
	return TextureInfo{
		TextureType:        TextureImageFile,
		TextureAddressMode: AddressRepeat,
		TextureBorderColor: BorderTransparentBlack,
		Layers:             1,
	}
}
