package metadata

import "github.com/go-gl/mathgl/mgl32"

type LightType uint8

const (
	ShadowPointLight LightType = iota
	PointLight
	SunLight
	SpotLight
	RectLight
	LineLight
	NoLight
)

var lightTypeNames = newEnumTable("light type", map[string]LightType{
	"ShadowPointLight": ShadowPointLight,
	"PointLight":       PointLight,
	"SunLight":         SunLight,
	"SpotLight":        SpotLight,
	"RectLight":        RectLight,
	"LineLight":        LineLight,
	"None":             NoLight,
})

func (l LightType) String() string { return lightTypeNames.name(l) }

func (l *LightType) UnmarshalText(b []byte) (err error) {
	*l, err = lightTypeNames.parse(string(b))
	return err
}

func (l LightType) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

/** @brief Parsed content of a *.light file. */
type LightSettings struct {
	Name             string     `toml:"name"`
	LightType        LightType  `toml:"lightType"`
	LightColor       mgl32.Vec3 `toml:"lightColor"`
	LookAt           mgl32.Vec3 `toml:"lookAt"`
	AmbientStrength  mgl32.Vec4 `toml:"ambientStrength"`
	SpecularStrength mgl32.Vec4 `toml:"specularStrength"`
	DiffuseStrength  mgl32.Vec4 `toml:"diffuseStrength"`
	Shininess        float32    `toml:"shininess"`

	/** @brief End point of line lights. */
	SecondPoint mgl32.Vec3 `toml:"secondPoint"`
	ConstAtten  float32    `toml:"constAtten"`
	LinearAtten float32    `toml:"linearAtten"`
	QuadAtten   float32    `toml:"quadAtten"`

	CastShadows bool `toml:"castShadows"`
	IsSimple    bool `toml:"isSimple"`
}

func DefaultLightSettings() LightSettings {
	return LightSettings{
		LightType:   PointLight,
		LightColor:  mgl32.Vec3{1, 1, 1},
		ConstAtten:  1.0 * 0.05,
		LinearAtten: 1.35 * 0.05,
		QuadAtten:   0.44 * 0.05,
		CastShadows: true,
	}
}

/** @brief Parsed content of a *.mesh file. */
type MeshLoadSettings struct {
	Name           string     `toml:"name"`
	Filename       string     `toml:"filename"`
	SwitchYZ       bool       `toml:"switchYZ"`
	Scale          mgl32.Vec3 `toml:"scale"`
	AnimationSpeed float32    `toml:"animationSpeed"`
}

func DefaultMeshLoadSettings() MeshLoadSettings {
	return MeshLoadSettings{
		Scale:          mgl32.Vec3{1, 1, 1},
		AnimationSpeed: 1,
	}
}

type ParticleEmitter struct {
	/** @brief Rotation from +Z to the emission direction. Derived from Direction. */
	ToDirection     mgl32.Mat4 `toml:"-"`
	Direction       mgl32.Vec3 `toml:"direction"`
	Angle           float32    `toml:"angle"`
	OriginRadius    float32    `toml:"originRadius"`
	EmissionRate    float32    `toml:"emissionRate"`
	MinLife         float32    `toml:"minLife"`
	MaxLife         float32    `toml:"maxLife"`
	MinSpeed        float32    `toml:"minSpeed"`
	MaxSpeed        float32    `toml:"maxSpeed"`
	MinSize         float32    `toml:"minSize"`
	MaxSize         float32    `toml:"maxSize"`
	SizeScale       float32    `toml:"sizeScale"`
	MinRotate       float32    `toml:"minRotate"`
	MaxRotate       float32    `toml:"maxRotate"`
	ColorRangeStart mgl32.Vec4 `toml:"colorRangeStart"`
	ColorRangeEnd   mgl32.Vec4 `toml:"colorRangeEnd"`
}

type ParticleAffector struct {
	MinAcceleration float32    `toml:"minAcceleration"`
	MaxAcceleration float32    `toml:"maxAcceleration"`
	MinRotateSpeed  float32    `toml:"minRotateSpeed"`
	MaxRotateSpeed  float32    `toml:"maxRotateSpeed"`
	MinScaleSpeed   float32    `toml:"minScaleSpeed"`
	MaxScaleSpeed   float32    `toml:"maxScaleSpeed"`
	ColorChanger    mgl32.Vec4 `toml:"colorChanger"`
}

/** @brief Parsed content of a *.particle file. */
type ParticleSystemSettings struct {
	Name              string           `toml:"name"`
	MaterialName      string           `toml:"materialName"`
	ComputeShaderName string           `toml:"computeShaderName"`
	Quota             uint32           `toml:"quota"`
	Sort              bool             `toml:"sort"`
	ParticleEmitter   ParticleEmitter  `toml:"particleEmitter"`
	ParticleAffector  ParticleAffector `toml:"particleAffector"`
}

type FontSymbol struct {
	X       int32 `toml:"x"`
	Y       int32 `toml:"y"`
	Width   int32 `toml:"width"`
	Height  int32 `toml:"height"`
	OriginX int32 `toml:"originX"`
	OriginY int32 `toml:"originY"`
	Advance int32 `toml:"advance"`
}

/** @brief Parsed content of a *.font file. Glyphs come inline or from a BMFont descriptor. */
type FontSettings struct {
	Name         string `toml:"name"`
	MaterialName string `toml:"material"`
	Width        uint32 `toml:"width"`
	Height       uint32 `toml:"height"`
	Size         uint32 `toml:"size"`
	/** @brief Optional BMFont (.fnt) descriptor, relative to the font file. */
	Descriptor string                `toml:"descriptor"`
	Characters map[string]FontSymbol `toml:"characters"`
	Symbols    map[rune]FontSymbol   `toml:"-"`

	/** @brief Largest distance from the baseline to a glyph top. */
	MaxHeight int32 `toml:"-"`
	/** @brief Largest glyph extent once aligned on the baseline. */
	MaxGlyphHeight int32 `toml:"-"`
}
