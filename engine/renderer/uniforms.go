package renderer

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type MaterialInfo struct {
	Ambient   mgl32.Vec4
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec4
	Shininess float32
}

type LightInfo struct {
	IsSimpleLight uint32
	EnableShadows uint32
	LightLineNum  uint32
	PointLightNum uint32
}

type DirLight struct {
	Direction mgl32.Vec4
	Ambient   mgl32.Vec4
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec4
}

type PointLight struct {
	Position  mgl32.Vec4
	Ambient   mgl32.Vec4
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec4
	Constant  float32
	Linear    float32
	Quadratic float32
}

type SimplePointLight struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

type SpotLight struct {
	Position    mgl32.Vec4
	Direction   mgl32.Vec4
	Ambient     mgl32.Vec4
	Diffuse     mgl32.Vec4
	Specular    mgl32.Vec4
	CutOff      float32
	OuterCutOff float32
	Constant    float32
	Linear      float32
	Quadratic   float32
}

type LineLight struct {
	StartPosition mgl32.Vec4
	EndPosition   mgl32.Vec4
	Ambient       mgl32.Vec4
	Diffuse       mgl32.Vec4
	Specular      mgl32.Vec4
	Constant      float32
	Linear        float32
	Quadratic     float32
}

type TextInfo struct {
	Color       mgl32.Vec4
	Position    mgl32.Vec2
	Scale       float32
	SymbolCount uint32
}

type GlyphInfo struct {
	Rect   mgl32.Vec4
	Origin mgl32.Vec2
	Size   mgl32.Vec2
}

type OverlayInfo struct {
	Rect  mgl32.Vec4
	Color mgl32.Vec4
}

// UniformData is everything an entity can feed to its shaders in one frame.
// A shader picks the fields it needs through its uniform list.
type UniformData struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	CameraPos  mgl32.Vec4
	ClipPlane  mgl32.Vec4

	ViewProjectionList []mgl32.Mat4

	MaterialInfo      MaterialInfo
	LightInfo         LightInfo
	DirLight          DirLight
	PointLights       []PointLight
	SimplePointLights []SimplePointLight
	LineLights        []LineLight
	SpotLight         SpotLight

	LightPointViewProjectionList  []mgl32.Mat4
	LightDirectViewProjectionList []mgl32.Mat4
	LightDirectViewProjection     mgl32.Mat4

	Bones []mgl32.Mat4

	ParticleEmitter  metadata.ParticleEmitter
	ParticleAffector metadata.ParticleAffector
	ParticleCount    uint32

	SpritesheetSize [2]int32
	ImageSize       mgl32.Vec4

	TextInfo       TextInfo
	GlyphList      []GlyphInfo
	TextSymbolList []uint32
	OverlayInfo    OverlayInfo

	CustomFloats []float32
	CustomVec4s  []mgl32.Vec4
	CustomMat4s  []mgl32.Mat4

	Time      float32
	DeltaTime float32
}

// NewUniformData returns data with identity matrices.
func NewUniformData() *UniformData {
	return &UniformData{
		Model:      mgl32.Ident4(),
		View:       mgl32.Ident4(),
		Projection: mgl32.Ident4(),
	}
}

const (
	mat4Size             = 64
	vec4Size             = 16
	scalarSize           = 4
	materialInfoSize     = 3*vec4Size + vec4Size
	lightInfoSize        = 4 * scalarSize
	dirLightSize         = 4 * vec4Size
	pointLightSize       = 4*vec4Size + vec4Size
	simplePointLightSize = 2 * vec4Size
	spotLightSize        = 5*vec4Size + 2*vec4Size
	lineLightSize        = 5*vec4Size + vec4Size
	particleEmitterSize  = mat4Size + 12*scalarSize + 2*vec4Size
	particleAffectorSize = 2*vec4Size + vec4Size
	textInfoSize         = 2 * vec4Size
	glyphInfoSize        = 2 * vec4Size
	overlayInfoSize      = 2 * vec4Size
)

// uniformSize returns the packed size of one uniform field for a shader.
// List fields are sized by the shader's maximum element count.
func uniformSize(t metadata.UniformType, s *metadata.ShaderSettings) uint32 {
	switch t {
	case metadata.UniformModelMatrix, metadata.UniformViewMatrix, metadata.UniformProjectionMatrix,
		metadata.UniformInverseModelMatrix, metadata.UniformModelViewProjectionMatrix,
		metadata.UniformViewProjectionMatrix, metadata.UniformLightDirectViewProjection,
		metadata.UniformCustomMat4:
		return mat4Size
	case metadata.UniformViewProjectionMatrixList:
		return mat4Size * s.MaxViewProjectionMatrices
	case metadata.UniformViewProjectionMatrixSize, metadata.UniformParticleCount,
		metadata.UniformCustomFloat, metadata.UniformTime, metadata.UniformDeltaTime:
		return scalarSize
	case metadata.UniformCameraPosition, metadata.UniformClipPlane, metadata.UniformImageSize,
		metadata.UniformCustomVec4:
		return vec4Size
	case metadata.UniformMaterialInfo:
		return materialInfoSize
	case metadata.UniformLightInfo:
		return lightInfoSize
	case metadata.UniformLightDirectional:
		return dirLightSize
	case metadata.UniformLightPoint:
		return pointLightSize * s.MaxLightSize
	case metadata.UniformLightPointSimple:
		return simplePointLightSize * s.MaxLightSize
	case metadata.UniformLightLine:
		return lineLightSize * s.MaxLineLightSize
	case metadata.UniformLightSpot:
		return spotLightSize
	case metadata.UniformLightPointViewProjectionList:
		return 6 * mat4Size * s.MaxShadowPointLightSize
	case metadata.UniformLightDirectViewProjectionList:
		return mat4Size * s.MaxCascadeLightSize
	case metadata.UniformBoneMatrices:
		return mat4Size * s.MaxBonesSize
	case metadata.UniformParticleEmitter:
		return particleEmitterSize
	case metadata.UniformParticleAffector:
		return particleAffectorSize
	case metadata.UniformSpritesheetSize:
		return 2 * scalarSize
	case metadata.UniformTextInfo:
		return textInfoSize
	case metadata.UniformGlyphInfoList:
		return glyphInfoSize * s.MaxGlyphCount
	case metadata.UniformTextSymbolList:
		return scalarSize * s.MaxGlyphCount
	case metadata.UniformOverlayInfo:
		return overlayInfoSize
	}
	return 0
}

// fieldWriter fills a zeroed, exactly sized field slice. Writes past the end are dropped.
type fieldWriter struct {
	dst []byte
	pos int
}

func (w *fieldWriter) u32(v uint32) {
	if w.pos+scalarSize > len(w.dst) {
		w.pos = len(w.dst)
		return
	}
	binary.LittleEndian.PutUint32(w.dst[w.pos:], v)
	w.pos += scalarSize
}

func (w *fieldWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *fieldWriter) i32(v int32) { w.u32(uint32(v)) }

func (w *fieldWriter) floats(vs ...float32) {
	for _, v := range vs {
		w.f32(v)
	}
}

// mat4 writes column-major, as mgl32 stores it and GLSL expects.
func (w *fieldWriter) mat4(m mgl32.Mat4) { w.floats(m[:]...) }

func (w *fieldWriter) vec4(v mgl32.Vec4) { w.floats(v[:]...) }

// pad skips to the next multiple of n bytes.
func (w *fieldWriter) pad(n int) {
	if r := w.pos % n; r != 0 {
		w.pos += n - r
	}
	if w.pos > len(w.dst) {
		w.pos = len(w.dst)
	}
}

// writeUniform packs one field into dst, which is exactly uniformSize bytes.
func writeUniform(dst []byte, t metadata.UniformType, index uint32, d *UniformData) {
	w := &fieldWriter{dst: dst}
	switch t {
	case metadata.UniformModelMatrix:
		w.mat4(d.Model)
	case metadata.UniformViewMatrix:
		w.mat4(d.View)
	case metadata.UniformProjectionMatrix:
		w.mat4(d.Projection)
	case metadata.UniformInverseModelMatrix:
		w.mat4(d.Model.Inv())
	case metadata.UniformModelViewProjectionMatrix:
		w.mat4(d.Projection.Mul4(d.View).Mul4(d.Model))
	case metadata.UniformViewProjectionMatrix:
		w.mat4(d.Projection.Mul4(d.View))
	case metadata.UniformViewProjectionMatrixList:
		for _, m := range d.ViewProjectionList {
			w.mat4(m)
		}
	case metadata.UniformViewProjectionMatrixSize:
		w.u32(uint32(len(d.ViewProjectionList)))
	case metadata.UniformCameraPosition:
		w.vec4(d.CameraPos)
	case metadata.UniformMaterialInfo:
		w.vec4(d.MaterialInfo.Ambient)
		w.vec4(d.MaterialInfo.Diffuse)
		w.vec4(d.MaterialInfo.Specular)
		w.f32(d.MaterialInfo.Shininess)
	case metadata.UniformLightInfo:
		w.u32(d.LightInfo.IsSimpleLight)
		w.u32(d.LightInfo.EnableShadows)
		w.u32(d.LightInfo.LightLineNum)
		w.u32(d.LightInfo.PointLightNum)
	case metadata.UniformLightDirectional:
		l := d.DirLight
		w.vec4(l.Direction)
		w.vec4(l.Ambient)
		w.vec4(l.Diffuse)
		w.vec4(l.Specular)
	case metadata.UniformLightPoint:
		for _, l := range d.PointLights {
			w.vec4(l.Position)
			w.vec4(l.Ambient)
			w.vec4(l.Diffuse)
			w.vec4(l.Specular)
			w.floats(l.Constant, l.Linear, l.Quadratic)
			w.pad(vec4Size)
		}
	case metadata.UniformLightPointSimple:
		for _, l := range d.SimplePointLights {
			w.vec4(l.Position)
			w.vec4(l.Color)
		}
	case metadata.UniformLightLine:
		for _, l := range d.LineLights {
			w.vec4(l.StartPosition)
			w.vec4(l.EndPosition)
			w.vec4(l.Ambient)
			w.vec4(l.Diffuse)
			w.vec4(l.Specular)
			w.floats(l.Constant, l.Linear, l.Quadratic)
			w.pad(vec4Size)
		}
	case metadata.UniformLightSpot:
		l := d.SpotLight
		w.vec4(l.Position)
		w.vec4(l.Direction)
		w.vec4(l.Ambient)
		w.vec4(l.Diffuse)
		w.vec4(l.Specular)
		w.floats(l.CutOff, l.OuterCutOff, l.Constant, l.Linear, l.Quadratic)
	case metadata.UniformLightPointViewProjectionList:
		for _, m := range d.LightPointViewProjectionList {
			w.mat4(m)
		}
	case metadata.UniformLightDirectViewProjectionList:
		for _, m := range d.LightDirectViewProjectionList {
			w.mat4(m)
		}
	case metadata.UniformLightDirectViewProjection:
		w.mat4(d.LightDirectViewProjection)
	case metadata.UniformBoneMatrices:
		for _, m := range d.Bones {
			w.mat4(m)
		}
	case metadata.UniformClipPlane:
		w.vec4(d.ClipPlane)
	case metadata.UniformParticleEmitter:
		e := d.ParticleEmitter
		w.mat4(e.ToDirection)
		w.floats(e.Angle, e.OriginRadius, e.EmissionRate, e.MinLife, e.MaxLife, e.MinSpeed,
			e.MaxSpeed, e.MinSize, e.MaxSize, e.SizeScale, e.MinRotate, e.MaxRotate)
		w.vec4(e.ColorRangeStart)
		w.vec4(e.ColorRangeEnd)
	case metadata.UniformParticleAffector:
		a := d.ParticleAffector
		w.floats(a.MinAcceleration, a.MaxAcceleration, a.MinRotateSpeed, a.MaxRotateSpeed,
			a.MinScaleSpeed, a.MaxScaleSpeed)
		w.pad(vec4Size)
		w.vec4(a.ColorChanger)
	case metadata.UniformParticleCount:
		w.u32(d.ParticleCount)
	case metadata.UniformSpritesheetSize:
		w.i32(d.SpritesheetSize[0])
		w.i32(d.SpritesheetSize[1])
	case metadata.UniformImageSize:
		w.vec4(d.ImageSize)
	case metadata.UniformTextInfo:
		w.vec4(d.TextInfo.Color)
		w.floats(d.TextInfo.Position[0], d.TextInfo.Position[1], d.TextInfo.Scale)
		w.u32(d.TextInfo.SymbolCount)
	case metadata.UniformGlyphInfoList:
		for _, g := range d.GlyphList {
			w.vec4(g.Rect)
			w.floats(g.Origin[0], g.Origin[1], g.Size[0], g.Size[1])
		}
	case metadata.UniformTextSymbolList:
		for _, s := range d.TextSymbolList {
			w.u32(s)
		}
	case metadata.UniformOverlayInfo:
		w.vec4(d.OverlayInfo.Rect)
		w.vec4(d.OverlayInfo.Color)
	case metadata.UniformCustomFloat:
		if int(index) < len(d.CustomFloats) {
			w.f32(d.CustomFloats[index])
		}
	case metadata.UniformCustomVec4:
		if int(index) < len(d.CustomVec4s) {
			w.vec4(d.CustomVec4s[index])
		}
	case metadata.UniformCustomMat4:
		if int(index) < len(d.CustomMat4s) {
			w.mat4(d.CustomMat4s[index])
		}
	case metadata.UniformTime:
		w.f32(d.Time)
	case metadata.UniformDeltaTime:
		w.f32(d.DeltaTime)
	}
}
