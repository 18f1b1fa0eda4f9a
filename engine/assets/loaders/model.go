package loaders

import (
	"bytes"
	"fmt"
	"io/fs"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// DecodeGLTF converts every primitive of a glTF or GLB file into one mesh
// part. External buffers are resolved against fsys, which may be nil for
// self contained files. Only the first skin is read.
func DecodeGLTF(data []byte, fsys fs.FS, settings metadata.MeshLoadSettings) (*metadata.MeshData, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(doc); err != nil {
		return nil, fmt.Errorf("mesh %s: %w: %s", settings.Name, core.ErrUnsupportedResource, err.Error())
	}

	transform := meshTransform(settings)
	mesh := &metadata.MeshData{Name: settings.Name}
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			part, err := decodePrimitive(doc, prim, transform, settings.SwitchYZ)
			if err != nil {
				return nil, fmt.Errorf("mesh %s: primitive %d of mesh %d: %w", settings.Name, pi, mi, err)
			}
			mesh.Parts = append(mesh.Parts, part)
		}
	}
	if len(mesh.Parts) == 0 {
		return nil, fmt.Errorf("mesh %s: no primitives: %w", settings.Name, core.ErrUnsupportedResource)
	}

	if len(doc.Skins) > 0 && doc.Skins[0].InverseBindMatrices != nil {
		bones, err := readMatrices(doc, *doc.Skins[0].InverseBindMatrices)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: inverse bind matrices: %w", settings.Name, err)
		}
		mesh.Bones = bones
	}
	return mesh, nil
}

// meshTransform applies the load scale, then turns Z-up content into Y-up
// with a rotation so the winding order survives.
func meshTransform(settings metadata.MeshLoadSettings) mgl32.Mat4 {
	scale := settings.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	m := mgl32.Scale3D(scale[0], scale[1], scale[2])
	if settings.SwitchYZ {
		m = mgl32.HomogRotate3DX(mgl32.DegToRad(-90)).Mul4(m)
	}
	return m
}

func decodePrimitive(doc *gltf.Document, prim *gltf.Primitive, transform mgl32.Mat4, switchYZ bool) (metadata.MeshPart, error) {
	var part metadata.MeshPart

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return part, fmt.Errorf("no POSITION attribute: %w", core.ErrUnsupportedResource)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return part, fmt.Errorf("positions: %w", err)
	}
	part.Positions = make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		part.Positions[i] = mgl32.TransformCoordinate(mgl32.Vec3{p[0], p[1], p[2]}, transform)
	}

	normalMatrix := mgl32.Ident3()
	if switchYZ {
		normalMatrix = transform.Mat3().Inv().Transpose()
	}
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return part, fmt.Errorf("normals: %w", err)
		}
		part.Normals = make([]mgl32.Vec3, len(normals))
		for i, n := range normals {
			part.Normals[i] = normalMatrix.Mul3x1(mgl32.Vec3{n[0], n[1], n[2]}).Normalize()
		}
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return part, fmt.Errorf("texture coordinates: %w", err)
		}
		part.TexCoords = make([]mgl32.Vec2, len(uvs))
		for i, uv := range uvs {
			part.TexCoords[i] = mgl32.Vec2{uv[0], uv[1]}
		}
	}
	if idx, ok := prim.Attributes["TANGENT"]; ok && len(part.Normals) > 0 {
		tangents, err := modeler.ReadTangent(doc, doc.Accessors[idx], nil)
		if err != nil {
			return part, fmt.Errorf("tangents: %w", err)
		}
		part.Tangents = make([]mgl32.Vec3, len(tangents))
		part.Binormals = make([]mgl32.Vec3, len(tangents))
		for i, t := range tangents {
			tangent := normalMatrix.Mul3x1(mgl32.Vec3{t[0], t[1], t[2]})
			part.Tangents[i] = tangent
			if i < len(part.Normals) {
				part.Binormals[i] = part.Normals[i].Cross(tangent).Mul(t[3])
			}
		}
	}
	if idx, ok := prim.Attributes["JOINTS_0"]; ok {
		joints, err := modeler.ReadJoints(doc, doc.Accessors[idx], nil)
		if err != nil {
			return part, fmt.Errorf("joints: %w", err)
		}
		part.BoneIds = make([]mgl32.Vec4, len(joints))
		for i, j := range joints {
			part.BoneIds[i] = mgl32.Vec4{float32(j[0]), float32(j[1]), float32(j[2]), float32(j[3])}
		}
	}
	if idx, ok := prim.Attributes["WEIGHTS_0"]; ok {
		weights, err := modeler.ReadWeights(doc, doc.Accessors[idx], nil)
		if err != nil {
			return part, fmt.Errorf("weights: %w", err)
		}
		part.BoneWeights = make([]mgl32.Vec4, len(weights))
		for i, w := range weights {
			part.BoneWeights[i] = mgl32.Vec4{w[0], w[1], w[2], w[3]}
		}
	}

	if prim.Indices != nil {
		part.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return part, fmt.Errorf("indices: %w", err)
		}
	} else {
		part.Indices = make([]uint32, len(part.Positions))
		for i := range part.Indices {
			part.Indices[i] = uint32(i)
		}
	}
	return part, nil
}

func readMatrices(doc *gltf.Document, accessor int) ([]mgl32.Mat4, error) {
	raw, err := modeler.ReadAccessor(doc, doc.Accessors[accessor], nil)
	if err != nil {
		return nil, err
	}
	matrices, ok := raw.([][4][4]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected accessor type %T: %w", raw, core.ErrUnsupportedResource)
	}
	out := make([]mgl32.Mat4, len(matrices))
	for i, m := range matrices {
		// both sides are column major
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				out[i][c*4+r] = m[c][r]
			}
		}
	}
	return out, nil
}
