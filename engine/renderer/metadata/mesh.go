package metadata

import "github.com/go-gl/mathgl/mgl32"

/** @brief One primitive of a decoded mesh file, attributes stored separately. */
type MeshPart struct {
	Positions   []mgl32.Vec3
	Colors      []mgl32.Vec4
	TexCoords   []mgl32.Vec2
	Normals     []mgl32.Vec3
	Binormals   []mgl32.Vec3
	Tangents    []mgl32.Vec3
	BoneWeights []mgl32.Vec4
	BoneIds     []mgl32.Vec4
	Indices     []uint32
}

/** @brief A decoded mesh, ready to be interleaved for a vertex layout. */
type MeshData struct {
	Name  string
	Parts []MeshPart
	/** @brief Inverse bind matrices, empty for static meshes. */
	Bones []mgl32.Mat4
}

func (m *MeshData) IsSkeletal() bool {
	return len(m.Bones) > 0
}

func (m *MeshData) VertexCount() int {
	n := 0
	for i := range m.Parts {
		n += len(m.Parts[i].Positions)
	}
	return n
}
