package renderer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type meshKey struct {
	name   string
	stride uint32
	flags  string
}

// Mesh is a set of uploaded geometries sharing one vertex layout.
type Mesh struct {
	Name       string
	Geometries []*metadata.Geometry
	Bones      []mgl32.Mat4
}

func (m *Mesh) IsSkeletal() bool {
	return len(m.Bones) > 0
}

// MeshManager keeps the decoded meshes and uploads them once per vertex layout.
type MeshManager struct {
	backend  RendererBackend
	data     map[string]*metadata.MeshData
	uploaded map[meshKey]*Mesh
	release  ReleaseStack
}

func NewMeshManager(backend RendererBackend) *MeshManager {
	return &MeshManager{
		backend:  backend,
		data:     make(map[string]*metadata.MeshData),
		uploaded: make(map[meshKey]*Mesh),
	}
}

func (mm *MeshManager) Register(data *metadata.MeshData) error {
	if _, ok := mm.data[data.Name]; ok {
		return fmt.Errorf("mesh %s: %w", data.Name, core.ErrAlreadyExists)
	}
	mm.data[data.Name] = data
	return nil
}

func (mm *MeshManager) Count() int {
	return len(mm.data)
}

// Get returns the mesh interleaved for layout, uploading it on first use.
func (mm *MeshManager) Get(name string, layout metadata.VertexInfo) (*Mesh, error) {
	data, ok := mm.data[name]
	if !ok {
		return nil, core.Fatalf("can't find mesh %s", name)
	}
	key := meshKey{name: name, stride: layout.Stride(), flags: fmt.Sprint(layout.VertexDataFlags)}
	if mesh, ok := mm.uploaded[key]; ok {
		return mesh, nil
	}

	mesh := &Mesh{Name: name, Bones: data.Bones}
	for i := range data.Parts {
		part := &data.Parts[i]
		vertices := InterleaveVertices(part, layout)
		geometry, err := mm.backend.GeometryCreate(vertices, uint32(len(part.Positions)), part.Indices)
		if err != nil {
			return nil, core.Fatalf("mesh %s: failed to create geometry: %w", name, err)
		}
		mesh.Geometries = append(mesh.Geometries, Own(&mm.release, geometry, mm.backend.GeometryDestroy))
	}
	mm.uploaded[key] = mesh
	return mesh, nil
}

// InterleaveVertices lays the part's attributes out one vertex after the
// other, in VertexAttributeOrder. Missing attributes are zero filled.
func InterleaveVertices(part *metadata.MeshPart, layout metadata.VertexInfo) []byte {
	stride := layout.Stride()
	out := make([]byte, int(stride)*len(part.Positions))
	put := func(offset int, v float32) int {
		binary.LittleEndian.PutUint32(out[offset:], math.Float32bits(v))
		return offset + 4
	}

	offset := 0
	for i := range part.Positions {
		for _, flag := range metadata.VertexAttributeOrder {
			if !layout.Has(flag) {
				continue
			}
			values := attribute(part, flag, i)
			for c := uint32(0); c < layout.Components(flag); c++ {
				v := float32(0)
				if int(c) < len(values) {
					v = values[c]
				} else if flag == metadata.VertexColor && c == 3 {
					v = 1
				}
				offset = put(offset, v)
			}
		}
	}
	return out
}

func attribute(part *metadata.MeshPart, flag metadata.VertexDataFlag, i int) []float32 {
	switch flag {
	case metadata.VertexPosition:
		return part.Positions[i][:]
	case metadata.VertexColor:
		if i < len(part.Colors) {
			return part.Colors[i][:]
		}
		return []float32{1, 1, 1, 1}
	case metadata.VertexTexCoord:
		if i < len(part.TexCoords) {
			return part.TexCoords[i][:]
		}
	case metadata.VertexNormal:
		if i < len(part.Normals) {
			return part.Normals[i][:]
		}
	case metadata.VertexBinormal:
		if i < len(part.Binormals) {
			return part.Binormals[i][:]
		}
	case metadata.VertexTangent:
		if i < len(part.Tangents) {
			return part.Tangents[i][:]
		}
	case metadata.VertexBoneWeights:
		if i < len(part.BoneWeights) {
			return part.BoneWeights[i][:]
		}
	case metadata.VertexBoneIds:
		if i < len(part.BoneIds) {
			return part.BoneIds[i][:]
		}
	}
	return nil
}

func (mm *MeshManager) Shutdown() {
	mm.release.Release()
	mm.uploaded = make(map[meshKey]*Mesh)
	mm.data = make(map[string]*metadata.MeshData)
}
