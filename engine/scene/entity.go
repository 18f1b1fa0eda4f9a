package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// Depth-only materials used by entities in the shadow passes.
const (
	ShadowMaterialName         = "SimpleDepth"
	SkeletalShadowMaterialName = "SimpleSkeletalDepth"
)

// UniformDataList holds the per pass uniform data of a frame, with the
// model matrix of the node being visited.
type UniformDataList map[metadata.CommandsType]*renderer.UniformData

// Entity is anything a scene node can draw.
type Entity interface {
	UpdateUniforms(data UniformDataList, imageIndex uint32) error
	ApplyDrawingCommands(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error
	IsCastShadows() bool
	IsReflected() bool
}

/**
 * @brief A mesh drawn with one material. Besides the main instance it holds
 * the water instances of the same material and an instance of the depth
 * material for shadows.
 */
type MeshEntity struct {
	id       core.EntityID
	scene    *SceneManager
	meshName string

	material      *renderer.Material
	mesh          *renderer.Mesh
	materialIndex int

	reflectionIndex int
	refractionIndex int

	shadowMaterial      *renderer.Material
	shadowMesh          *renderer.Mesh
	shadowMaterialIndex int

	castShadows bool
	isReflected bool
}

// NewMeshEntity creates an entity for a registered mesh drawn with
// materialName.
func NewMeshEntity(scene *SceneManager, meshName, materialName string) (*MeshEntity, error) {
	e := &MeshEntity{
		id:              core.NewEntityID(),
		scene:           scene,
		meshName:        meshName,
		reflectionIndex: -1,
		refractionIndex: -1,
		castShadows:     true,
		isReflected:     true,
	}
	if err := e.SetMaterial(materialName); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *MeshEntity) ID() core.EntityID {
	return e.id
}

func (e *MeshEntity) MeshName() string {
	return e.meshName
}

func (e *MeshEntity) Material() *renderer.Material {
	return e.material
}

// SetMaterial switches the entity to another material and acquires its
// instances. Instances of the previous material stay reserved for the entity.
func (e *MeshEntity) SetMaterial(materialName string) error {
	r := e.scene.renderer
	material, err := r.Materials.Get(materialName, false)
	if err != nil {
		return err
	}
	mesh, err := r.Meshes.Get(e.meshName, material.VertexInfo())
	if err != nil {
		return err
	}
	index, err := material.GetInstanceForEntity(e.id, renderer.VariantMain)
	if err != nil {
		return err
	}
	e.material, e.mesh, e.materialIndex = material, mesh, index

	e.reflectionIndex, e.refractionIndex = -1, -1
	if e.scene.WaterEnabled() {
		if e.reflectionIndex, err = material.GetInstanceForEntity(e.id, renderer.VariantReflection); err != nil {
			return err
		}
		if e.refractionIndex, err = material.GetInstanceForEntity(e.id, renderer.VariantRefraction); err != nil {
			return err
		}
	}

	e.shadowMaterial, e.shadowMesh = nil, nil
	if e.scene.ShadowsEnabled() {
		shadowName := ShadowMaterialName
		if material.IsSkeletal() {
			shadowName = SkeletalShadowMaterialName
		}
		if e.shadowMaterial, err = r.Materials.Get(shadowName, false); err != nil {
			return err
		}
		if e.shadowMesh, err = r.Meshes.Get(e.meshName, e.shadowMaterial.VertexInfo()); err != nil {
			return err
		}
		if e.shadowMaterialIndex, err = e.shadowMaterial.GetInstanceForEntity(e.id, renderer.VariantMain); err != nil {
			return err
		}
	}
	return nil
}

func (e *MeshEntity) SetCastShadows(castShadows bool) {
	e.castShadows = castShadows
}

func (e *MeshEntity) IsCastShadows() bool {
	return e.castShadows
}

func (e *MeshEntity) SetIsReflected(isReflected bool) {
	e.isReflected = isReflected
}

func (e *MeshEntity) IsReflected() bool {
	return e.isReflected
}

// bones returns the skinning matrices of the bind pose.
// TODO: sample the glTF animation channels at the scene time.
func (e *MeshEntity) bones() []mgl32.Mat4 {
	if !e.mesh.IsSkeletal() {
		return nil
	}
	bones := make([]mgl32.Mat4, len(e.mesh.Bones))
	for i := range bones {
		bones[i] = mgl32.Ident4()
	}
	return bones
}

func (e *MeshEntity) UpdateUniforms(data UniformDataList, imageIndex uint32) error {
	main := *data[metadata.MainPass]
	main.Bones = e.bones()
	if err := e.material.SetUniformData(e.materialIndex, &main, imageIndex); err != nil {
		return err
	}

	if e.shadowMaterial != nil {
		shadow := *data[metadata.ShadowPassDirectLight]
		shadow.Bones = main.Bones
		if err := e.shadowMaterial.SetUniformData(e.shadowMaterialIndex, &shadow, imageIndex); err != nil {
			return err
		}
	}
	if e.reflectionIndex >= 0 {
		reflection := *data[metadata.ReflectionPass]
		reflection.Bones = main.Bones
		if err := e.material.SetUniformData(e.reflectionIndex, &reflection, imageIndex); err != nil {
			return err
		}

		refraction := *data[metadata.RefractionPass]
		refraction.Bones = main.Bones
		if err := e.material.SetUniformData(e.refractionIndex, &refraction, imageIndex); err != nil {
			return err
		}
	}
	return nil
}

func (e *MeshEntity) ApplyDrawingCommands(cb *metadata.CommandBuffer, pass metadata.CommandsType, imageIndex uint32) error {
	material, index, mesh := e.material, e.materialIndex, e.mesh
	switch {
	case pass == metadata.ReflectionPass:
		if !e.isReflected || e.reflectionIndex < 0 {
			return nil
		}
		index = e.reflectionIndex
	case pass == metadata.RefractionPass:
		if !e.isReflected || e.refractionIndex < 0 {
			return nil
		}
		index = e.refractionIndex
	case pass.IsShadow():
		if e.shadowMaterial == nil || !e.castShadows {
			return nil
		}
		material, index, mesh = e.shadowMaterial, e.shadowMaterialIndex, e.shadowMesh
	}

	if err := material.ApplyDrawingCommands(cb, index, imageIndex); err != nil {
		return err
	}
	backend := e.scene.renderer.Backend
	for _, geometry := range mesh.Geometries {
		backend.CmdDrawGeometry(cb, geometry, 1)
	}
	return nil
}
