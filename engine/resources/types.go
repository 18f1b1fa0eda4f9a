package resources

import (
	"path"
	"strings"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type ResourceType int

/** @brief Pre-defined resource types, one per settings file extension. */
const (
	ResourceTypeNone ResourceType = iota
	/** @brief Engine settings (*.engine). */
	ResourceTypeEngine
	/** @brief Shader settings plus the SPIR-V binary they point to (*.shader). */
	ResourceTypeShader
	ResourceTypeMaterial
	/** @brief Mesh settings plus the decoded glTF file (*.mesh). */
	ResourceTypeMesh
	ResourceTypeLight
	ResourceTypeParticleSystem
	ResourceTypeFont
)

var resourceExtensions = map[string]ResourceType{
	".engine":   ResourceTypeEngine,
	".shader":   ResourceTypeShader,
	".material": ResourceTypeMaterial,
	".mesh":     ResourceTypeMesh,
	".light":    ResourceTypeLight,
	".particle": ResourceTypeParticleSystem,
	".font":     ResourceTypeFont,
}

// ResourceTypeOf classifies a file by its extension.
func ResourceTypeOf(filename string) ResourceType {
	return resourceExtensions[strings.ToLower(path.Ext(filename))]
}

func (t ResourceType) String() string {
	for ext, v := range resourceExtensions {
		if v == t {
			return strings.TrimPrefix(ext, ".")
		}
	}
	return "none"
}

type ShaderResource struct {
	Settings metadata.ShaderSettings
	Code     []byte
}

type MeshResource struct {
	Settings metadata.MeshLoadSettings
	Data     *metadata.MeshData
}

/**
 * @brief Parsed but unregistered content of one or more folders. Lists keep
 * the sorted file order of each folder.
 */
type LoadData struct {
	Engine    []core.EngineSettings
	Shaders   []ShaderResource
	Lights    []metadata.LightSettings
	Materials []metadata.MaterialSettings
	Meshes    []MeshResource
	Particles []metadata.ParticleSystemSettings
	Fonts     []metadata.FontSettings
}

func (d *LoadData) Append(other LoadData) {
	d.Engine = append(d.Engine, other.Engine...)
	d.Shaders = append(d.Shaders, other.Shaders...)
	d.Lights = append(d.Lights, other.Lights...)
	d.Materials = append(d.Materials, other.Materials...)
	d.Meshes = append(d.Meshes, other.Meshes...)
	d.Particles = append(d.Particles, other.Particles...)
	d.Fonts = append(d.Fonts, other.Fonts...)
}

// Count is the number of items registration walks through. Engine settings
// are applied at startup and are not counted.
func (d *LoadData) Count() int {
	return len(d.Shaders) + len(d.Lights) + len(d.Materials) + len(d.Meshes) + len(d.Particles) + len(d.Fonts)
}

// Registry receives parsed resources, in load order.
type Registry interface {
	RegisterShader(settings metadata.ShaderSettings, code []byte) error
	RegisterLight(settings metadata.LightSettings) error
	RegisterMaterial(settings metadata.MaterialSettings) error
	RegisterMesh(mesh *metadata.MeshData) error
	RegisterParticleSystem(settings metadata.ParticleSystemSettings) error
	RegisterFont(settings metadata.FontSettings) error
}
