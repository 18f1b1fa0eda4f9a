package engine

import (
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
	"github.com/spaghettifunk/chewman/engine/resources"
	"github.com/spaghettifunk/chewman/engine/scene"
)

// registry routes loaded resources to the renderer managers and the scene.
type registry struct {
	renderer *renderer.Renderer
	scene    *scene.SceneManager
}

var _ resources.Registry = (*registry)(nil)

func (r *registry) RegisterShader(settings metadata.ShaderSettings, code []byte) error {
	_, err := r.renderer.Shaders.Register(settings, code)
	return err
}

func (r *registry) RegisterLight(settings metadata.LightSettings) error {
	return r.scene.RegisterLight(settings)
}

func (r *registry) RegisterMaterial(settings metadata.MaterialSettings) error {
	_, err := r.renderer.Materials.Register(settings)
	return err
}

func (r *registry) RegisterMesh(mesh *metadata.MeshData) error {
	return r.renderer.Meshes.Register(mesh)
}

func (r *registry) RegisterParticleSystem(settings metadata.ParticleSystemSettings) error {
	return r.scene.RegisterParticleSystem(settings)
}

func (r *registry) RegisterFont(settings metadata.FontSettings) error {
	return r.scene.RegisterFont(settings)
}
