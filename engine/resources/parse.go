package resources

import (
	"fmt"
	"io/fs"
	"path"
	"unicode/utf8"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// localPather is implemented by file systems that live on disk.
type localPather interface {
	LocalPath(name string) (string, bool)
}

// loadFile parses one settings file into data. Unsupported files are
// skipped.
func loadFile(fsys assets.FileSystem, file string, data *LoadData) error {
	kind := ResourceTypeOf(file)
	if kind == ResourceTypeNone {
		core.LogDebug("skipping unsupported file %s", file)
		return nil
	}

	content, err := fsys.FileContent(file)
	if err == nil {
		err = parseResource(fsys, file, kind, content, data)
	}
	if err != nil {
		return core.Fatalf("can't load resource file %s: %w", file, err)
	}
	return nil
}

func parseResource(fsys assets.FileSystem, file string, kind ResourceType, content []byte, data *LoadData) error {
	switch kind {
	case ResourceTypeEngine:
		settings, err := core.ParseEngineSettings(content)
		if err != nil {
			return err
		}
		data.Engine = append(data.Engine, settings)
	case ResourceTypeShader:
		shader, err := parseShader(fsys, file, content)
		if err != nil {
			return err
		}
		data.Shaders = append(data.Shaders, shader)
	case ResourceTypeMaterial:
		settings, err := parseMaterial(file, content)
		if err != nil {
			return err
		}
		data.Materials = append(data.Materials, settings)
	case ResourceTypeMesh:
		mesh, err := parseMesh(fsys, file, content)
		if err != nil {
			return err
		}
		data.Meshes = append(data.Meshes, mesh)
	case ResourceTypeLight:
		settings, err := parseLight(content)
		if err != nil {
			return err
		}
		data.Lights = append(data.Lights, settings)
	case ResourceTypeParticleSystem:
		settings, err := parseParticleSystem(content)
		if err != nil {
			return err
		}
		data.Particles = append(data.Particles, settings)
	case ResourceTypeFont:
		settings, err := parseFont(fsys, file, content)
		if err != nil {
			return err
		}
		data.Fonts = append(data.Fonts, settings)
	}
	return nil
}

func parseShader(fsys assets.FileSystem, file string, content []byte) (ShaderResource, error) {
	settings := metadata.DefaultShaderSettings()
	if err := toml.Unmarshal(content, &settings); err != nil {
		return ShaderResource{}, err
	}
	if settings.Name == "" {
		return ShaderResource{}, fmt.Errorf("shader without name")
	}
	settings.Filename = assets.ResolvePath(file, settings.Filename)

	binary, err := fsys.FileContent(settings.Filename)
	if err != nil {
		return ShaderResource{}, err
	}
	code, err := loaders.LoadSPIRV(settings.Name, binary)
	if err != nil {
		return ShaderResource{}, err
	}
	return ShaderResource{Settings: settings, Code: code}, nil
}

func parseMaterial(file string, content []byte) (metadata.MaterialSettings, error) {
	settings := metadata.DefaultMaterialSettings()
	if err := toml.Unmarshal(content, &settings); err != nil {
		return settings, err
	}
	if settings.Name == "" {
		return settings, fmt.Errorf("material without name")
	}
	for i := range settings.Textures {
		texture := &settings.Textures[i]
		if texture.Layers == 0 {
			texture.Layers = 1
		}
		if texture.TextureType == metadata.TextureImageFile {
			texture.Filename = assets.ResolvePath(file, texture.Filename)
		}
	}
	return settings, nil
}

func parseMesh(fsys assets.FileSystem, file string, content []byte) (MeshResource, error) {
	settings := metadata.DefaultMeshLoadSettings()
	if err := toml.Unmarshal(content, &settings); err != nil {
		return MeshResource{}, err
	}
	if settings.Name == "" {
		return MeshResource{}, fmt.Errorf("mesh without name")
	}
	settings.Filename = assets.ResolvePath(file, settings.Filename)

	raw, err := fsys.FileContent(settings.Filename)
	if err != nil {
		return MeshResource{}, err
	}
	buffers, err := fs.Sub(fsys, path.Dir(settings.Filename))
	if err != nil {
		return MeshResource{}, err
	}
	mesh, err := loaders.DecodeGLTF(raw, buffers, settings)
	if err != nil {
		return MeshResource{}, err
	}
	return MeshResource{Settings: settings, Data: mesh}, nil
}

func parseLight(content []byte) (metadata.LightSettings, error) {
	settings := metadata.DefaultLightSettings()
	if err := toml.Unmarshal(content, &settings); err != nil {
		return settings, err
	}
	return settings, nil
}

func parseParticleSystem(content []byte) (metadata.ParticleSystemSettings, error) {
	var settings metadata.ParticleSystemSettings
	if err := toml.Unmarshal(content, &settings); err != nil {
		return settings, err
	}
	if settings.Name == "" {
		return settings, fmt.Errorf("particle system without name")
	}

	emitter := &settings.ParticleEmitter
	emitter.ToDirection = mgl32.Ident4()
	if emitter.Direction.Len() > 0 {
		emitter.ToDirection = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, emitter.Direction.Normalize()).Mat4()
	}
	return settings, nil
}

func parseFont(fsys assets.FileSystem, file string, content []byte) (metadata.FontSettings, error) {
	var settings metadata.FontSettings
	if err := toml.Unmarshal(content, &settings); err != nil {
		return settings, err
	}
	if settings.Name == "" {
		return settings, fmt.Errorf("font without name")
	}

	settings.Symbols = make(map[rune]metadata.FontSymbol, len(settings.Characters))
	if settings.Descriptor != "" {
		descriptor := assets.ResolvePath(file, settings.Descriptor)
		disk, ok := fsys.(localPather)
		if !ok {
			return settings, fmt.Errorf("font descriptor %s needs a file system on disk: %w", descriptor, core.ErrUnsupportedResource)
		}
		local, ok := disk.LocalPath(descriptor)
		if !ok {
			return settings, fmt.Errorf("font descriptor %s needs a file system on disk: %w", descriptor, core.ErrUnsupportedResource)
		}
		font, err := loaders.LoadBitmapFont(local)
		if err != nil {
			return settings, err
		}
		for r, symbol := range font.Symbols {
			settings.Symbols[r] = symbol
		}
		if settings.Width == 0 {
			settings.Width = font.AtlasWidth
		}
		if settings.Height == 0 {
			settings.Height = font.AtlasHeight
		}
		if settings.Size == 0 {
			settings.Size = uint32(font.Size)
		}
	}
	for name, symbol := range settings.Characters {
		r, size := utf8.DecodeRuneInString(name)
		if r == utf8.RuneError || size != len(name) {
			return settings, fmt.Errorf("font %s: character key %q is not a single symbol", settings.Name, name)
		}
		settings.Symbols[r] = symbol
	}

	for _, symbol := range settings.Symbols {
		settings.MaxHeight = max(settings.MaxHeight, symbol.OriginY)
	}
	for _, symbol := range settings.Symbols {
		settings.MaxGlyphHeight = max(settings.MaxGlyphHeight, symbol.Height+settings.MaxHeight-symbol.OriginY)
	}
	return settings, nil
}
