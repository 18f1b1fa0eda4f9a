package renderer

import (
	"fmt"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

/** @brief The location of one packed uniform field inside a stage buffer. */
type UniformField struct {
	Type   metadata.UniformType
	Index  uint32
	Offset uint32
	Size   uint32
}

// ShaderInfo describes what one shader stage reads and how its uniform
// buffer is laid out. It is immutable after creation.
type ShaderInfo struct {
	Settings metadata.ShaderSettings
	Module   *metadata.ShaderModule

	fields []UniformField
	size   uint32
}

// NewShaderInfo computes the offset table of the shader's uniform list.
// Fields are packed contiguously in declared order.
func NewShaderInfo(settings metadata.ShaderSettings) (*ShaderInfo, error) {
	si := &ShaderInfo{Settings: settings}
	offset := uint32(0)
	for _, u := range settings.UniformList {
		size := uniformSize(u.UniformType, &si.Settings)
		if size == 0 {
			return nil, fmt.Errorf("shader %s: uniform %s has zero size", settings.Name, u.UniformType)
		}
		si.fields = append(si.fields, UniformField{
			Type:   u.UniformType,
			Index:  u.UniformIndex,
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	si.size = offset
	return si, nil
}

func (si *ShaderInfo) Name() string {
	return si.Settings.Name
}

func (si *ShaderInfo) Stage() metadata.ShaderType {
	return si.Settings.ShaderType
}

// UniformSize is the byte size of one copy of the stage uniform buffer.
func (si *ShaderInfo) UniformSize() uint32 {
	return si.size
}

func (si *ShaderInfo) Fields() []UniformField {
	return si.fields
}

// Field returns the first field of type t.
func (si *ShaderInfo) Field(t metadata.UniformType) (UniformField, bool) {
	for _, f := range si.fields {
		if f.Type == t {
			return f, true
		}
	}
	return UniformField{}, false
}

// Pack writes data into dst following the offset table. dst is grown to
// UniformSize when needed and returned.
func (si *ShaderInfo) Pack(dst []byte, data *UniformData) []byte {
	if uint32(cap(dst)) < si.size {
		dst = make([]byte, si.size)
	}
	dst = dst[:si.size]
	clear(dst)
	for _, f := range si.fields {
		writeUniform(dst[f.Offset:f.Offset+f.Size], f.Type, f.Index, data)
	}
	return dst
}

// ReadField returns the bytes of field f inside a packed buffer.
func (si *ShaderInfo) ReadField(packed []byte, f UniformField) []byte {
	return packed[f.Offset : f.Offset+f.Size]
}

// ShaderManager owns shader infos and their modules by name.
type ShaderManager struct {
	backend RendererBackend
	shaders map[string]*ShaderInfo
	release ReleaseStack
}

func NewShaderManager(backend RendererBackend) *ShaderManager {
	return &ShaderManager{
		backend: backend,
		shaders: make(map[string]*ShaderInfo),
	}
}

// Register creates the shader module from its SPIR-V code.
func (sm *ShaderManager) Register(settings metadata.ShaderSettings, code []byte) (*ShaderInfo, error) {
	if _, ok := sm.shaders[settings.Name]; ok {
		return nil, fmt.Errorf("shader %s: %w", settings.Name, core.ErrAlreadyExists)
	}
	si, err := NewShaderInfo(settings)
	if err != nil {
		return nil, core.AsFatal(err)
	}
	module, err := sm.backend.ShaderModuleCreate(settings.Name, settings.ShaderType, settings.EntryPoint, code)
	if err != nil {
		return nil, core.Fatalf("failed to create shader module %s: %w", settings.Name, err)
	}
	si.Module = Own(&sm.release, module, sm.backend.ShaderModuleDestroy)
	sm.shaders[settings.Name] = si
	core.LogDebug("shader %s registered (%s, %d uniform bytes)", settings.Name, settings.ShaderType, si.size)
	return si, nil
}

// Get returns the shader called name. A missing shader is fatal, since the
// material that references it cannot be built.
func (sm *ShaderManager) Get(name string) (*ShaderInfo, error) {
	si, ok := sm.shaders[name]
	if !ok {
		return nil, core.Fatalf("can't find shader %s", name)
	}
	return si, nil
}

func (sm *ShaderManager) Count() int {
	return len(sm.shaders)
}

func (sm *ShaderManager) Shutdown() {
	sm.release.Release()
	sm.shaders = make(map[string]*ShaderInfo)
}
