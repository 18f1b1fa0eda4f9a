package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

const (
	PipelineCacheFilename = "pipeline_cache.bin"
	pipelineCacheVersion  = 1
)

var pipelineCacheMagic = [4]byte{'C', 'H', 'P', 'C'}

type pipelineCacheHeader struct {
	Magic             [4]byte
	Version           uint32
	VendorID          uint32
	DeviceID          uint32
	DriverVersion     uint32
	PipelineCacheUUID [16]byte
	DataSize          uint64
}

// SaveStore persists blobs between runs.
type SaveStore interface {
	ReadSaved(name string) ([]byte, error)
	WriteSaved(name string, data []byte) error
}

// PipelineCacheManager persists the driver pipeline cache between runs. The
// blob is only reused when it was produced by the same GPU and driver.
type PipelineCacheManager struct {
	backend RendererBackend
	store   SaveStore
	handle  *metadata.PipelineCache
	isNew   bool
}

func NewPipelineCacheManager(backend RendererBackend, store SaveStore) *PipelineCacheManager {
	return &PipelineCacheManager{
		backend: backend,
		store:   store,
		isNew:   true,
	}
}

// Load reads the persisted blob and creates the cache from it. A missing,
// corrupted or foreign blob yields an empty cache marked as new.
func (pm *PipelineCacheManager) Load() error {
	if pm.handle != nil {
		return nil
	}
	blob, err := pm.readBlob()
	if err != nil {
		core.LogInfo("pipeline cache not reused: %s", err.Error())
		blob = nil
	}
	pm.isNew = blob == nil

	handle, err := pm.backend.PipelineCacheCreate(blob)
	if err != nil && blob != nil {
		// drivers may still reject a blob with a valid header
		core.LogWarn("pipeline cache rejected by the driver, starting empty: %s", err.Error())
		pm.isNew = true
		handle, err = pm.backend.PipelineCacheCreate(nil)
	}
	if err != nil {
		return core.Fatalf("failed to create pipeline cache: %w", err)
	}
	pm.handle = handle
	return nil
}

func (pm *PipelineCacheManager) readBlob() ([]byte, error) {
	raw, err := pm.store.ReadSaved(PipelineCacheFilename)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("no saved %s", PipelineCacheFilename)
		}
		return nil, err
	}
	var h pipelineCacheHeader
	r := bytes.NewReader(raw)
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("corrupted cache header: %w", err)
	}
	if h.Magic != pipelineCacheMagic || h.Version != pipelineCacheVersion {
		return nil, fmt.Errorf("unknown cache format")
	}
	info := pm.backend.DeviceInfo()
	if h.VendorID != info.VendorID || h.DeviceID != info.DeviceID ||
		h.DriverVersion != info.DriverVersion || h.PipelineCacheUUID != info.PipelineCacheUUID {
		return nil, fmt.Errorf("cache was built for another device or driver")
	}
	if uint64(r.Len()) != h.DataSize {
		return nil, fmt.Errorf("truncated cache: want %d bytes, have %d", h.DataSize, r.Len())
	}
	return raw[len(raw)-r.Len():], nil
}

// IsNew reports whether the cache started empty in this run.
func (pm *PipelineCacheManager) IsNew() bool {
	return pm.isNew
}

// Handle is nil before Load.
func (pm *PipelineCacheManager) Handle() *metadata.PipelineCache {
	return pm.handle
}

// Store writes the cache blob when it was new in this run.
func (pm *PipelineCacheManager) Store() error {
	if pm.handle == nil || !pm.isNew {
		return nil
	}
	data, err := pm.backend.PipelineCacheData(pm.handle)
	if err != nil {
		return fmt.Errorf("failed to read pipeline cache data: %w", err)
	}
	info := pm.backend.DeviceInfo()
	h := pipelineCacheHeader{
		Magic:             pipelineCacheMagic,
		Version:           pipelineCacheVersion,
		VendorID:          info.VendorID,
		DeviceID:          info.DeviceID,
		DriverVersion:     info.DriverVersion,
		PipelineCacheUUID: info.PipelineCacheUUID,
		DataSize:          uint64(len(data)),
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	buf.Write(data)

	if err := pm.store.WriteSaved(PipelineCacheFilename, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store pipeline cache: %w", err)
	}
	pm.isNew = false
	core.LogInfo("pipeline cache stored (%d bytes)", len(data))
	return nil
}

func (pm *PipelineCacheManager) Destroy() {
	if pm.handle != nil {
		pm.backend.PipelineCacheDestroy(pm.handle)
		pm.handle = nil
	}
}
