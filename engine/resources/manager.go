package resources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/chewman/engine/assets"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// ProgressFunc receives the share of registered items, from 0 to 1.
type ProgressFunc func(progress float32)

// ResourceManager discovers settings files, parses them and hands them to
// the registry in dependency order.
type ResourceManager struct {
	fs       assets.FileSystem
	registry Registry

	mutex          sync.Mutex
	folders        []string
	maxLoadQuality metadata.MaterialQuality
}

func NewResourceManager(fs assets.FileSystem, registry Registry) *ResourceManager {
	return &ResourceManager{
		fs:             fs,
		registry:       registry,
		maxLoadQuality: metadata.QualityHigh,
	}
}

// LoadFolder parses and registers every resource below folder.
func (rm *ResourceManager) LoadFolder(folder string, progress ProgressFunc) error {
	rm.addFolder(folder)
	data, err := rm.GetLoadDataFromFolder(folder)
	if err != nil {
		return err
	}
	return rm.InitializeResources(data, progress)
}

// GetLoadDataFromFolder parses a folder, or a single settings file, without
// registering anything. It only reads from the file system.
func (rm *ResourceManager) GetLoadDataFromFolder(folder string) (LoadData, error) {
	var data LoadData
	switch {
	case rm.fs.IsDir(folder):
		files, err := rm.fs.FolderList(folder)
		if err != nil {
			return data, err
		}
		for _, file := range files {
			if err := loadFile(rm.fs, file, &data); err != nil {
				return data, err
			}
		}
	case rm.fs.Exists(folder):
		if err := loadFile(rm.fs, folder, &data); err != nil {
			return data, err
		}
	default:
		return data, core.Fatalf("folder or file %s doesn't exist: %w", folder, core.ErrNotFound)
	}
	return data, nil
}

// InitializeResources registers data in the order shaders, lights,
// materials, meshes, particle systems, fonts. Materials above the maximum
// load quality are skipped but still reported as progress.
func (rm *ResourceManager) InitializeResources(data LoadData, progress ProgressFunc) error {
	total := data.Count()
	done := 0
	if progress != nil {
		progress(0)
	}
	step := func() {
		done++
		if progress != nil {
			progress(float32(done) / float32(total))
		}
	}

	for _, shader := range data.Shaders {
		if err := rm.registry.RegisterShader(shader.Settings, shader.Code); err != nil {
			return err
		}
		step()
	}
	for _, light := range data.Lights {
		if err := rm.registry.RegisterLight(light); err != nil {
			return err
		}
		step()
	}
	maxQuality := rm.MaxMaterialLoadQuality()
	for _, material := range data.Materials {
		if material.LoadQuality > maxQuality {
			core.LogDebug("skipping material %s, quality %s above %s", material.Name, material.LoadQuality, maxQuality)
			step()
			continue
		}
		if err := rm.registry.RegisterMaterial(material); err != nil {
			return err
		}
		step()
	}
	for _, mesh := range data.Meshes {
		if err := rm.registry.RegisterMesh(mesh.Data); err != nil {
			return err
		}
		step()
	}
	for _, particles := range data.Particles {
		if err := rm.registry.RegisterParticleSystem(particles); err != nil {
			return err
		}
		step()
	}
	for _, font := range data.Fonts {
		if err := rm.registry.RegisterFont(font); err != nil {
			return err
		}
		step()
	}

	if total == 0 && progress != nil {
		progress(1)
	}
	return nil
}

// ReloadLight parses a changed light file. Other resource kinds can't be
// replaced while the engine runs.
func (rm *ResourceManager) ReloadLight(file string) (metadata.LightSettings, error) {
	if kind := ResourceTypeOf(file); kind != ResourceTypeLight {
		return metadata.LightSettings{}, fmt.Errorf("%s resources can't be reloaded: %w", kind, core.ErrUnsupportedResource)
	}
	content, err := rm.fs.FileContent(file)
	if err != nil {
		return metadata.LightSettings{}, err
	}
	settings, err := parseLight(content)
	if err != nil {
		return settings, core.Fatalf("can't load resource file %s: %w", file, err)
	}
	return settings, nil
}

func (rm *ResourceManager) addFolder(folders ...string) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.folders = append(rm.folders, folders...)
}

// FolderList returns the folders loaded so far.
func (rm *ResourceManager) FolderList() []string {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	return append([]string(nil), rm.folders...)
}

func (rm *ResourceManager) SavePath() string {
	return rm.fs.SavePath()
}

func (rm *ResourceManager) FileSystem() assets.FileSystem {
	return rm.fs
}

func (rm *ResourceManager) SetMaxMaterialLoadQuality(quality metadata.MaterialQuality) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.maxLoadQuality = quality
}

func (rm *ResourceManager) MaxMaterialLoadQuality() metadata.MaterialQuality {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	return rm.maxLoadQuality
}

/** @brief The pending result of LoadAsync. */
type Future struct {
	done   chan struct{}
	parsed atomic.Int32
	total  int

	results []LoadData
	data    LoadData
	err     error
}

// LoadAsync parses folders in the background. Nothing is registered: the
// caller hands the result of Wait to InitializeResources on its own thread.
func (rm *ResourceManager) LoadAsync(ctx context.Context, folders ...string) *Future {
	rm.addFolder(folders...)
	group, ctx := errgroup.WithContext(ctx)
	f := &Future{
		done:    make(chan struct{}),
		total:   len(folders),
		results: make([]LoadData, len(folders)),
	}

	for i, folder := range folders {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := rm.GetLoadDataFromFolder(folder)
			if err != nil {
				return err
			}
			f.results[i] = data
			f.parsed.Add(1)
			return nil
		})
	}

	go func() {
		f.err = group.Wait()
		if f.err == nil {
			for _, data := range f.results {
				f.data.Append(data)
			}
		}
		close(f.done)
	}()
	return f
}

// Wait blocks until every folder is parsed and returns the merged data in
// folder order.
func (f *Future) Wait() (LoadData, error) {
	<-f.done
	return f.data, f.err
}

// Done reports whether Wait would return immediately.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Progress is the share of folders parsed so far.
func (f *Future) Progress() float32 {
	if f.total == 0 {
		return 1
	}
	return float32(f.parsed.Load()) / float32(f.total)
}
