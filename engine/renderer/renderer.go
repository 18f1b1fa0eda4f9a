package renderer

import (
	"context"
	"errors"

	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// FrameSource produces the content of a frame. Uniforms are written before
// any command is recorded.
type FrameSource interface {
	UpdateUniforms(imageIndex uint32) error
	// RecordPasses records and submits the offscreen passes of the frame.
	RecordPasses(frames *FrameSubmitter) error
	RecordMainPass(cb *metadata.CommandBuffer, imageIndex uint32) error
}

// Renderer bundles the device layer with the managers built on top of it.
type Renderer struct {
	Backend       RendererBackend
	Shaders       *ShaderManager
	Materials     *MaterialManager
	Meshes        *MeshManager
	Frames        *FrameSubmitter
	PipelineCache *PipelineCacheManager
}

// New initializes the backend, loads the pipeline cache from store and
// creates the managers.
func New(backend RendererBackend, textures TextureSource, store SaveStore) (_ *Renderer, err error) {
	if err := backend.Initialize(); err != nil {
		return nil, core.AsFatal(err)
	}
	r := &Renderer{Backend: backend}
	defer func() {
		if err != nil {
			r.Shutdown()
		}
	}()

	r.PipelineCache = NewPipelineCacheManager(backend, store)
	if err := r.PipelineCache.Load(); err != nil {
		return nil, err
	}
	r.Shaders = NewShaderManager(backend)
	r.Materials = NewMaterialManager(backend, r.Shaders, textures, r.PipelineCache)
	r.Meshes = NewMeshManager(backend)
	r.Frames, err = NewFrameSubmitter(backend, MaxFramesInFlight)
	if err != nil {
		return nil, err
	}

	info := backend.DeviceInfo()
	core.LogInfo("renderer ready on %s (%d swapchain images, pipeline cache new: %t)",
		info.Name, backend.SwapchainImageCount(), r.PipelineCache.IsNew())
	return r, nil
}

// DrawFrame renders one frame from src. An out of date swapchain is
// recreated here and is not reported as an error.
func (r *Renderer) DrawFrame(ctx context.Context, src FrameSource) error {
	err := r.Frames.WaitAvailableFramebuffer(ctx)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return r.recreate()
	}
	if err != nil {
		return err
	}

	imageIndex := r.Frames.ImageIndex()
	if err := r.record(src, imageIndex); err != nil {
		if abortErr := r.Frames.AbortFrame(); abortErr != nil {
			core.LogError("failed to abort frame: %s", abortErr.Error())
		}
		return err
	}

	err = r.Frames.RenderCommands()
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		return r.recreate()
	}
	return err
}

func (r *Renderer) record(src FrameSource, imageIndex uint32) error {
	if err := src.UpdateUniforms(imageIndex); err != nil {
		return err
	}
	if err := src.RecordPasses(r.Frames); err != nil {
		return err
	}
	return r.Frames.RecordMain(func(cb *metadata.CommandBuffer) error {
		return src.RecordMainPass(cb, imageIndex)
	})
}

func (r *Renderer) recreate() error {
	w, h := r.Backend.Extent()
	return r.Resize(w, h)
}

// Resize recreates the swapchain dependent objects and points the existing
// descriptor sets at the new pass textures. Pipelines are rebuilt only when
// the surface format changed. A zero extent is ignored.
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	format := r.Backend.SwapchainFormat()
	if err := r.Frames.Resize(width, height); err != nil {
		return err
	}
	if after := r.Backend.SwapchainFormat(); after != format {
		core.LogInfo("swapchain format changed from %d to %d, rebuilding pipelines", format, after)
		if err := r.Materials.ResetPipelines(); err != nil {
			return err
		}
	}
	return r.Materials.ResetDescriptors()
}

// Shutdown waits for the device, stores a new pipeline cache and destroys
// everything in reverse creation order.
func (r *Renderer) Shutdown() error {
	if err := r.Backend.WaitIdle(); err != nil {
		core.LogError("wait idle failed during shutdown: %s", err.Error())
	}
	if r.PipelineCache != nil {
		if err := r.PipelineCache.Store(); err != nil {
			core.LogWarn("pipeline cache not stored: %s", err.Error())
		}
	}
	if r.Frames != nil {
		r.Frames.Destroy()
		r.Frames = nil
	}
	if r.Materials != nil {
		r.Materials.Shutdown()
	}
	if r.Meshes != nil {
		r.Meshes.Shutdown()
	}
	if r.Shaders != nil {
		r.Shaders.Shutdown()
	}
	if r.PipelineCache != nil {
		r.PipelineCache.Destroy()
	}
	return r.Backend.Shutdown()
}
