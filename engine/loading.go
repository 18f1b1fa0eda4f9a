package engine

import (
	"github.com/spaghettifunk/chewman/engine/renderer"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// loadingScreen is drawn while resources are parsed. It only clears the
// main pass: nothing in the scene can be drawn before registration, and
// progress is published through EVENT_CODE_LOADING_PROGRESS.
type loadingScreen struct{}

var _ renderer.FrameSource = loadingScreen{}

func (loadingScreen) UpdateUniforms(imageIndex uint32) error { return nil }

func (loadingScreen) RecordPasses(frames *renderer.FrameSubmitter) error { return nil }

func (loadingScreen) RecordMainPass(cb *metadata.CommandBuffer, imageIndex uint32) error {
	return nil
}
