package renderer

import "github.com/spaghettifunk/chewman/engine/renderer/metadata"

// passDependencies lists, for each pass, the passes whose output it reads.
// A pass only waits on dependencies that were submitted in the same frame.
var passDependencies = map[metadata.CommandsType][]metadata.CommandsType{
	metadata.ReflectionPass: {
		metadata.ShadowPassDirectLight, metadata.ShadowPassPointLights,
	},
	metadata.RefractionPass: {
		metadata.ShadowPassDirectLight, metadata.ShadowPassPointLights,
	},
	metadata.ScreenQuadPass: {
		metadata.ComputeParticlesPass, metadata.ShadowPassDirectLight, metadata.ShadowPassPointLights,
		metadata.ScreenQuadDepthPass, metadata.ReflectionPass, metadata.RefractionPass,
	},
	metadata.ScreenQuadMRTPass: {
		metadata.ComputeParticlesPass, metadata.ShadowPassDirectLight, metadata.ShadowPassPointLights,
		metadata.ScreenQuadDepthPass, metadata.ReflectionPass, metadata.RefractionPass,
	},
	metadata.ScreenQuadLatePass: {
		metadata.ComputeParticlesPass, metadata.ScreenQuadPass, metadata.ScreenQuadMRTPass,
	},
	metadata.MainPass: {
		metadata.ComputeParticlesPass, metadata.ShadowPassDirectLight, metadata.ShadowPassPointLights,
		metadata.ScreenQuadDepthPass, metadata.ReflectionPass, metadata.RefractionPass,
		metadata.ScreenQuadPass, metadata.ScreenQuadMRTPass, metadata.ScreenQuadLatePass,
	},
}

// submissionOrder is a topological order of the offscreen passes. The main
// pass always goes last.
var submissionOrder = []metadata.CommandsType{
	metadata.ComputeParticlesPass,
	metadata.ShadowPassDirectLight,
	metadata.ShadowPassPointLights,
	metadata.ScreenQuadDepthPass,
	metadata.ReflectionPass,
	metadata.RefractionPass,
	metadata.ScreenQuadPass,
	metadata.ScreenQuadMRTPass,
	metadata.ScreenQuadLatePass,
}

func PassDependencies(pass metadata.CommandsType) []metadata.CommandsType {
	return passDependencies[pass]
}

func dependsOn(pass, dep metadata.CommandsType) bool {
	for _, d := range passDependencies[pass] {
		if d == dep {
			return true
		}
	}
	return false
}

// isOffscreen reports whether pass owns a ready semaphore per frame.
func isOffscreen(pass metadata.CommandsType) bool {
	return pass >= metadata.ShadowPassDirectLight && pass <= metadata.ComputeParticlesPass
}

// readyIndex maps an offscreen pass to its slot among the PassCount ready semaphores.
func readyIndex(pass metadata.CommandsType) int {
	return int(pass) - 1
}

// consumerStage is the pipeline stage a consumer waits at for pass output.
func consumerStage(producer metadata.CommandsType) metadata.WaitStage {
	if producer == metadata.ComputeParticlesPass {
		return metadata.WaitStageVertexInput
	}
	return metadata.WaitStageFragmentShader
}

var readySemaphoreNames = [metadata.PassCount]string{
	"shadowDirectReady",
	"shadowPointReady",
	"reflectionReady",
	"refractionReady",
	"screenQuadReady",
	"screenQuadMRTReady",
	"screenQuadLateReady",
	"screenQuadDepthReady",
	"computeParticlesReady",
}
