//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const (
	shaderFolder = "resources/shaders"
	binaryName   = "chewman"
)

var shaderStages = []string{".vert", ".frag", ".geom", ".comp"}

type Build mg.Namespace

// Compiles every GLSL source under resources/shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the game binary into bin/.
func (Build) Engine() error {
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", binaryName), "."), withEnv("CGO_ENABLED", "1"), withStream())
	return err
}

// Runs the test suite against the headless backend.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

func buildShaders() error {
	return filepath.Walk(shaderFolder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		if info.IsDir() || !isShaderSource(ext) {
			return nil
		}
		out := strings.TrimSuffix(path, ext) + ".spv"
		if _, err := executeCmd("glslc", withArgs(path, "-o", out)); err != nil {
			return fmt.Errorf("failed to compile %s: %w", path, err)
		}
		return nil
	})
}

func isShaderSource(ext string) bool {
	for _, stage := range shaderStages {
		if ext == stage {
			return true
		}
	}
	return false
}
