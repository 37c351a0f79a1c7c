//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

var shaderStages = []string{"vert", "frag"}

// glslc resolves the shader compiler, overridable with $GLSLC.
func glslc() string {
	if bin := os.Getenv("GLSLC"); bin != "" {
		return bin
	}
	return "glslc"
}

type Build mg.Namespace

// Compiles the GLSL sources in assets/shaders to SPIR-V with glslc. Sources
// older than their .spv are skipped.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the framechain binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "framechain"), "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderDir, "*.glsl"))
	if err != nil {
		return err
	}
	for _, stage := range shaderStages {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+stage))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources in %s", shaderDir)
	}
	compiled := 0
	for _, src := range sources {
		// shader.vert -> shader.vert.spv, as loaded by the shader library.
		out := src + ".spv"
		stale, err := isStale(src, out)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd(glslc(), withArgs(src, "-o", out)); err != nil {
			return fmt.Errorf("failed to compile %s: %w", src, err)
		}
		compiled++
	}
	fmt.Printf("Compiled %d of %d shaders\n", compiled, len(sources))
	return nil
}
