//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL stage under assets/shaders to <name>.spv with glslc.
// Up to date outputs are skipped.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the framering binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return run("go", "build", "-o", "bin/framering", ".")
}

func buildShaders() error {
	entries, err := os.ReadDir(shaderDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".vert" && ext != ".frag") {
			continue
		}
		src := filepath.Join(shaderDir, e.Name())
		dst := src + ".spv"
		stale, err := target.Path(dst, src)
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if err := run("glslc", src, "-o", dst); err != nil {
			return err
		}
	}
	return nil
}

// Removes the compiled shaders and the binary.
func Clean() error {
	outputs, err := filepath.Glob(filepath.Join(shaderDir, "*.spv"))
	if err != nil {
		return err
	}
	for _, o := range append(outputs, "bin/framering") {
		if err := os.RemoveAll(o); err != nil {
			return err
		}
	}
	return nil
}
