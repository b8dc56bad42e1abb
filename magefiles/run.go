//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

func variant() string {
	if v := os.Getenv("VARIANT"); v != "" {
		return v
	}
	return "mesh"
}

// Runs the engine on vulkan. VARIANT selects triangle, mesh or pointcloud.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	return run("go", "run", ".", "-config", "framering.toml", "-variant", variant())
}

// Runs 600 frames on the software device, without a window.
func (Run) Headless() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run headless engine...")
	return run("go", "run", ".", "-config", "framering.toml", "-backend", "soft", "-variant", variant(), "-frames", "600")
}

// Runs the unit tests.
func Test() error {
	return run("go", "test", "-race", "./...")
}
