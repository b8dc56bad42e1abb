//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

// run executes command with args from the repository root, streaming its
// output to the terminal.
func run(command string, args ...string) error {
	if mg.Verbose() {
		fmt.Printf("Executing: %s %s\n", command, strings.Join(args, " "))
	}
	cmd := exec.Command(command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w", command, strings.Join(args, " "), err)
	}
	return nil
}
