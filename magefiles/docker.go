//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Container image constants.
const (
	dockerImageName = "taskd"
	dockerImageTag  = "latest"
	dockerfileDir   = "magefiles"
)

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// imageRef returns the full image reference (name:tag).
func imageRef() string {
	return dockerImageName + ":" + dockerImageTag
}

// buildImage builds the container image from magefiles/Dockerfile.
// The build context is the repo root.
func buildImage(rt string) error {
	fmt.Fprintln(os.Stderr, "Building container image...")
	cmd := exec.Command(rt, "build",
		"-t", imageRef(),
		"-f", filepath.Join(dockerfileDir, "Dockerfile"),
		".")
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// removeImage removes the container image. Errors are ignored because
// the image may not exist.
func removeImage(rt string) {
	fmt.Fprintln(os.Stderr, "Removing container image...")
	_ = exec.Command(rt, "rmi", imageRef()).Run()
}

// Docker builds the taskd container image.
func Docker() error {
	rt := containerRuntime()
	if rt == "" {
		return fmt.Errorf("no container runtime found (tried podman, docker)")
	}

	mg.Deps(Build)

	return buildImage(rt)
}

// DockerClean removes the taskd container image.
func DockerClean() error {
	rt := containerRuntime()
	if rt == "" {
		return fmt.Errorf("no container runtime found (tried podman, docker)")
	}
	removeImage(rt)
	return nil
}
