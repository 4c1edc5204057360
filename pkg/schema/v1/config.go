package v1

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"
)

type ConvoyConfig struct {
	Status ConvoyConfigStatus `json:"-" yaml:"-"`
	// Registry is the host[:port] prefix of the image reference
	Registry string `json:"registry,omitempty" yaml:"registry,omitempty"`
	// Image is the repository path within the registry
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
	// Tag defaults to latest
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
	// Base is handed to the build as the BASE_IMAGE build argument
	Base string `json:"base,omitempty" yaml:"base,omitempty"`
	// Dockerfile path relative to context, defaults to Dockerfile
	Dockerfile string `json:"dockerfile,omitempty" yaml:"dockerfile,omitempty"`
	// Context is the build context directory, defaults to .
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
	// Platforms to request, e.g. linux/amd64 and linux/arm64.
	// The set actually built is narrowed to what the builder supports.
	Platforms []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	// Push uploads the result to the registry after the build, defaults to true
	Push *bool `json:"push,omitempty" yaml:"push,omitempty"`
	// Builder is the buildx builder instance name
	Builder string `json:"builder,omitempty" yaml:"builder,omitempty"`
	// BuildArgs are additional --build-arg values
	BuildArgs map[string]string `json:"buildArgs,omitempty" yaml:"buildArgs,omitempty"`
	// Labels are additional --label values
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

type ConvoyConfigStatus struct {
	Template  bool   // true if config is from a template
	Md5       string // config source md5 (not for template)
	Sha256    string // config source sha256 (not for template)
	Overrides ConvoyConfigOverrides
}

type ConvoyConfigOverrides struct {
	Image     bool
	Platforms bool
}

// ContextPath is the build context directory, the working directory by default.
func (c *ConvoyConfig) ContextPath() string {
	if c.Context == "" {
		return "."
	}
	return c.Context
}

// DockerfilePath resolves Dockerfile against the context directory, the same
// layout buildx's own PATH/Dockerfile default serves. Absolute paths are kept.
func (c *ConvoyConfig) DockerfilePath() string {
	df := c.Dockerfile
	if df == "" {
		df = "Dockerfile"
	}
	if filepath.IsAbs(df) {
		return df
	}
	return filepath.Join(c.ContextPath(), df)
}

// PushEnabled defaults to true, the run exists to publish an image.
func (c *ConvoyConfig) PushEnabled() bool {
	return c.Push == nil || *c.Push
}

// Reference composes the target image reference, <registry>/<image>:<tag>
// with registry and tag optional. The composition is returned verbatim, not
// normalized, so registry "r", image "x", tag "latest" yields "r/x:latest".
func (c *ConvoyConfig) Reference() (string, error) {
	img := strings.TrimSpace(c.Image)
	if img == "" {
		return "", fmt.Errorf("image name must be set, or env IMAGE, or envs IMAGE_REPO and IMAGE_TAG")
	}
	ref := img
	if reg := strings.Trim(strings.TrimSpace(c.Registry), "/"); reg != "" {
		ref = reg + "/" + img
	}
	tag := strings.TrimSpace(c.Tag)
	if tag == "" {
		tag = "latest"
	}
	ref = ref + ":" + tag
	if _, err := reference.ParseNormalizedNamed(ref); err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	return ref, nil
}
