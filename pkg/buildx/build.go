package buildx

import (
	"context"
	"fmt"
	"os"
	"sort"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/imgfleet/convoy/pkg/dockercli"
	"github.com/imgfleet/convoy/pkg/platforms"
	schemav1 "github.com/imgfleet/convoy/pkg/schema/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// BuildRequest is the resolved input for the final buildx invocation.
type BuildRequest struct {
	Config schemav1.ConvoyConfig
	// Ref is the composed target reference, see ConvoyConfig.Reference
	Ref string
	// Platforms is the resolved set, already narrowed to builder support
	Platforms []v1.Platform
	// MetadataFile receives buildx's own metadata JSON when set
	MetadataFile string
}

// Build runs the single buildx build invocation. A non-zero exit is fatal
// for the run; buildx has already streamed its own diagnostics to stderr.
func Build(ctx context.Context, docker dockercli.Runner, req BuildRequest) error {
	if len(req.Platforms) == 0 {
		return fmt.Errorf("no platforms resolved for %s", req.Ref)
	}
	args := BuildArgs(req)
	zap.L().Info("building",
		zap.String("ref", req.Ref),
		zap.Strings("platforms", platforms.Strings(req.Platforms)),
		zap.Bool("push", req.Config.PushEnabled()),
	)
	if err := docker.Run(ctx, args...); err != nil {
		return fmt.Errorf("build failed for %s: %w", req.Ref, err)
	}
	printUsage(req)
	return nil
}

// BuildArgs assembles the buildx argument list. Map-based config values are
// emitted in sorted key order so invocations are reproducible.
func BuildArgs(req BuildRequest) []string {
	config := req.Config

	dockerfile := config.DockerfilePath()
	contextPath := config.ContextPath()

	args := []string{"buildx", "build",
		"--platform", platforms.Format(req.Platforms),
		"-t", req.Ref,
		"-f", dockerfile,
	}

	if config.Base != "" {
		args = append(args, "--build-arg", "BASE_IMAGE="+config.Base)
	}
	for _, k := range sortedKeys(config.BuildArgs) {
		args = append(args, "--build-arg", k+"="+config.BuildArgs[k])
	}

	auto := autoLabels(config)
	for _, k := range sortedKeys(auto) {
		if _, user := config.Labels[k]; !user {
			args = append(args, "--label", k+"="+auto[k])
		}
	}
	for _, k := range sortedKeys(config.Labels) {
		args = append(args, "--label", k+"="+config.Labels[k])
	}

	switch {
	case config.PushEnabled():
		args = append(args, "--push")
	case len(req.Platforms) == 1:
		args = append(args, "--load")
	default:
		zap.L().Warn("multi-platform build without push stays in the build cache")
	}

	if req.MetadataFile != "" {
		args = append(args, "--metadata-file", req.MetadataFile)
	}

	return append(args, contextPath)
}

// autoLabels are OCI provenance annotations derived from config and CI env.
func autoLabels(config schemav1.ConvoyConfig) map[string]string {
	labels := map[string]string{}
	if config.Base != "" {
		labels[ocispec.AnnotationBaseImageName] = config.Base
	}
	if rev := firstEnv("GIT_SHA", "CI_COMMIT_SHA", "GITHUB_SHA"); rev != "" {
		labels[ocispec.AnnotationRevision] = rev
	}
	if src := firstEnv("CI_PROJECT_URL", "GITHUB_REPOSITORY"); src != "" {
		labels[ocispec.AnnotationSource] = src
	}
	return labels
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printUsage(req BuildRequest) {
	fmt.Printf("\nbuilt %s (%s)\n", req.Ref, platforms.Format(req.Platforms))
	if req.Config.PushEnabled() {
		fmt.Println("pull and run with:")
		fmt.Printf("  docker pull %s\n", req.Ref)
		fmt.Printf("  docker run --rm %s\n", req.Ref)
	} else if len(req.Platforms) == 1 {
		fmt.Println("loaded into the local daemon, run with:")
		fmt.Printf("  docker run --rm %s\n", req.Ref)
	}
}
