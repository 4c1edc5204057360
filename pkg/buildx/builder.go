package buildx

import (
	"context"
	"fmt"
	"os"

	"github.com/imgfleet/convoy/pkg/dockercli"
	"go.uber.org/zap"
)

// DefaultBuilderName is the persistent buildx builder instance convoy
// creates and reuses across runs.
const DefaultBuilderName = "convoy"

// BuilderName resolves the builder instance name, BUILDX_BUILDER wins.
func BuilderName() string {
	if name := os.Getenv("BUILDX_BUILDER"); name != "" {
		return name
	}
	return DefaultBuilderName
}

// Builder is a handle to a named buildx builder instance. The instance
// itself is external state owned by the docker toolchain and outlives a run.
type Builder struct {
	Name   string
	docker dockercli.Runner
}

func NewBuilder(docker dockercli.Runner, name string) *Builder {
	if name == "" {
		name = BuilderName()
	}
	return &Builder{Name: name, docker: docker}
}

// Ensure makes the named builder the active one, creating it when missing.
// Creation prefers the docker-container driver, which supports multi-platform
// output, and falls back to the default driver. Both failing is fatal.
// A builder created here is intentionally left in place on later failures,
// the next run reuses it.
func (b *Builder) Ensure(ctx context.Context) error {
	if _, err := b.docker.Output(ctx, "buildx", "inspect", b.Name); err == nil {
		zap.L().Info("builder exists", zap.String("name", b.Name))
		if err := b.docker.Run(ctx, "buildx", "use", b.Name); err != nil {
			return fmt.Errorf("switch to builder %q: %w", b.Name, err)
		}
		return b.bootstrap(ctx)
	}

	zap.L().Info("creating builder", zap.String("name", b.Name), zap.String("driver", "docker-container"))
	err := b.docker.Run(ctx, "buildx", "create", "--name", b.Name, "--driver", "docker-container", "--use")
	if err != nil {
		zap.L().Warn("docker-container driver failed, trying default driver",
			zap.String("name", b.Name),
			zap.Error(err),
		)
		if fallbackErr := b.docker.Run(ctx, "buildx", "create", "--name", b.Name, "--use"); fallbackErr != nil {
			return fmt.Errorf("create builder %q failed with docker-container driver (%v) and default driver: %w",
				b.Name, err, fallbackErr)
		}
	}
	return b.bootstrap(ctx)
}

// bootstrap starts the build container so platform inspection sees a running node.
func (b *Builder) bootstrap(ctx context.Context) error {
	if err := b.docker.Run(ctx, "buildx", "inspect", "--bootstrap"); err != nil {
		return fmt.Errorf("bootstrap builder %q: %w", b.Name, err)
	}
	return nil
}
