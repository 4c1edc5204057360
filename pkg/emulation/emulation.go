package emulation

import (
	"context"
	"os"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/imgfleet/convoy/pkg/dockercli"
	"github.com/imgfleet/convoy/pkg/platforms"
	"go.uber.org/zap"
)

// DefaultHelperImage registers QEMU binfmt handlers for foreign architectures
// when run privileged. See https://github.com/tonistiigi/binfmt
const DefaultHelperImage = "tonistiigi/binfmt:latest"

func helperImage() string {
	if img := os.Getenv("CONVOY_BINFMT_IMAGE"); img != "" {
		return img
	}
	return DefaultHelperImage
}

// Ensure installs cross-architecture emulation support. Failure is not fatal:
// platform resolution afterwards narrows the build to what the builder
// actually supports, so we log a warning and move on. Returns whether
// emulation is expected to be available.
func Ensure(ctx context.Context, docker dockercli.Runner, desired []v1.Platform) bool {
	if !needsEmulation(desired) {
		zap.L().Debug("emulation not needed, all requested platforms are native")
		return true
	}
	img := helperImage()
	err := docker.Run(ctx, "run", "--privileged", "--rm", img, "--install", "all")
	if err != nil {
		zap.L().Warn("emulation install failed, foreign platforms may be dropped",
			zap.String("image", img),
			zap.Error(err),
		)
		return false
	}
	zap.L().Info("emulation ready", zap.String("image", img))
	return true
}

func needsEmulation(desired []v1.Platform) bool {
	native := platforms.Native()
	for _, p := range desired {
		if p.Architecture != native.Architecture {
			return true
		}
	}
	return false
}
