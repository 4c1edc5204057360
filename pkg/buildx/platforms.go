package buildx

import (
	"context"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/imgfleet/convoy/pkg/platforms"
	"go.uber.org/zap"
)

// SupportedPlatforms queries the builder's capability list. Output of
// `docker buildx inspect` has one `Platforms:` line per node; the union of
// all nodes is returned. Unparseable entries are skipped.
func (b *Builder) SupportedPlatforms(ctx context.Context) ([]v1.Platform, error) {
	out, err := b.docker.Output(ctx, "buildx", "inspect", b.Name)
	if err != nil {
		return nil, err
	}
	return parseInspectPlatforms(out), nil
}

func parseInspectPlatforms(inspect string) []v1.Platform {
	var supported []v1.Platform
	for _, line := range strings.Split(inspect, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Platforms:") {
			continue
		}
		list := strings.TrimSpace(strings.TrimPrefix(line, "Platforms:"))
		for _, spec := range strings.Split(list, ",") {
			// buildx can mark entries, e.g. "linux/amd64*"
			spec = strings.TrimSuffix(strings.TrimSpace(spec), "*")
			if spec == "" {
				continue
			}
			parsed, err := platforms.Parse([]string{spec})
			if err != nil {
				zap.L().Debug("skipping unparseable platform", zap.String("spec", spec), zap.Error(err))
				continue
			}
			for _, p := range parsed {
				if !platforms.Contains(supported, p) {
					supported = append(supported, p)
				}
			}
		}
	}
	return supported
}

// Resolve narrows the desired platform set to what the builder supports.
// Unsupported platforms are dropped with a warning, never an error; if
// nothing remains the build degrades to the native platform only. The
// returned set is always what the final build invocation may target.
func Resolve(desired, supported []v1.Platform) []v1.Platform {
	if len(supported) == 0 {
		zap.L().Warn("builder reported no platforms, keeping requested set",
			zap.Strings("requested", platforms.Strings(desired)),
		)
		return desired
	}
	resolved := platforms.Intersect(desired, supported)
	if len(resolved) == 0 {
		native := platforms.Native()
		zap.L().Warn("no requested platform supported, building native only",
			zap.Strings("requested", platforms.Strings(desired)),
			zap.String("native", native.String()),
		)
		return []v1.Platform{native}
	}
	if len(resolved) < len(desired) {
		var dropped []string
		for _, d := range desired {
			if !platforms.Contains(resolved, d) {
				dropped = append(dropped, d.String())
			}
		}
		zap.L().Warn("narrowing platforms to builder support",
			zap.Strings("dropped", dropped),
			zap.Strings("resolved", platforms.Strings(resolved)),
		)
	}
	return resolved
}
