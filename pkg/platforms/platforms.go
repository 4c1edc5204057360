package platforms

import (
	"fmt"
	"runtime"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Parse converts platform strings like "linux/amd64" or "linux/arm64/v8"
// into v1.Platforms, normalizing architecture aliases. Order is preserved
// and duplicates (after normalization) are dropped.
func Parse(specs []string) ([]v1.Platform, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]v1.Platform, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := v1.ParsePlatform(s)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", s, err)
		}
		p.Architecture = normalizeArch(p.Architecture)
		if !Contains(out, *p) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Native is the platform of the build host, assuming a linux daemon.
func Native() v1.Platform {
	return v1.Platform{OS: "linux", Architecture: normalizeArch(runtime.GOARCH)}
}

// Default is the requested platform pair: the native architecture plus the
// common foreign one. Builds degrade to native-only when the builder can't
// emulate the foreign architecture.
func Default() []v1.Platform {
	native := Native()
	foreign := v1.Platform{OS: "linux", Architecture: "arm64"}
	if native.Architecture == "arm64" {
		foreign.Architecture = "amd64"
	}
	return []v1.Platform{native, foreign}
}

// Contains matches on OS and architecture; the variant only matters when
// p specifies one.
func Contains(set []v1.Platform, p v1.Platform) bool {
	for _, s := range set {
		if s.OS != p.OS || s.Architecture != p.Architecture {
			continue
		}
		if p.Variant == "" || s.Variant == p.Variant {
			return true
		}
	}
	return false
}

// Intersect keeps the desired platforms that the supported set covers,
// preserving desired order.
func Intersect(desired, supported []v1.Platform) []v1.Platform {
	out := make([]v1.Platform, 0, len(desired))
	for _, d := range desired {
		if Contains(supported, d) {
			out = append(out, d)
		}
	}
	return out
}

// Format renders the set the way buildx --platform expects it.
func Format(set []v1.Platform) string {
	return strings.Join(Strings(set), ",")
}

func Strings(set []v1.Platform) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, p := range set {
		out = append(out, p.String())
	}
	return out
}

func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64", "x64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	case "arm", "armv7", "armv7l":
		return "arm"
	case "386", "i386", "i686":
		return "386"
	default:
		return arch
	}
}
