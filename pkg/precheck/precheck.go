package precheck

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	schemav1 "github.com/imgfleet/convoy/pkg/schema/v1"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Fs is the filesystem the preflight reads. OS FS by default
var Fs = afero.NewOsFs()

// WarnContextBytes is the estimated upload size above which we warn.
// The daemon copies the whole context before the first build step.
const WarnContextBytes = 256 * 1024 * 1024

// Result summarizes what the context upload will include.
type Result struct {
	Files   int
	Ignored int
	Bytes   int64
}

// Context verifies the build inputs exist and estimates the context upload,
// honoring .dockerignore. Missing inputs are errors; an oversized context is
// only a warning.
func Context(config schemav1.ConvoyConfig) (Result, error) {
	var result Result

	contextPath := config.ContextPath()
	dockerfile := config.DockerfilePath()

	if st, err := Fs.Stat(contextPath); err != nil || !st.IsDir() {
		return result, fmt.Errorf("context %q not found or not a directory", contextPath)
	}
	if st, err := Fs.Stat(dockerfile); err != nil || st.IsDir() {
		return result, fmt.Errorf("dockerfile %q not found or not a file", dockerfile)
	}

	matcher, err := ignoreMatcher(contextPath)
	if err != nil {
		return result, err
	}

	err = afero.Walk(Fs, contextPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(contextPath, path)
		if err != nil {
			return err
		}
		if matcher != nil {
			ignored, err := matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			if ignored {
				result.Ignored++
				return nil
			}
		}
		result.Files++
		result.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan context %q: %w", contextPath, err)
	}

	if result.Bytes > WarnContextBytes {
		zap.L().Warn("large build context, consider a .dockerignore",
			zap.String("context", contextPath),
			zap.Int64("bytes", result.Bytes),
			zap.Int("files", result.Files),
		)
	} else {
		zap.L().Debug("context",
			zap.Int("files", result.Files),
			zap.Int("ignored", result.Ignored),
			zap.Int64("bytes", result.Bytes),
		)
	}
	return result, nil
}

func ignoreMatcher(contextPath string) (*patternmatcher.PatternMatcher, error) {
	buf, err := afero.ReadFile(Fs, filepath.Join(contextPath, ".dockerignore"))
	if err != nil {
		return nil, nil // no .dockerignore, nothing ignored
	}
	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("parse .dockerignore: %w", err)
	}
	return matcher, nil
}
