package schema

import (
	"fmt"
	"os"

	v1 "github.com/imgfleet/convoy/pkg/schema/v1"
	"go.uber.org/zap"
)

// TagFromEnv gets the target ref the way skaffold custom build invocations
// pass it, IMAGE or the IMAGE_REPO + IMAGE_TAG pair.
func TagFromEnv() (repo string, tag string) {
	if image, exists := os.LookupEnv("IMAGE"); exists {
		zap.L().Debug("IMAGE env found", zap.String("value", image))
		return splitTag(image)
	}
	repo, repoExists := os.LookupEnv("IMAGE_REPO")
	rtag, rtagExists := os.LookupEnv("IMAGE_TAG")
	if repoExists && rtagExists {
		zap.L().Debug("IMAGE_REPO and IMAGE_TAG env found",
			zap.String("repo", repo), zap.String("tag", rtag))
		return repo, rtag
	}
	return "", ""
}

func splitTag(image string) (string, string) {
	for i := len(image) - 1; i >= 0; i-- {
		switch image[i] {
		case ':':
			return image[:i], image[i+1:]
		case '/':
			return image, ""
		}
	}
	return image, ""
}

// TemplateImage is the config used when no convoy.yaml exists: the whole
// target reference comes from env, everything else from defaults.
func TemplateImage() (v1.ConvoyConfig, error) {
	repo, tag := TagFromEnv()
	if repo == "" {
		return v1.ConvoyConfig{}, fmt.Errorf("no config found and no IMAGE or IMAGE_REPO + IMAGE_TAG env")
	}
	return v1.ConvoyConfig{
		Status: v1.ConvoyConfigStatus{
			Template: true,
		},
		Image: repo,
		Tag:   tag,
	}, nil
}
