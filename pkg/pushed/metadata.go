package pushed

import (
	"encoding/json"
	"fmt"
	"os"
)

// Platform, in buildx metadata output, drops the "/v8" in linux/arm64/v8
type Platform struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

type ContainerImageDescriptor struct {
	MediaType string   `json:"mediaType"`
	Digest    string   `json:"digest"`
	Size      int      `json:"size"`
	Platform  Platform `json:"platform"`
}

// BuildxMetadata is the subset of buildx --metadata-file output we consume.
// Unknown keys are ignored, buildx adds driver-specific entries.
type BuildxMetadata struct {
	ContainerImageConfigDigest string                   `json:"containerimage.config.digest,omitempty"`
	ContainerImageDescriptor   ContainerImageDescriptor `json:"containerimage.descriptor,omitempty"`
	ContainerImageDigest       string                   `json:"containerimage.digest,omitempty"`
	ImageName                  string                   `json:"image.name,omitempty"`
}

// ReadMetadata parses the file buildx wrote via --metadata-file.
func ReadMetadata(path string) (*BuildxMetadata, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read buildx metadata %s: %w", path, err)
	}
	return ParseMetadata(buf)
}

func ParseMetadata(buf []byte) (*BuildxMetadata, error) {
	var md BuildxMetadata
	if err := json.Unmarshal(buf, &md); err != nil {
		return nil, fmt.Errorf("parse buildx metadata: %w", err)
	}
	return &md, nil
}
