package pushed

import (
	"encoding/json"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"
)

// Artifact represents what we know about the result of build+push without
// fetching any manifest: the reference we asked buildx to produce plus what
// its metadata file reported back.
type Artifact struct {
	// ImageName without tag or digest, used to reference the artifact in deployment resources
	ImageName string `json:"imageName"`
	// TagRef includes tag and, when the digest is known, @digest
	TagRef string `json:"tag"`
	// MediaType as reported by the buildx metadata descriptor
	MediaType types.MediaType `json:"mediaType,omitempty"`
	// Platforms the invocation targeted, multi-arch results are index manifests
	Platforms []v1.Platform `json:"platforms"`
	// BaseRef is the configured base image reference as provided
	BaseRef string `json:"base,omitempty"`

	reference name.Reference
	hash      v1.Hash
}

// NewFromBuild combines the requested tag ref with buildx metadata.
// Metadata may be nil (dry-run, or builds without --metadata-file support),
// in which case the artifact carries no digest.
func NewFromBuild(tagRef string, targeted []v1.Platform, md *BuildxMetadata, baseRef string) (*Artifact, error) {
	ref, err := name.ParseReference(tagRef)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", tagRef), zap.Error(err))
		return nil, err
	}
	// distribution parse keeps the name as given, without prepending the
	// default registry the way name.ParseReference normalization would
	parsed, err := reference.Parse(tagRef)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", tagRef), zap.Error(err))
		return nil, err
	}
	imageName := tagRef
	if named, ok := parsed.(reference.Named); ok {
		imageName = named.Name()
	}
	a := &Artifact{
		ImageName: imageName,
		TagRef:    tagRef,
		Platforms: targeted,
		BaseRef:   baseRef,
		reference: ref,
	}
	if md == nil {
		return a, nil
	}
	if md.ContainerImageDigest != "" {
		hash, err := v1.NewHash(md.ContainerImageDigest)
		if err != nil {
			zap.L().Warn("unparseable digest in buildx metadata",
				zap.String("digest", md.ContainerImageDigest), zap.Error(err))
		} else {
			a.hash = hash
			a.TagRef = tagRef + "@" + hash.String()
		}
	}
	a.MediaType = types.MediaType(md.ContainerImageDescriptor.MediaType)
	return a, nil
}

func (a *Artifact) Reference() name.Reference {
	return a.reference
}

func (a *Artifact) Digest() v1.Hash {
	return a.hash
}

// MarshalJSON encodes Platforms as strings (os/arch[/variant]) for readability/stability.
func (a Artifact) MarshalJSON() ([]byte, error) {
	// alias reuses the JSON tags for all fields, overriding only Platforms
	type artifactAlias Artifact
	type artifactJSON struct {
		artifactAlias
		Platforms []string `json:"platforms"`
	}
	pf := make([]string, 0, len(a.Platforms))
	for _, p := range a.Platforms {
		pf = append(pf, p.String())
	}
	out := artifactJSON{
		artifactAlias: artifactAlias(a),
		Platforms:     pf,
	}
	return json.Marshal(out)
}
