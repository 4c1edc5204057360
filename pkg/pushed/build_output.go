package pushed

import (
	"encoding/json"
	"fmt"
	"io"
)

// BuildOutput is used to produce a similar output file that Skaffold does
type BuildOutput struct {
	// Skaffold is a superset of skaffold's --file-output format and can be used for skaffold deploy
	Skaffold *BuildOutputSkaffoldSuperset `json:"skaffold,omitempty"`
	// Buildctl matches the buildx/buildctl --metadata-file format
	Buildctl *BuildxMetadata `json:"buildctl,omitempty"`
	// Trace is internal metadata such as start/end and env; optional
	Trace *BuildTrace `json:"trace,omitempty"`
}

type BuildOutputSkaffoldSuperset struct {
	Builds []Artifact `json:"builds"`
}

// Print writes the tag@digest for each built artifact.
func (b *BuildOutput) Print() {
	if b == nil || b.Skaffold == nil {
		return
	}
	for _, a := range b.Skaffold.Builds {
		fmt.Println(a.TagRef)
	}
}

// NewBuildOutput wraps the one artifact a run produces (the Skaffold format
// supports >=0). The Buildctl section echoes the metadata buildx reported.
func NewBuildOutput(a *Artifact, md *BuildxMetadata) (*BuildOutput, error) {
	if a == nil {
		return nil, fmt.Errorf("artifact is nil")
	}
	out := &BuildOutput{
		Skaffold: &BuildOutputSkaffoldSuperset{Builds: []Artifact{*a}},
	}
	if md != nil {
		out.Buildctl = md
	}
	return out, nil
}

func (b *BuildOutput) WriteSkaffoldJSON(w io.Writer) error {
	if b.Skaffold == nil {
		b.Skaffold = &BuildOutputSkaffoldSuperset{Builds: []Artifact{}}
	}
	j, err := json.Marshal(b.Skaffold)
	if err != nil {
		return err
	}
	_, err = w.Write(j)
	return err
}

func (b *BuildOutput) WriteBuildctlJSON(w io.Writer) error {
	if b.Buildctl == nil {
		b.Buildctl = &BuildxMetadata{}
	}
	j, err := json.Marshal(b.Buildctl)
	if err != nil {
		return err
	}
	_, err = w.Write(j)
	return err
}

func (b *BuildOutput) WriteJSON(w io.Writer) error {
	j, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = w.Write(j)
	return err
}
