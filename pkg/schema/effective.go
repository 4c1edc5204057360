package schema

import (
	"github.com/invopop/yaml"
	v1 "github.com/imgfleet/convoy/pkg/schema/v1"
)

// EffectiveYAML renders the resolved config, after env overrides, the way it
// could be written back to a convoy.yaml.
func EffectiveYAML(config v1.ConvoyConfig) ([]byte, error) {
	return yaml.Marshal(config)
}

// EffectiveJSON is the same document as JSON, for tooling.
func EffectiveJSON(config v1.ConvoyConfig) ([]byte, error) {
	buf, err := yaml.Marshal(config)
	if err != nil {
		return nil, err
	}
	return yaml.YAMLToJSON(buf)
}
