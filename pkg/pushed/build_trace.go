package pushed

import (
	"regexp"
	"strings"
	"time"

	"github.com/imgfleet/convoy/pkg/dockercli"
)

var (
	defaultEnv = regexp.MustCompile(`^(CI|CI_.*|CONVOY_.*|IMAGE|IMAGE_.*|PLATFORMS|BUILDX_BUILDER)$`)
)

type BuildTrace struct {
	Start *time.Time        `json:"start,omitempty"`
	End   *time.Time        `json:"end,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
}

func BuildTraceEnv(environ []string) map[string]string {
	env := make(map[string]string)
	for _, e := range environ {
		pair := strings.SplitN(e, "=", 2)
		if !defaultEnv.MatchString(pair[0]) {
			continue
		}
		value := pair[1]
		// same scrubbing the logged command lines get
		if dockercli.SecretKey(pair[0]) && value != "" {
			value = "REDACTED"
		}
		env[pair[0]] = value
	}
	return env
}
