package daemon

import (
	"context"
	"fmt"

	"github.com/imgfleet/convoy/pkg/dockercli"
	"go.uber.org/zap"
)

// Check probes the docker daemon. Everything downstream talks to the daemon,
// so an unreachable daemon aborts the run before any builder state is touched.
func Check(ctx context.Context, docker dockercli.Runner) error {
	version, err := docker.Output(ctx, "info", "--format", "{{.ServerVersion}}")
	if err != nil {
		return fmt.Errorf("docker daemon unreachable, is the docker service running? %w", err)
	}
	zap.L().Info("daemon", zap.String("serverVersion", version))
	return nil
}
