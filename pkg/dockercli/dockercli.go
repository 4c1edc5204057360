package dockercli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner executes docker CLI invocations. The orchestration packages depend on
// this interface so tests can script command results without a daemon.
type Runner interface {
	// Run streams the command's output to the process stdout/stderr.
	Run(ctx context.Context, args ...string) error
	// Output captures stdout, trimmed of trailing whitespace.
	Output(ctx context.Context, args ...string) (string, error)
}

// Docker runs the docker binary. Zero value is not usable, see New.
type Docker struct {
	// Bin is the executable name, normally "docker"
	Bin string
	// DryRun prints commands instead of executing them
	DryRun bool
}

func New() *Docker {
	bin := os.Getenv("CONVOY_DOCKER_BIN")
	if bin == "" {
		bin = "docker"
	}
	return &Docker{
		Bin:    bin,
		DryRun: os.Getenv("CONVOY_DRY_RUN") == "true",
	}
}

func (d *Docker) Run(ctx context.Context, args ...string) error {
	line := d.Bin + " " + Quote(Redact(args))
	if d.DryRun {
		fmt.Printf("[dry-run] %s\n", line)
		return nil
	}
	zap.L().Info("exec", zap.String("cmd", line))
	cmd := exec.CommandContext(ctx, d.Bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited %d", line, exitErr.ExitCode())
		}
		return fmt.Errorf("%s: %w", line, err)
	}
	return nil
}

func (d *Docker) Output(ctx context.Context, args ...string) (string, error) {
	line := d.Bin + " " + Quote(args)
	if d.DryRun {
		fmt.Printf("[dry-run] %s\n", line)
		return "", nil
	}
	zap.L().Debug("exec", zap.String("cmd", line))
	cmd := exec.CommandContext(ctx, d.Bin, args...)
	var outbuf, errbuf bytes.Buffer
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf
	cmd.Env = os.Environ()
	if err := cmd.Run(); err != nil {
		zap.L().Debug("exec failed",
			zap.Strings("args", args),
			zap.ByteString("stderr", errbuf.Bytes()),
			zap.Error(err),
		)
		return "", fmt.Errorf("%s: %w", line, err)
	}
	return strings.TrimRight(outbuf.String(), " \t\r\n"), nil
}

// Quote returns a printable, shell-safe representation of args.
func Quote(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// Redact masks values of secret-looking --build-arg pairs so the logged
// command line never leaks credentials.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] != "--build-arg" {
			continue
		}
		kv := out[i+1]
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		if SecretKey(kv[:eq]) && kv[eq+1:] != "" {
			out[i+1] = kv[:eq] + "=REDACTED"
		}
	}
	return out
}

// SecretKey reports whether a build-arg or env name looks like a credential.
func SecretKey(k string) bool {
	k = strings.ToUpper(k)
	return strings.Contains(k, "PASSWORD") ||
		strings.Contains(k, "TOKEN") ||
		strings.Contains(k, "SECRET") ||
		k == "AWS_SECRET_ACCESS_KEY" ||
		k == "AWS_SESSION_TOKEN" ||
		k == "DOCKER_AUTH_CONFIG"
}
