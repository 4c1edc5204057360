package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/imgfleet/convoy/pkg/dockercli"
	"github.com/imgfleet/convoy/pkg/precheck"
	"github.com/imgfleet/convoy/pkg/schema"
)

const inspectArm64 = `Name:   convoy
Driver: docker-container

Nodes:
Name:      convoy0
Status:    running
Platforms: linux/amd64, linux/arm64, linux/386
`

const inspectAmd64Only = `Name:   convoy
Driver: docker

Nodes:
Name:      default
Status:    running
Platforms: linux/amd64, linux/386
`

// setupRun points config and precheck at in-memory filesystems and installs
// a scripted docker runner. Returns the fake for assertions.
func setupRun(t *testing.T, script map[string]dockercli.FakeResult) *dockercli.Fake {
	t.Helper()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	schemaFs := schema.Fs
	schema.Fs = afero.NewMemMapFs()
	t.Cleanup(func() { schema.Fs = schemaFs })
	afero.WriteFile(schema.Fs, filepath.Join(cwd, "convoy.yaml"), []byte(`registry: registry.example.com
image: team/app
tag: latest
base: python:3.11-slim
platforms:
  - linux/amd64
  - linux/arm64
`), 0644)

	precheckFs := precheck.Fs
	precheck.Fs = afero.NewMemMapFs()
	t.Cleanup(func() { precheck.Fs = precheckFs })
	afero.WriteFile(precheck.Fs, "Dockerfile", []byte("ARG BASE_IMAGE\nFROM ${BASE_IMAGE}\n"), 0644)
	precheck.Fs.MkdirAll(".", 0755)

	fake := &dockercli.Fake{Script: script}
	orig := newRunner
	newRunner = func(bool) dockercli.Runner { return fake }
	t.Cleanup(func() { newRunner = orig })

	// reset command flag state
	configPath = "convoy.yaml"
	fileOutput = ""
	metadataFile = ""
	dryRun = false
	platformsEnv = false
	// t.Setenv registers restore, then unset so the run sees no override
	for _, name := range []string{"CONVOY_DRY_RUN", "PLATFORMS", "BUILDX_BUILDER", "IMAGE", "CONVOY_BINFMT_IMAGE"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	return fake
}

func TestRunBuildDaemonDown(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Err: errors.New("Cannot connect to the Docker daemon")},
	})

	err := runBuild(nil)
	Expect(err).To(MatchError(ContainSubstring("docker daemon unreachable")))
	// nothing after the failed probe: no builder, no build
	Expect(fake.CommandLines()).To(Equal([]string{"info --format {{.ServerVersion}}"}))
}

func TestRunBuildMultiArch(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Out: "27.1.1"},
		"buildx inspect convoy":            {Out: inspectArm64},
	})

	Expect(runBuild(nil)).To(Succeed())

	lines := fake.CommandLines()
	Expect(lines[0]).To(Equal("info --format {{.ServerVersion}}"))
	Expect(lines).To(ContainElement("run --privileged --rm tonistiigi/binfmt:latest --install all"))
	Expect(lines).To(ContainElement("buildx use convoy"))
	Expect(lines).To(ContainElement("buildx inspect --bootstrap"))

	build := lines[len(lines)-1]
	Expect(build).To(HavePrefix("buildx build"))
	Expect(build).To(ContainSubstring("--platform linux/amd64,linux/arm64"))
	Expect(build).To(ContainSubstring("-t registry.example.com/team/app:latest"))
	Expect(build).To(ContainSubstring("--build-arg BASE_IMAGE=python:3.11-slim"))
	Expect(build).To(ContainSubstring("--push"))
}

func TestRunBuildNarrowsToNative(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Out: "27.1.1"},
		"buildx inspect convoy":            {Out: inspectAmd64Only},
	})

	Expect(runBuild(nil)).To(Succeed())

	build := fake.CommandLines()[len(fake.Calls)-1]
	Expect(build).To(ContainSubstring("--platform linux/amd64 "))
	Expect(build).NotTo(ContainSubstring("arm64"))
}

func TestRunBuildBuilderFallback(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Out: "27.1.1"},
		"buildx inspect convoy":            {Err: errors.New("no such builder")},
		"buildx create --name convoy --driver docker-container --use": {Err: errors.New("driver unavailable")},
	})

	Expect(runBuild(nil)).To(Succeed())

	lines := fake.CommandLines()
	Expect(lines).To(ContainElement("buildx create --name convoy --use"))
	// inspect keeps failing so the requested set is kept
	Expect(lines[len(lines)-1]).To(ContainSubstring("--platform linux/amd64,linux/arm64"))
}

func TestRunBuildFailure(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Out: "27.1.1"},
		"buildx inspect convoy":            {Out: inspectArm64},
		"buildx build":                     {Err: errors.New("exit 1")},
	})

	err := runBuild(nil)
	Expect(err).To(MatchError(ContainSubstring("build failed for registry.example.com/team/app:latest")))
	Expect(fake.CommandLines()[len(fake.Calls)-1]).To(HavePrefix("buildx build"))
}

func TestRunBuildDryRun(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, nil)
	var gotDry bool
	newRunner = func(dry bool) dockercli.Runner {
		gotDry = dry
		return fake
	}
	dryRun = true

	Expect(runBuild(nil)).To(Succeed())
	// the flag reaches the runner directly, process env is left alone
	Expect(gotDry).To(BeTrue())
	Expect(os.Getenv("CONVOY_DRY_RUN")).To(BeEmpty())

	// platform resolution and preflight are skipped, so the builder is
	// inspected once by Ensure and never again
	count := 0
	for _, line := range fake.CommandLines() {
		if line == "buildx inspect convoy" {
			count++
		}
	}
	Expect(count).To(Equal(1))
}

func TestRunBuildEmulationFailureContinues(t *testing.T) {
	RegisterTestingT(t)
	fake := setupRun(t, map[string]dockercli.FakeResult{
		"info --format {{.ServerVersion}}": {Out: "27.1.1"},
		"run --privileged --rm":            {Err: errors.New("pull access denied")},
		"buildx inspect convoy":            {Out: inspectAmd64Only},
	})

	// binfmt install fails, run continues and narrows to supported platforms
	Expect(runBuild(nil)).To(Succeed())
	Expect(strings.Join(fake.CommandLines(), "\n")).To(ContainSubstring("buildx build"))
}
