package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imgfleet/convoy/pkg/buildx"
	"github.com/imgfleet/convoy/pkg/daemon"
	"github.com/imgfleet/convoy/pkg/dockercli"
	"github.com/imgfleet/convoy/pkg/emulation"
	"github.com/imgfleet/convoy/pkg/platforms"
	"github.com/imgfleet/convoy/pkg/precheck"
	"github.com/imgfleet/convoy/pkg/pushed"
	"github.com/imgfleet/convoy/pkg/schema"
	schemav1 "github.com/imgfleet/convoy/pkg/schema/v1"
)

const envPlatforms = "PLATFORMS"

var tStart = time.Now()

// newRunner is swapped in tests to script docker results
var newRunner = func(dry bool) dockercli.Runner {
	d := dockercli.New()
	d.DryRun = dry
	return d
}

// build command flag variables
var (
	configPath   string
	fileOutput   string
	metadataFile string
	dryRun       bool
	platformsEnv bool
)

// newBuildCmd defines the build subcommand and its flags
func newBuildCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "build [context path]",
		Short: "Build and push a multi-arch image via docker buildx",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New("too many args: at most one context path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error { return runBuild(args) },
	}
	c.Flags().StringVarP(&configPath, "c", "c", "convoy.yaml", "config file path, or - for stdin")
	c.Flags().StringVar(&fileOutput, "file-output", "", "produce a builds JSON like Skaffold does")
	c.Flags().StringVar(&metadataFile, "metadata-file", "", "keep buildx metadata JSON at this path")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "print docker commands instead of executing them")
	c.Flags().BoolVar(&platformsEnv, "platforms-env-require", false, fmt.Sprintf("requires env %s to be set, unless config specifies platforms", envPlatforms))
	return c
}

func runBuild(args []string) error {
	if version {
		fmt.Fprintf(os.Stderr, "%s\n", BUILD)
		return nil
	}

	// local overrides for dev runs; harmless in CI
	_ = godotenv.Load("convoy.env")

	logger := newLogger()
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	config, err := resolveConfig(args)
	if err != nil {
		return err
	}

	desired, err := desiredPlatforms(config)
	if err != nil {
		return err
	}

	ref, err := config.Reference()
	if err != nil {
		return err
	}

	isDry := dryRun || os.Getenv("CONVOY_DRY_RUN") == "true"
	docker := newRunner(isDry)
	ctx := context.Background()

	// 1. daemon must respond before any builder state is touched
	if err := daemon.Check(ctx, docker); err != nil {
		return err
	}

	// 2. emulation install is best-effort, resolution below narrows the set
	emulation.Ensure(ctx, docker, desired)

	// 3. builder instance, created on first run and reused afterwards
	builder := buildx.NewBuilder(docker, config.Builder)
	if err := builder.Ensure(ctx); err != nil {
		return err
	}

	// 4. narrow requested platforms to what the builder supports
	resolved := desired
	if !isDry {
		supported, err := builder.SupportedPlatforms(ctx)
		if err != nil {
			zap.L().Warn("builder inspect failed, keeping requested platforms", zap.Error(err))
		} else {
			resolved = buildx.Resolve(desired, supported)
		}

		// 5. fail on missing inputs before the daemon does
		if _, err := precheck.Context(config); err != nil {
			return err
		}
	}

	// 6. single build+push invocation
	mdPath, cleanup, err := metadataPath()
	if err != nil {
		return err
	}
	defer cleanup()

	err = buildx.Build(ctx, docker, buildx.BuildRequest{
		Config:       config,
		Ref:          ref,
		Platforms:    resolved,
		MetadataFile: mdPath,
	})
	if err != nil {
		return err
	}

	return report(config, ref, resolved, mdPath, isDry)
}

// resolveConfig loads convoy.yaml, falling back to an env-templated config,
// then applies env and arg overrides.
func resolveConfig(args []string) (schemav1.ConvoyConfig, error) {
	config, err := schema.ParseConfig(configPath)
	if err != nil {
		zap.L().Debug("config parse failed, trying env template", zap.Error(err), zap.String("path", configPath))
		config, err = schema.TemplateImage()
		if err != nil {
			return config, fmt.Errorf("start requires config or IMAGE env: %w", err)
		}
		zap.L().Info("config from env template", zap.String("image", config.Image))
	}

	if config.Image == "" {
		repo, tag := schema.TagFromEnv()
		if repo == "" {
			return config, errors.New("config image must be set, or env IMAGE, or envs IMAGE_REPO and IMAGE_TAG")
		}
		config.Image = repo
		if config.Tag == "" {
			config.Tag = tag
		}
		config.Status.Overrides.Image = true
	}

	if env, exists := os.LookupEnv(envPlatforms); exists {
		p := strings.Split(env, ",")
		zap.L().Debug("env", zap.String("name", envPlatforms), zap.Strings("platforms", p))
		if len(config.Platforms) == 0 {
			config.Platforms = p
			config.Status.Overrides.Platforms = true
		} else if !slices.Equal(config.Platforms, p) {
			zap.L().Info("platforms not equal, config kept", zap.String("env", env), zap.Strings("config", config.Platforms))
		}
	} else if platformsEnv && len(config.Platforms) == 0 {
		return config, fmt.Errorf("%s env required but not found", envPlatforms)
	}

	if len(args) == 1 && args[0] != "" {
		config.Context = args[0]
	}

	aboutConfig := make([]zap.Field, 0)
	if config.Status.Template {
		aboutConfig = append(aboutConfig, zap.Bool("templated", true))
	} else {
		aboutConfig = append(aboutConfig, zap.String("md5", config.Status.Md5), zap.String("sha256", config.Status.Sha256))
	}
	if config.Status.Overrides.Image {
		aboutConfig = append(aboutConfig, zap.Bool("overriddenImage", true))
	}
	if workdir, err := os.Getwd(); err == nil {
		aboutConfig = append(aboutConfig, zap.String("workdir", workdir))
	}
	zap.L().Info("config", aboutConfig...)

	return config, nil
}

func desiredPlatforms(config schemav1.ConvoyConfig) ([]v1.Platform, error) {
	if len(config.Platforms) == 0 {
		desired := platforms.Default()
		zap.L().Debug("no platforms configured", zap.Strings("default", platforms.Strings(desired)))
		return desired, nil
	}
	return platforms.Parse(config.Platforms)
}

// metadataPath decides where buildx writes its metadata JSON. A user-provided
// --metadata-file is kept, a temp file is removed after reporting.
func metadataPath() (string, func(), error) {
	if metadataFile != "" {
		return metadataFile, func() {}, nil
	}
	f, err := os.CreateTemp("", "convoy-metadata-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("metadata temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	return path, func() { os.Remove(path) }, nil
}

func report(config schemav1.ConvoyConfig, ref string, resolved []v1.Platform, mdPath string, isDry bool) error {
	var md *pushed.BuildxMetadata
	if !isDry {
		var err error
		md, err = pushed.ReadMetadata(mdPath)
		if err != nil {
			zap.L().Debug("no buildx metadata", zap.String("path", mdPath), zap.Error(err))
			md = nil
		}
	}

	artifact, err := pushed.NewFromBuild(ref, resolved, md, config.Base)
	if err != nil {
		return err
	}
	buildOutput, err := pushed.NewBuildOutput(artifact, md)
	if err != nil {
		return err
	}
	tEnd := time.Now()
	buildOutput.Trace = &pushed.BuildTrace{Start: &tStart, End: &tEnd, Env: pushed.BuildTraceEnv(os.Environ())}
	buildOutput.Print()

	if fileOutput != "" {
		f, err := os.OpenFile(fileOutput, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("file-output open %s: %w", fileOutput, err)
		}
		defer f.Close()
		if err := buildOutput.WriteSkaffoldJSON(f); err != nil {
			return fmt.Errorf("file-output write %s: %w", fileOutput, err)
		}
	}
	return nil
}
