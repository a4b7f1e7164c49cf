package authenticate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akuity/npmauth/internal/backup"
	"github.com/akuity/npmauth/internal/config"
	"github.com/akuity/npmauth/internal/credentials"
	"github.com/akuity/npmauth/internal/ledger"
	"github.com/akuity/npmauth/internal/npmrc"
	"github.com/akuity/npmauth/internal/pipeline"
	"github.com/akuity/npmauth/pkg/logging"
)

const (
	npmrcSuffix = ".npmrc"

	telemetryArea    = "Packaging"
	telemetryFeature = "NpmAuthenticateV0"
)

var (
	// ErrWorkingFileRequired is returned when no working file is configured.
	ErrWorkingFileRequired = errors.New("working file is required")
	// ErrNotNpmrc is returned when the working file is not an .npmrc file.
	ErrNotNpmrc = errors.New("file is not an .npmrc file")
	// ErrNpmrcNotFound is returned when the working file does not exist.
	ErrNpmrcNotFound = errors.New(".npmrc file does not exist")
)

// SourceResolver produces the credential sources of a run.
type SourceResolver interface {
	Federated(ctx context.Context, feedURL, connection string) (credentials.Source, error)
	Standard(
		ctx context.Context,
		endpointIDs []string,
		directives []npmrc.Directive,
	) (credentials.Pools, error)
}

// Runner runs the authenticate step: it backs up the working file, resolves
// credential sources, merges them into the file and writes it back.
type Runner struct {
	cfg      config.Config
	commands *pipeline.Commands
	vars     *pipeline.Variables
	resolver SourceResolver
}

// NewRunner returns a *Runner.
func NewRunner(
	cfg config.Config,
	commands *pipeline.Commands,
	vars *pipeline.Variables,
	resolver SourceResolver,
) *Runner {
	return &Runner{
		cfg:      cfg,
		commands: commands,
		vars:     vars,
		resolver: resolver,
	}
}

// Run runs the step. On failure, the backup root created for the build is
// removed and the failure is reported to the agent. Counters are published in
// any case.
func (r *Runner) Run(ctx context.Context) (Counters, error) {
	counters := Counters{}
	err := r.run(ctx, &counters)
	if err != nil {
		reportFailure(ctx, r.commands, r.vars, err)
	}
	publishTelemetry(ctx, r.commands, counters)
	return counters, err
}

// Fail reports err, which prevented a run from starting, the same way Run
// reports a failed run, including the empty counters.
func Fail(
	ctx context.Context,
	commands *pipeline.Commands,
	vars *pipeline.Variables,
	err error,
) {
	reportFailure(ctx, commands, vars, err)
	publishTelemetry(ctx, commands, Counters{})
}

func reportFailure(
	ctx context.Context,
	commands *pipeline.Commands,
	vars *pipeline.Variables,
	err error,
) {
	logger := logging.LoggerFromContext(ctx)
	logger.Error(err, "authentication failed")
	if removed, cleanupErr := backup.RemoveRoot(vars); cleanupErr != nil {
		logger.Error(cleanupErr, "error cleaning up backup directory")
	} else if removed {
		logger.Debug("removed backup directory")
	}
	commands.Complete(pipeline.ResultFailed, err.Error())
}

func publishTelemetry(ctx context.Context, commands *pipeline.Commands, counters Counters) {
	if err := commands.PublishTelemetry(telemetryArea, telemetryFeature, counters); err != nil {
		logging.LoggerFromContext(ctx).Error(err, "error publishing telemetry")
	}
}

func (r *Runner) run(ctx context.Context, counters *Counters) error {
	logger := logging.LoggerFromContext(ctx)

	path, err := validateWorkingFile(r.cfg.WorkingFile)
	if err != nil {
		return err
	}
	logger = logger.WithValues("file", path)
	ctx = logging.ContextWithLogger(ctx, logger)
	logger.Info("authenticating .npmrc file")

	dir, err := backup.AcquireDir(r.vars, r.cfg.BuildDirectory, r.cfg.TempDirectory)
	if err != nil {
		return err
	}
	idx, err := backup.Open(dir)
	if err != nil {
		return err
	}
	id, created, err := idx.EnsureBackup(path)
	if err != nil {
		return err
	}
	logger.Debug("backed up .npmrc file", "dir", dir, "id", id, "created", created)

	mode, err := credentials.SelectMode(r.cfg.FeedURL, r.cfg.WorkloadIdentityServiceConnection)
	if err != nil {
		return err
	}

	f, err := npmrc.Parse(path)
	if err != nil {
		return err
	}
	led := ledger.Load(r.vars)
	engine := NewEngine(r.commands, led, counters)

	switch mode {
	case credentials.ModeFederated:
		src, err := r.resolver.Federated(
			ctx,
			r.cfg.FeedURL,
			r.cfg.WorkloadIdentityServiceConnection,
		)
		if err != nil {
			return err
		}
		if err = engine.MergeFederated(ctx, f, src); err != nil {
			return err
		}
	default:
		pools, err := r.resolver.Standard(ctx, r.cfg.CustomEndpoints, f.Directives())
		if err != nil {
			return err
		}
		if err = engine.MergeStandard(ctx, f, pools); err != nil {
			return err
		}
	}

	if f.Changed() {
		if err = f.Write(); err != nil {
			return err
		}
		logger.Debug("wrote .npmrc file")
	} else {
		logger.Debug(".npmrc file unchanged")
	}
	if err = led.Save(); err != nil {
		return err
	}
	logger.Debug("authenticated registries", "registries", led.URLs())
	return nil
}

// validateWorkingFile returns the absolute path of the working file after
// making sure it is an existing .npmrc file.
func validateWorkingFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrWorkingFileRequired
	}
	if !strings.HasSuffix(path, npmrcSuffix) {
		return "", fmt.Errorf("%w: %q", ErrNotNpmrc, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("error resolving %s: %w", path, err)
	}
	fi, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNpmrcNotFound, absPath)
		}
		return "", fmt.Errorf("error checking %s: %w", absPath, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNpmrcNotFound, absPath)
	}
	return absPath, nil
}
