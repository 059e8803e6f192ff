package main

import (
	"context"
	"fmt"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/runner"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run an archive job file",
	Flags: []cli.Flag{allowedEnvFlag},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "job",
			UsageText: "The job file to run, or - for stdin",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		jobFilename := command.StringArg("job")
		if jobFilename == "" {
			return fmt.Errorf("no job file provided")
		}

		job, name, err := loadJob(ctx, jobFilename, command.StringSlice("allowed-env"))
		if err != nil {
			return err
		}
		if job.Spec.Engine == nil {
			job.Spec.Engine = engineFromFlags(command)
		}

		logger.Info("running job", zap.String("job_filename", name), zap.String("job_name", job.Metadata.Name))
		return runJob(ctx, command, job)
	},
}

// runJob runs job with progress on stderr when interactive.
func runJob(ctx context.Context, command *cli.Command, job v1.ArchiveJob) error {
	logger := getLogger(ctx)

	opts := runner.Options{Stdout: command.Root().Writer}
	if isInteractive(ctx) {
		printer := newProgressPrinter(command.Root().ErrWriter)
		defer printer.Done()
		opts.Progress = printer
	}

	r, err := runner.New(ctx, logger.Named("runner"), job, opts)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("failed to run job: %w", err)
	}

	return nil
}
