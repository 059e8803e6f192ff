package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/runner"
	"github.com/urfave/cli/v3"
)

// readJobFile reads a job from path, or from stdin when path is "-". The
// returned name is what log lines and messages refer to.
func readJobFile(ctx context.Context, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read job from stdin: %w", err)
		}
		return data, "<stdin>", nil
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	name, err := filepath.Abs(path)
	if err != nil {
		name = path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, name, nil
}

// loadJob parses, validates and template-expands a job file.
func loadJob(ctx context.Context, path string, allowedEnv []string) (v1.ArchiveJob, string, error) {
	data, name, err := readJobFile(ctx, path)
	if err != nil {
		return v1.ArchiveJob{}, "", fmt.Errorf("failed to read job file '%s': %w", path, err)
	}

	job, err := runner.ParseArchiveJob(data)
	if err != nil {
		return v1.ArchiveJob{}, name, formatValidationError(err)
	}

	variables, err := runner.BuildVariables(job, allowedEnv)
	if err != nil {
		return v1.ArchiveJob{}, name, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := runner.ExpandTemplates(&job, variables); err != nil {
		return v1.ArchiveJob{}, name, fmt.Errorf("failed to expand templates: %w", err)
	}

	return job, name, nil
}

// engineFromFlags is the engine section implied by --engine and --loader.
func engineFromFlags(command *cli.Command) *v1.EngineSpec {
	return &v1.EngineSpec{
		Module: command.String("engine"),
		Loader: command.String("loader"),
	}
}
