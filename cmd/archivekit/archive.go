package main

import (
	"context"
	"fmt"
	"path/filepath"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/urfave/cli/v3"
)

var (
	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Archive format, overriding detection from the file extension (see 'formats')",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   "yaml",
		Usage:   "Result encoding (json, yaml)",
		Action: func(ctx context.Context, command *cli.Command, s string) error {
			if s != "json" && s != "yaml" {
				return fmt.Errorf("invalid output %q: must be json or yaml", s)
			}
			return nil
		},
	}
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the items of an archive",
	Flags: []cli.Flag{formatFlag, outputFlag},
	Arguments: []cli.Argument{
		&cli.StringArg{Name: "archive", UsageText: "Archive path or http(s) URL"},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		source := command.StringArg("archive")
		if source == "" {
			return fmt.Errorf("no archive provided")
		}

		return runJob(ctx, command, singleTaskJob(command, "list", v1.Task{
			ID:   "list",
			List: &v1.ListTask{Source: source, Format: command.String("format")},
		}))
	},
}

var extractCommand = &cli.Command{
	Name:  "extract",
	Usage: "Extract an archive into a directory",
	Flags: []cli.Flag{formatFlag, outputFlag},
	Arguments: []cli.Argument{
		&cli.StringArg{Name: "archive", UsageText: "Archive path or http(s) URL"},
		&cli.StringArg{Name: "destination", UsageText: "Directory to extract into"},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		source := command.StringArg("archive")
		if source == "" {
			return fmt.Errorf("no archive provided")
		}
		dest := command.StringArg("destination")
		if dest == "" {
			return fmt.Errorf("no destination provided")
		}

		return runJob(ctx, command, singleTaskJob(command, "extract", v1.Task{
			ID:      "extract",
			Extract: &v1.ExtractTask{Source: source, Destination: dest, Format: command.String("format")},
		}))
	},
}

var compressCommand = &cli.Command{
	Name:  "compress",
	Usage: "Create an archive from files and directories",
	Flags: []cli.Flag{
		formatFlag,
		outputFlag,
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Directory inside the archive to place every item under",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "CEL expression over name, size, dir and mtime selecting the items to add",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{Name: "destination", UsageText: "Archive to create"},
		&cli.StringArgs{Name: "paths", UsageText: "Files and directories to add", Min: 1, Max: -1},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		dest := command.StringArg("destination")
		if dest == "" {
			return fmt.Errorf("no destination provided")
		}
		paths := command.StringArgs("paths")
		if len(paths) == 0 {
			return fmt.Errorf("no paths provided")
		}

		return runJob(ctx, command, singleTaskJob(command, "compress", v1.Task{
			ID: "compress",
			Compress: &v1.CompressTask{
				Sources:     paths,
				Destination: dest,
				Format:      command.String("format"),
				NamePrefix:  command.String("prefix"),
				Filter:      command.String("filter"),
			},
		}))
	},
}

// singleTaskJob wraps one task in a job writing its result to stdout.
func singleTaskJob(command *cli.Command, verb string, task v1.Task) v1.ArchiveJob {
	encoding := &v1.EncodingSpec{YAML: &v1.YAMLEncodingSpec{Indent: 2}}
	if command.String("output") == "json" {
		encoding = &v1.EncodingSpec{JSON: &v1.JSONEncodingSpec{Indent: "  "}}
	}

	name := verb
	if source := taskSubject(task); source != "" {
		name = fmt.Sprintf("%s-%s", verb, filepath.Base(source))
	}

	return v1.ArchiveJob{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: name},
		Spec: v1.ArchiveJobSpec{
			Engine: engineFromFlags(command),
			Tasks:  []v1.Task{task},
			Output: &v1.OutputSpec{
				Encoding: encoding,
				Sink:     &v1.SinkSpec{Stdout: &v1.StdoutSinkSpec{}},
			},
		},
	}
}

func taskSubject(task v1.Task) string {
	switch {
	case task.List != nil:
		return task.List.Source
	case task.Extract != nil:
		return task.Extract.Source
	case task.Compress != nil:
		return task.Compress.Destination
	}
	return ""
}
