package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/urfave/cli/v3"
)

var formatsCommand = &cli.Command{
	Name:  "formats",
	Usage: "List the archive formats and their handler class identities",
	Action: func(ctx context.Context, command *cli.Command) error {
		tw := tabwriter.NewWriter(command.Root().Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tEXTENSION\tHANDLER CLASS")
		for _, d := range formats.All() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Extension, d.ReaderClass)
		}
		return tw.Flush()
	},
}
