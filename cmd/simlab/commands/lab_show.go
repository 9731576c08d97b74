package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabShowCommand shows a single lab with its nodes and links.
type LabShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID  string
	format string
}

// NewLabShowCommand returns the lab show command.
func NewLabShowCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabShowCommand {
	c := &LabShowCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("show", "Show a lab with its nodes and links.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c LabShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabShowCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}

	detail, err := labDetail(ctx, lab)
	if err != nil {
		return err
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintLabDetail(detail); err != nil {
		return fmt.Errorf("could not print lab: %w", err)
	}

	return nil
}
