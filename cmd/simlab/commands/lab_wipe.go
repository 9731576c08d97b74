package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabWipeCommand wipes the runtime state of a stopped lab.
type LabWipeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID string
}

// NewLabWipeCommand returns the lab wipe command.
func NewLabWipeCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabWipeCommand {
	c := &LabWipeCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("wipe", "Wipe the runtime state of a stopped lab.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)

	return c
}

func (c LabWipeCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabWipeCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}

	if err := lab.Wipe(ctx); err != nil {
		return fmt.Errorf("could not wipe lab: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Wiped lab %s", c.labID))
}
