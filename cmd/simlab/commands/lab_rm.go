package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabRmCommand removes a lab from the controller.
type LabRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID string
}

// NewLabRmCommand returns the lab rm command.
func NewLabRmCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabRmCommand {
	c := &LabRmCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("rm", "Remove a lab. The lab must be stopped and wiped first.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)

	return c
}

func (c LabRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabRmCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.RemoveLab(ctx, c.labID); err != nil {
		return fmt.Errorf("could not remove lab: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Removed lab %s", c.labID))
}
