package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabStopCommand stops all the nodes of a lab.
type LabStopCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID string
	wait  bool
}

// NewLabStopCommand returns the lab stop command.
func NewLabStopCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabStopCommand {
	c := &LabStopCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("stop", "Stop all the nodes of a lab.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)
	c.Cmd.Flag("wait", "Wait until the lab converges.").Short('w').BoolVar(&c.wait)

	return c
}

func (c LabStopCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabStopCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}

	if err := lab.Stop(ctx); err != nil {
		return fmt.Errorf("could not stop lab: %w", err)
	}

	if c.wait {
		if err := lab.WaitUntilConverged(ctx, 0, 0); err != nil {
			return fmt.Errorf("lab did not converge: %w", err)
		}
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Stopped lab %s", c.labID))
}
