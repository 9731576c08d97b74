package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabStartCommand starts all the nodes of a lab.
type LabStartCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID string
	wait  bool
}

// NewLabStartCommand returns the lab start command.
func NewLabStartCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabStartCommand {
	c := &LabStartCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("start", "Start all the nodes of a lab.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)
	c.Cmd.Flag("wait", "Wait until the lab converges.").Short('w').BoolVar(&c.wait)

	return c
}

func (c LabStartCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabStartCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}

	if err := lab.Start(ctx); err != nil {
		return fmt.Errorf("could not start lab: %w", err)
	}

	if c.wait {
		if err := lab.WaitUntilConverged(ctx, 0, 0); err != nil {
			return fmt.Errorf("lab did not converge: %w", err)
		}
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Started lab %s", c.labID))
}
