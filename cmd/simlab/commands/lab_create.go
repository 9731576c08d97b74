package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabCreateCommand creates a new empty lab.
type LabCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	title string
}

// NewLabCreateCommand returns the lab create command.
func NewLabCreateCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabCreateCommand {
	c := &LabCreateCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("create", "Create a new empty lab.")
	c.Cmd.Flag("title", "Lab title. The controller picks one if empty.").Short('t').StringVar(&c.title)

	return c
}

func (c LabCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabCreateCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.CreateLab(ctx, c.title)
	if err != nil {
		return fmt.Errorf("could not create lab: %w", err)
	}

	title, err := lab.Title(ctx)
	if err != nil {
		return fmt.Errorf("could not read lab title: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Created lab %s (%s)", lab.ID(), title))
}
