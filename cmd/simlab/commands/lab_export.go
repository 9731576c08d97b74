package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabExportCommand exports a lab as a YAML topology file.
type LabExportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID  string
	output string
}

// NewLabExportCommand returns the lab export command.
func NewLabExportCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabExportCommand {
	c := &LabExportCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("export", "Export a lab as a YAML topology file.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)
	c.Cmd.Flag("output", "Write to a file instead of stdout.").Short('o').StringVar(&c.output)

	return c
}

func (c LabExportCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabExportCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}

	topo, err := lab.ExportTopology(ctx)
	if err != nil {
		return fmt.Errorf("could not export topology: %w", err)
	}

	data, err := yaml.Marshal(topo)
	if err != nil {
		return fmt.Errorf("could not serialize topology: %w", err)
	}

	if c.output == "" {
		_, err := c.rootCmd.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(c.output, data, 0o644); err != nil {
		return fmt.Errorf("could not write topology file: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Exported lab %s to %s", c.labID, c.output))
}
