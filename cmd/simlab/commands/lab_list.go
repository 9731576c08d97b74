package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
)

// LabListCommand lists the labs known to the controller.
type LabListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	all    bool
	format string
}

// NewLabListCommand returns the lab list command.
func NewLabListCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabListCommand {
	c := &LabListCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("list", "List labs on the controller.")
	c.Cmd.Flag("all", "Include labs owned by other users.").Short('a').BoolVar(&c.all)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c LabListCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabListCommand) Run(ctx context.Context) error {
	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ids, err := client.Labs(ctx, c.all)
	if err != nil {
		return fmt.Errorf("could not list labs: %w", err)
	}

	rows := []printer.LabRow{}
	for _, id := range ids {
		fields, err := client.InspectLab(ctx, id)
		if err != nil {
			return err
		}

		// Controllers report creation time as RFC 3339, a bad value prints as "-".
		created, _ := time.Parse(time.RFC3339, fields.Str("created"))
		rows = append(rows, printer.LabRow{
			ID:      id,
			Title:   fields.Str("title"),
			State:   fields.Str("state"),
			Nodes:   fields.Int("node_count"),
			Links:   fields.Int("link_count"),
			Created: created,
		})
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintLabList(rows); err != nil {
		return fmt.Errorf("could not print lab list: %w", err)
	}

	return nil
}
