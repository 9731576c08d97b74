package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
	"github.com/simlab-dev/simlab/pkg/simlab"
)

// SysinfoCommand reports the controller version and readiness.
type SysinfoCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewSysinfoCommand returns the sysinfo command.
func NewSysinfoCommand(rootCmd *RootCommand, app *kingpin.Application) *SysinfoCommand {
	c := &SysinfoCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("sysinfo", "Show the controller version and readiness.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c SysinfoCommand) Name() string { return c.Cmd.FullCommand() }

func (c SysinfoCommand) Run(ctx context.Context) error {
	cfg, err := newClientConfig(c.rootCmd)
	if err != nil {
		return err
	}
	// Report what the controller runs even when this client does not support it.
	cfg.SkipVersionCheck = true

	client, err := simlab.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not connect to the controller: %w", err)
	}
	defer client.Close()

	info, err := client.SystemInfo(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch system information: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default:
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintSystemInfo(info); err != nil {
		return fmt.Errorf("could not print system information: %w", err)
	}

	return nil
}
