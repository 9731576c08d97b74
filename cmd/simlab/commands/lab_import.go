package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/internal/printer"
	storageio "github.com/simlab-dev/simlab/internal/storage/io"
)

// LabImportCommand imports a topology file as a new lab.
type LabImportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file  string
	title string
}

// NewLabImportCommand returns the lab import command.
func NewLabImportCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabImportCommand {
	c := &LabImportCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("import", "Import a YAML topology file as a new lab.")
	c.Cmd.Arg("file", "Topology file.").Required().StringVar(&c.file)
	c.Cmd.Flag("title", "Override the title from the topology file.").Short('t').StringVar(&c.title)

	return c
}

func (c LabImportCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabImportCommand) Run(ctx context.Context) error {
	filePath := c.file
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("could not resolve topology file path: %w", err)
		}
		filePath = absPath
	}

	topoRepo := storageio.NewTopologyYAMLRepository(os.DirFS("/"))
	topo, err := topoRepo.GetTopology(ctx, filePath[1:])
	if err != nil {
		return fmt.Errorf("could not load topology file %s: %w", c.file, err)
	}

	client, err := newClient(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer client.Close()

	lab, err := client.ImportLab(ctx, topo, c.title)
	if err != nil {
		return fmt.Errorf("could not import lab: %w", err)
	}

	title, err := lab.Title(ctx)
	if err != nil {
		return fmt.Errorf("could not read lab title: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	return p.PrintMessage(fmt.Sprintf("Imported lab %s (%s)", lab.ID(), title))
}
