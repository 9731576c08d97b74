package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/simlab-dev/simlab/pkg/simlab"
)

// LabWatchCommand follows a lab's element states through the controller
// event stream.
type LabWatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	labID    string
	interval time.Duration
}

// NewLabWatchCommand returns the lab watch command.
func NewLabWatchCommand(rootCmd *RootCommand, labCmd *kingpin.CmdClause) *LabWatchCommand {
	c := &LabWatchCommand{rootCmd: rootCmd}

	c.Cmd = labCmd.Command("watch", "Follow a lab's node states until interrupted.")
	c.Cmd.Arg("lab-id", "Lab ID.").Required().StringVar(&c.labID)
	c.Cmd.Flag("interval", "Time between redraws.").Default("2s").DurationVar(&c.interval)

	return c
}

func (c LabWatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c LabWatchCommand) Run(ctx context.Context) error {
	cfg, err := newClientConfig(c.rootCmd)
	if err != nil {
		return err
	}
	// Events keep the cache fresh, polling on top would only add load.
	cfg.AutoSyncInterval = -1
	cfg.EventListening = true

	client, err := simlab.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not connect to the controller: %w", err)
	}
	defer client.Close()

	lab, err := client.JoinExistingLab(ctx, c.labID)
	if err != nil {
		return fmt.Errorf("could not join lab: %w", err)
	}
	if err := lab.SyncStates(ctx); err != nil {
		return fmt.Errorf("could not fetch lab state: %w", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		err := c.printStates(ctx, lab)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !client.EventListening() {
			return fmt.Errorf("controller event stream closed")
		}
	}
}

func (c LabWatchCommand) printStates(ctx context.Context, lab *simlab.Lab) error {
	labState, err := lab.State(ctx)
	if err != nil {
		return fmt.Errorf("could not read lab state: %w", err)
	}
	nodes, err := lab.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("could not list nodes: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "%s lab %s is %s\n", time.Now().Format("15:04:05"), lab.ID(), labState)

	w := tabwriter.NewWriter(c.rootCmd.Stdout, 0, 0, 2, ' ', 0)
	for _, node := range nodes {
		label, err := node.Label(ctx)
		if err != nil {
			return fmt.Errorf("could not read node %s: %w", node.ID(), err)
		}
		state, err := node.State(ctx)
		if err != nil {
			return fmt.Errorf("could not read node %s: %w", node.ID(), err)
		}
		fmt.Fprintf(w, "  %s\t%s\n", label, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(c.rootCmd.Stdout)

	return nil
}
