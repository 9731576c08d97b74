package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/simlab-dev/simlab/internal/model"
)

// TablePrinter prints lab information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintLabList prints labs in a table format.
func (t *TablePrinter) PrintLabList(labs []LabRow) error {
	if len(labs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tSTATE\tNODES\tLINKS\tCREATED")

	for _, l := range labs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			l.ID, l.Title, l.State, l.Nodes, l.Links, TimeAgo(l.Created))
	}

	return nil
}

// PrintLabDetail prints a lab header followed by its node and link tables.
func (t *TablePrinter) PrintLabDetail(detail LabDetail) error {
	fmt.Fprintf(t.writer, "Title:        %s\n", detail.Title)
	fmt.Fprintf(t.writer, "ID:           %s\n", detail.ID)
	fmt.Fprintf(t.writer, "State:        %s\n", detail.State)
	if detail.Description != "" {
		fmt.Fprintf(t.writer, "Description:  %s\n", detail.Description)
	}
	if detail.Owner != "" {
		fmt.Fprintf(t.writer, "Owner:        %s\n", detail.Owner)
	}
	if !detail.Created.IsZero() {
		fmt.Fprintf(t.writer, "Created:      %s\n", FormatTimestamp(detail.Created))
	}

	if len(detail.Nodes) > 0 {
		fmt.Fprintln(t.writer)
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tDEFINITION\tSTATE\tIPV4")
		for _, n := range detail.Nodes {
			ips := "-"
			if len(n.IPv4) > 0 {
				ips = strings.Join(n.IPv4, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Label, n.Definition, n.State, ips)
		}
		tw.Flush()
	}

	if len(detail.Links) > 0 {
		fmt.Fprintln(t.writer)
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LINK\tSTATE\tRX\tTX")
		for _, l := range detail.Links {
			fmt.Fprintf(tw, "%s <-> %s\t%s\t%s\t%s\n",
				l.EndpointA, l.EndpointB, l.State, formatCounter(l.ReadBytes), formatCounter(l.WriteBytes))
		}
		tw.Flush()
	}

	return nil
}

// PrintSystemInfo prints controller version information.
func (t *TablePrinter) PrintSystemInfo(info model.SystemInfo) error {
	ready := "no"
	if info.Ready {
		ready = "yes"
	}
	fmt.Fprintf(t.writer, "Version:  %s\n", info.Version)
	fmt.Fprintf(t.writer, "Ready:    %s\n", ready)
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func formatCounter(bytes int64) string {
	if bytes == 0 {
		return "-"
	}
	return FormatBytes(bytes)
}
