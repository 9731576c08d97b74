package commands

import (
	"context"
	"fmt"

	"github.com/simlab-dev/simlab/internal/printer"
	"github.com/simlab-dev/simlab/pkg/simlab"
)

// labDetail assembles the printable view of a joined lab.
func labDetail(ctx context.Context, lab *simlab.Lab) (printer.LabDetail, error) {
	detail := printer.LabDetail{ID: lab.ID()}

	var err error
	if detail.Title, err = lab.Title(ctx); err != nil {
		return detail, fmt.Errorf("could not read lab properties: %w", err)
	}
	if detail.Description, err = lab.Description(ctx); err != nil {
		return detail, fmt.Errorf("could not read lab properties: %w", err)
	}
	if detail.State, err = lab.State(ctx); err != nil {
		return detail, fmt.Errorf("could not read lab properties: %w", err)
	}
	if detail.Owner, err = lab.Owner(ctx); err != nil {
		return detail, fmt.Errorf("could not read lab properties: %w", err)
	}
	if detail.Created, err = lab.Created(ctx); err != nil {
		return detail, fmt.Errorf("could not read lab properties: %w", err)
	}

	nodes, err := lab.Nodes(ctx)
	if err != nil {
		return detail, fmt.Errorf("could not list nodes: %w", err)
	}
	for _, node := range nodes {
		row, err := nodeRow(ctx, node)
		if err != nil {
			return detail, err
		}
		detail.Nodes = append(detail.Nodes, row)
	}

	links, err := lab.Links(ctx)
	if err != nil {
		return detail, fmt.Errorf("could not list links: %w", err)
	}
	for _, link := range links {
		row, err := linkRow(ctx, link)
		if err != nil {
			return detail, err
		}
		detail.Links = append(detail.Links, row)
	}

	return detail, nil
}

func nodeRow(ctx context.Context, node *simlab.Node) (printer.NodeRow, error) {
	row := printer.NodeRow{ID: node.ID()}

	var err error
	if row.Label, err = node.Label(ctx); err != nil {
		return row, fmt.Errorf("could not read node %s: %w", node.ID(), err)
	}
	if row.Definition, err = node.Definition(ctx); err != nil {
		return row, fmt.Errorf("could not read node %s: %w", node.ID(), err)
	}
	if row.State, err = node.State(ctx); err != nil {
		return row, fmt.Errorf("could not read node %s: %w", node.ID(), err)
	}

	ifaces, err := node.Interfaces(ctx)
	if err != nil {
		return row, fmt.Errorf("could not read node %s: %w", node.ID(), err)
	}
	for _, iface := range ifaces {
		ips, err := iface.DiscoveredIPv4(ctx)
		if err != nil {
			return row, fmt.Errorf("could not read node %s addresses: %w", node.ID(), err)
		}
		row.IPv4 = append(row.IPv4, ips...)
	}

	return row, nil
}

func linkRow(ctx context.Context, link *simlab.Link) (printer.LinkRow, error) {
	row := printer.LinkRow{ID: link.ID()}

	var err error
	if row.State, err = link.State(ctx); err != nil {
		return row, fmt.Errorf("could not read link %s: %w", link.ID(), err)
	}
	if row.EndpointA, err = linkEndpoint(ctx, link.InterfaceA); err != nil {
		return row, fmt.Errorf("could not read link %s: %w", link.ID(), err)
	}
	if row.EndpointB, err = linkEndpoint(ctx, link.InterfaceB); err != nil {
		return row, fmt.Errorf("could not read link %s: %w", link.ID(), err)
	}

	stats, err := link.Statistics(ctx)
	if err != nil {
		return row, fmt.Errorf("could not read link %s statistics: %w", link.ID(), err)
	}
	row.ReadBytes = stats.ReadBytes
	row.WriteBytes = stats.WriteBytes

	return row, nil
}

// linkEndpoint renders one side of a link as "node:interface".
func linkEndpoint(ctx context.Context, side func(context.Context) (*simlab.Interface, error)) (string, error) {
	iface, err := side(ctx)
	if err != nil {
		return "", err
	}
	node, err := iface.Node(ctx)
	if err != nil {
		return "", err
	}
	nodeLabel, err := node.Label(ctx)
	if err != nil {
		return "", err
	}
	ifaceLabel, err := iface.Label(ctx)
	if err != nil {
		return "", err
	}
	return nodeLabel + ":" + ifaceLabel, nil
}
