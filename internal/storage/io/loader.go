package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/simlab-dev/simlab/internal/model"
)

// TopologyYAMLRepository loads lab topology documents from YAML files.
type TopologyYAMLRepository struct {
	fs fs.FS
}

// NewTopologyYAMLRepository creates a new YAML topology repository.
func NewTopologyYAMLRepository(filesystem fs.FS) *TopologyYAMLRepository {
	return &TopologyYAMLRepository{fs: filesystem}
}

// GetTopology loads a topology document from a YAML file and returns it once
// its element references have been validated.
func (r *TopologyYAMLRepository) GetTopology(ctx context.Context, path string) (model.Topology, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Topology{}, fmt.Errorf("reading topology file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Topology{}, ctx.Err()
	}

	var topo model.Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return model.Topology{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := validateTopology(topo); err != nil {
		return model.Topology{}, fmt.Errorf("invalid topology: %w", err)
	}

	return topo, nil
}

// validateTopology checks what the controller cannot repair on import: every
// element needs a unique ID, interfaces must sit on a known node and links
// must connect two distinct known interfaces.
func validateTopology(topo model.Topology) error {
	nodes, err := collectIDs("node", topo.Nodes)
	if err != nil {
		return err
	}
	ifaces, err := collectIDs("interface", topo.Interfaces)
	if err != nil {
		return err
	}
	if _, err := collectIDs("link", topo.Links); err != nil {
		return err
	}
	if _, err := collectIDs("annotation", topo.Annotations); err != nil {
		return err
	}
	if _, err := collectIDs("smart annotation", topo.SmartAnnotations); err != nil {
		return err
	}

	for _, iface := range topo.Interfaces {
		if node := iface.Str("node"); !nodes[node] {
			return fmt.Errorf("interface %s references unknown node %q", iface.ID(), node)
		}
	}

	for _, link := range topo.Links {
		a, b := link.Str("interface_a"), link.Str("interface_b")
		if !ifaces[a] {
			return fmt.Errorf("link %s references unknown interface %q", link.ID(), a)
		}
		if !ifaces[b] {
			return fmt.Errorf("link %s references unknown interface %q", link.ID(), b)
		}
		if a == b {
			return fmt.Errorf("link %s connects interface %q to itself", link.ID(), a)
		}
	}

	return nil
}

func collectIDs(kind string, elements []model.ElementFields) (map[string]bool, error) {
	ids := make(map[string]bool, len(elements))
	for _, fields := range elements {
		id := fields.ID()
		if id == "" {
			return nil, fmt.Errorf("%s without an id", kind)
		}
		if ids[id] {
			return nil, fmt.Errorf("duplicate %s id %q", kind, id)
		}
		ids[id] = true
	}
	return ids, nil
}
