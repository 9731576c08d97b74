package model

import "fmt"

// ElementStates is the per-element state map returned by the element state
// endpoint. Lab carries the aggregate lab state.
type ElementStates struct {
	Lab        string            `json:"lab,omitempty"`
	Nodes      map[string]string `json:"nodes"`
	Interfaces map[string]string `json:"interfaces"`
	Links      map[string]string `json:"links"`
}

// SimulationStats is the per-element traffic and resource usage snapshot.
type SimulationStats struct {
	Nodes map[string]NodeStatistics `json:"nodes"`
	Links map[string]LinkStatistics `json:"links"`
}

// NodeStatistics is resource usage for one node.
type NodeStatistics struct {
	CPUUsage  float64 `json:"cpu_usage"`
	DiskRead  int64   `json:"block0_rd_bytes"`
	DiskWrite int64   `json:"block0_wr_bytes"`
}

// LinkStatistics is traffic counters for one link, as seen from interface A.
type LinkStatistics struct {
	ReadBytes    int64 `json:"readbytes"`
	ReadPackets  int64 `json:"readpackets"`
	WriteBytes   int64 `json:"writebytes"`
	WritePackets int64 `json:"writepackets"`
}

// Reversed returns the same counters from the other endpoint's point of view.
func (s LinkStatistics) Reversed() LinkStatistics {
	return LinkStatistics{
		ReadBytes:    s.WriteBytes,
		ReadPackets:  s.WritePackets,
		WriteBytes:   s.ReadBytes,
		WritePackets: s.ReadPackets,
	}
}

// Layer3Addresses maps node IDs to their discovered layer 3 addresses.
type Layer3Addresses map[string]NodeLayer3

// NodeLayer3 holds the discovered addresses of one node, keyed by MAC.
type NodeLayer3 struct {
	Name       string                   `json:"name,omitempty"`
	Interfaces map[string]Layer3Snooped `json:"interfaces"`
}

// Layer3Snooped is the snooped address info of one interface.
type Layer3Snooped struct {
	ID    string   `json:"id,omitempty"`
	Label string   `json:"label"`
	IPv4  []string `json:"ip4"`
	IPv6  []string `json:"ip6"`
}

// LinkCondition is the traffic shaping applied to a link. Bandwidth is in
// kbps, latency and jitter in ms, loss in percent.
type LinkCondition struct {
	Bandwidth int     `json:"bandwidth"`
	Latency   int     `json:"latency"`
	Jitter    int     `json:"jitter"`
	Loss      float64 `json:"loss"`
}

// namedConditions are shaping presets for common access technologies.
var namedConditions = map[string]LinkCondition{
	"gprs":      {Bandwidth: 50, Latency: 500, Loss: 2.0},
	"edge":      {Bandwidth: 250, Latency: 300, Loss: 1.5},
	"3g":        {Bandwidth: 750, Latency: 250, Loss: 1.5},
	"dialup":    {Bandwidth: 40, Latency: 185, Loss: 2.0},
	"dsl1":      {Bandwidth: 2000, Latency: 70, Loss: 2.0},
	"dsl2":      {Bandwidth: 8000, Latency: 40, Loss: 0.5},
	"wifi":      {Bandwidth: 30000, Latency: 40, Loss: 0.2},
	"wan1":      {Bandwidth: 256, Latency: 80, Loss: 0.2},
	"wan2":      {Bandwidth: 100000, Latency: 80, Loss: 0.2},
	"satellite": {Bandwidth: 1000, Latency: 1500, Loss: 0.2},
}

// NamedLinkCondition returns the preset for a known condition name.
func NamedLinkCondition(name string) (LinkCondition, error) {
	cond, ok := namedConditions[name]
	if !ok {
		return LinkCondition{}, fmt.Errorf("unknown condition name %q: %w", name, ErrNotValid)
	}
	return cond, nil
}
