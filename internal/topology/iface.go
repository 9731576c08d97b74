package topology

import (
	"context"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

// Interface is the local mirror of one node interface.
type Interface struct {
	lab   *Lab
	id    string
	stale bool

	nodeID    string
	label     string
	slot      int
	ifaceType string
	mac       string

	state string
	stats model.LinkStatistics

	snoopedMAC  string
	snoopedIPv4 []string
	snoopedIPv6 []string
}

func newInterface(lab *Lab, id, nodeID string) *Interface {
	return &Interface{lab: lab, id: id, nodeID: nodeID}
}

// ID returns the interface ID. Always available, even on stale interfaces.
func (i *Interface) ID() string { return i.id }

func (i *Interface) url(suffix string) string {
	return i.lab.url("/interfaces/" + i.id + suffix)
}

func (i *Interface) fail(err error) error {
	if transport.IsNotFound(err) {
		i.stale = true
		return notFound("interface", i.id)
	}
	return err
}

func (i *Interface) topoLocked(ctx context.Context) error {
	if i.stale {
		return gone("interface", i.id)
	}
	return i.lab.syncTopologyIfOutdatedLocked(ctx, false)
}

// Label returns the interface label.
func (i *Interface) Label(ctx context.Context) (string, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return "", err
	}
	return i.label, nil
}

// Slot returns the interface slot on its node.
func (i *Interface) Slot(ctx context.Context) (int, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return 0, err
	}
	return i.slot, nil
}

// Type returns the interface type reported by the controller.
func (i *Interface) Type(ctx context.Context) (string, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return "", err
	}
	return i.ifaceType, nil
}

// IsPhysical reports whether the interface can be cabled to another node.
func (i *Interface) IsPhysical(ctx context.Context) (bool, error) {
	typ, err := i.Type(ctx)
	if err != nil {
		return false, err
	}
	return typ == "physical", nil
}

// MACAddress returns the configured MAC address, empty when auto-assigned.
func (i *Interface) MACAddress(ctx context.Context) (string, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return "", err
	}
	return i.mac, nil
}

// Node returns the node this interface belongs to.
func (i *Interface) Node(ctx context.Context) (*Node, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return nil, err
	}
	n, ok := i.lab.nodes.get(i.nodeID)
	if !ok {
		return nil, notFound("node", i.nodeID)
	}
	return n, nil
}

// Link returns the link attached to this interface, nil when unconnected.
func (i *Interface) Link(ctx context.Context) (*Link, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return nil, err
	}
	return i.linkLocked(), nil
}

// IsConnected reports whether a link is attached to this interface.
func (i *Interface) IsConnected(ctx context.Context) (bool, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return false, err
	}
	return i.linkLocked() != nil, nil
}

func (i *Interface) linkLocked() *Link {
	for _, lnk := range i.lab.links.values() {
		if lnk.ifaceAID == i.id || lnk.ifaceBID == i.id {
			return lnk
		}
	}
	return nil
}

// PeerInterface returns the interface on the far side of the attached link,
// nil when unconnected.
func (i *Interface) PeerInterface(ctx context.Context) (*Interface, error) {
	defer i.lab.guard.Lock()()
	if err := i.topoLocked(ctx); err != nil {
		return nil, err
	}
	lnk := i.linkLocked()
	if lnk == nil {
		return nil, nil
	}
	peerID := lnk.ifaceAID
	if peerID == i.id {
		peerID = lnk.ifaceBID
	}
	p, ok := i.lab.interfaces.get(peerID)
	if !ok {
		return nil, notFound("interface", peerID)
	}
	return p, nil
}

// PeerNode returns the node on the far side of the attached link, nil when
// unconnected.
func (i *Interface) PeerNode(ctx context.Context) (*Node, error) {
	p, err := i.PeerInterface(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Node(ctx)
}

// State returns the interface runtime state.
func (i *Interface) State(ctx context.Context) (string, error) {
	defer i.lab.guard.Lock()()
	if i.stale {
		return "", gone("interface", i.id)
	}
	if err := i.lab.syncStatesIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return i.state, nil
}

// IsActive reports whether the interface is up or coming up.
func (i *Interface) IsActive(ctx context.Context) (bool, error) {
	state, err := i.State(ctx)
	if err != nil {
		return false, err
	}
	return model.IsActiveState(state), nil
}

// Statistics returns the interface traffic counters, derived from the
// attached link's counters.
func (i *Interface) Statistics(ctx context.Context) (model.LinkStatistics, error) {
	defer i.lab.guard.Lock()()
	if i.stale {
		return model.LinkStatistics{}, gone("interface", i.id)
	}
	if err := i.lab.syncStatisticsIfOutdatedLocked(ctx); err != nil {
		return model.LinkStatistics{}, err
	}
	return i.stats, nil
}

// DiscoveredMACAddress returns the MAC address snooped from live traffic,
// empty when nothing was discovered yet.
func (i *Interface) DiscoveredMACAddress(ctx context.Context) (string, error) {
	defer i.lab.guard.Lock()()
	if i.stale {
		return "", gone("interface", i.id)
	}
	if err := i.lab.syncLayer3IfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return i.snoopedMAC, nil
}

// DiscoveredIPv4 returns the IPv4 addresses snooped from live traffic.
func (i *Interface) DiscoveredIPv4(ctx context.Context) ([]string, error) {
	defer i.lab.guard.Lock()()
	if i.stale {
		return nil, gone("interface", i.id)
	}
	if err := i.lab.syncLayer3IfOutdatedLocked(ctx); err != nil {
		return nil, err
	}
	return append([]string{}, i.snoopedIPv4...), nil
}

// DiscoveredIPv6 returns the IPv6 addresses snooped from live traffic.
func (i *Interface) DiscoveredIPv6(ctx context.Context) ([]string, error) {
	defer i.lab.guard.Lock()()
	if i.stale {
		return nil, gone("interface", i.id)
	}
	if err := i.lab.syncLayer3IfOutdatedLocked(ctx); err != nil {
		return nil, err
	}
	return append([]string{}, i.snoopedIPv6...), nil
}

// Remove deletes the interface on the controller and drops it and its link
// from the local mirror.
func (i *Interface) Remove(ctx context.Context) error {
	return i.lab.RemoveInterface(ctx, i)
}

// Start brings the interface up.
func (i *Interface) Start(ctx context.Context) error {
	return i.putState(ctx, "/state/start")
}

// Stop brings the interface down.
func (i *Interface) Stop(ctx context.Context) error {
	return i.putState(ctx, "/state/stop")
}

func (i *Interface) putState(ctx context.Context, action string) error {
	defer i.lab.guard.Lock()()
	if i.stale {
		return gone("interface", i.id)
	}
	if err := i.lab.api.Put(ctx, i.url(action), nil, nil); err != nil {
		return i.fail(err)
	}
	return nil
}

// applyUpdateLocked merges a partial interface snapshot into the mirror.
func (i *Interface) applyUpdateLocked(fields model.ElementFields) {
	for key := range fields {
		switch key {
		case "id", "lab_id", "node":
		case "label":
			i.label = fields.Str(key)
		case "slot":
			i.slot = fields.Int(key)
		case "type":
			i.ifaceType = fields.Str(key)
		case "mac_address":
			i.mac = fields.Str(key)
		case "state":
			i.state = fields.Str(key)
		default:
			i.lab.logger.Debugf("Ignoring unknown interface field %q on interface %s", key, i.id)
		}
	}
}

func (i *Interface) topologyFieldsLocked() model.ElementFields {
	fields := model.ElementFields{
		"id":    i.id,
		"node":  i.nodeID,
		"label": i.label,
		"slot":  i.slot,
		"type":  i.ifaceType,
	}
	if i.mac != "" {
		fields["mac_address"] = i.mac
	}
	return fields
}
