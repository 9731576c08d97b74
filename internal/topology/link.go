package topology

import (
	"context"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

// Link is the local mirror of one cable between two interfaces.
type Link struct {
	lab   *Lab
	id    string
	stale bool

	ifaceAID string
	ifaceBID string
	label    string

	state string
	stats model.LinkStatistics
}

func newLink(lab *Lab, id, ifaceAID, ifaceBID string) *Link {
	return &Link{lab: lab, id: id, ifaceAID: ifaceAID, ifaceBID: ifaceBID}
}

// ID returns the link ID. Always available, even on stale links.
func (l *Link) ID() string { return l.id }

func (l *Link) url(suffix string) string {
	return l.lab.url("/links/" + l.id + suffix)
}

func (l *Link) fail(err error) error {
	if transport.IsNotFound(err) {
		l.stale = true
		return notFound("link", l.id)
	}
	return err
}

func (l *Link) topoLocked(ctx context.Context) error {
	if l.stale {
		return gone("link", l.id)
	}
	return l.lab.syncTopologyIfOutdatedLocked(ctx, false)
}

// Label returns the link label.
func (l *Link) Label(ctx context.Context) (string, error) {
	defer l.lab.guard.Lock()()
	if err := l.topoLocked(ctx); err != nil {
		return "", err
	}
	return l.label, nil
}

// InterfaceA returns the first endpoint interface.
func (l *Link) InterfaceA(ctx context.Context) (*Interface, error) {
	return l.endpoint(ctx, l.ifaceAID)
}

// InterfaceB returns the second endpoint interface.
func (l *Link) InterfaceB(ctx context.Context) (*Interface, error) {
	return l.endpoint(ctx, l.ifaceBID)
}

func (l *Link) endpoint(ctx context.Context, ifaceID string) (*Interface, error) {
	defer l.lab.guard.Lock()()
	if err := l.topoLocked(ctx); err != nil {
		return nil, err
	}
	i, ok := l.lab.interfaces.get(ifaceID)
	if !ok {
		return nil, notFound("interface", ifaceID)
	}
	return i, nil
}

// NodeA returns the node behind the first endpoint.
func (l *Link) NodeA(ctx context.Context) (*Node, error) {
	a, err := l.InterfaceA(ctx)
	if err != nil {
		return nil, err
	}
	return a.Node(ctx)
}

// NodeB returns the node behind the second endpoint.
func (l *Link) NodeB(ctx context.Context) (*Node, error) {
	b, err := l.InterfaceB(ctx)
	if err != nil {
		return nil, err
	}
	return b.Node(ctx)
}

// State returns the link runtime state.
func (l *Link) State(ctx context.Context) (string, error) {
	defer l.lab.guard.Lock()()
	if l.stale {
		return "", gone("link", l.id)
	}
	if err := l.lab.syncStatesIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return l.state, nil
}

// IsActive reports whether the link is up or coming up.
func (l *Link) IsActive(ctx context.Context) (bool, error) {
	state, err := l.State(ctx)
	if err != nil {
		return false, err
	}
	return model.IsActiveState(state), nil
}

// Statistics returns the link traffic counters as seen from interface A.
func (l *Link) Statistics(ctx context.Context) (model.LinkStatistics, error) {
	defer l.lab.guard.Lock()()
	if l.stale {
		return model.LinkStatistics{}, gone("link", l.id)
	}
	if err := l.lab.syncStatisticsIfOutdatedLocked(ctx); err != nil {
		return model.LinkStatistics{}, err
	}
	return l.stats, nil
}

// Remove deletes the link on the controller and drops it from the local
// mirror.
func (l *Link) Remove(ctx context.Context) error {
	return l.lab.RemoveLink(ctx, l)
}

// Start brings the link up.
func (l *Link) Start(ctx context.Context) error {
	return l.putState(ctx, "/state/start")
}

// Stop brings the link down.
func (l *Link) Stop(ctx context.Context) error {
	return l.putState(ctx, "/state/stop")
}

func (l *Link) putState(ctx context.Context, action string) error {
	defer l.lab.guard.Lock()()
	if l.stale {
		return gone("link", l.id)
	}
	if err := l.lab.api.Put(ctx, l.url(action), nil, nil); err != nil {
		return l.fail(err)
	}
	return nil
}

// Condition returns the traffic shaping applied to the link, nil when the
// link is unconditioned.
func (l *Link) Condition(ctx context.Context) (*model.LinkCondition, error) {
	defer l.lab.guard.Lock()()
	if l.stale {
		return nil, gone("link", l.id)
	}
	var cond *model.LinkCondition
	if err := l.lab.api.Get(ctx, l.url("/condition"), &cond); err != nil {
		return nil, l.fail(err)
	}
	return cond, nil
}

// SetCondition applies traffic shaping to the link.
func (l *Link) SetCondition(ctx context.Context, cond model.LinkCondition) error {
	defer l.lab.guard.Lock()()
	if l.stale {
		return gone("link", l.id)
	}
	if err := l.lab.api.Patch(ctx, l.url("/condition"), cond, nil); err != nil {
		return l.fail(err)
	}
	return nil
}

// SetNamedCondition applies one of the named shaping presets, like "dsl1" or
// "satellite".
func (l *Link) SetNamedCondition(ctx context.Context, name string) error {
	cond, err := model.NamedLinkCondition(name)
	if err != nil {
		return err
	}
	return l.SetCondition(ctx, cond)
}

// RemoveCondition removes any traffic shaping from the link.
func (l *Link) RemoveCondition(ctx context.Context) error {
	defer l.lab.guard.Lock()()
	if l.stale {
		return gone("link", l.id)
	}
	if err := l.lab.api.Delete(ctx, l.url("/condition")); err != nil {
		return l.fail(err)
	}
	return nil
}

// applyUpdateLocked merges a partial link snapshot into the mirror. Endpoint
// fields are identity and never move.
func (l *Link) applyUpdateLocked(fields model.ElementFields) {
	for key := range fields {
		switch key {
		case "id", "lab_id", "interface_a", "interface_b", "node_a", "node_b":
		case "label":
			l.label = fields.Str(key)
		case "state":
			l.state = fields.Str(key)
		default:
			l.lab.logger.Debugf("Ignoring unknown link field %q on link %s", key, l.id)
		}
	}
}

func (l *Link) topologyFieldsLocked() model.ElementFields {
	fields := model.ElementFields{
		"id":          l.id,
		"interface_a": l.ifaceAID,
		"interface_b": l.ifaceBID,
	}
	if l.label != "" {
		fields["label"] = l.label
	}
	return fields
}
