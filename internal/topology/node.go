package topology

import (
	"context"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

// Node is the local mirror of one simulated device in a lab.
type Node struct {
	lab   *Lab
	id    string
	stale bool

	label           string
	definition      string
	imageDefinition string
	x               int
	y               int
	tags            []string
	hideLinks       bool

	// configuration is nil while the text has never been fetched, which is
	// different from a fetched empty configuration.
	configuration *string

	ram          int
	cpus         int
	cpuLimit     int
	bootDiskSize int
	dataVolume   int

	state string
	stats model.NodeStatistics

	computeID       string
	resourcePool    string
	lockedComputeID string
}

func newNode(lab *Lab, id string) *Node {
	return &Node{lab: lab, id: id}
}

// ID returns the node ID. Always available, even on stale nodes.
func (n *Node) ID() string { return n.id }

func (n *Node) url(suffix string) string {
	return n.lab.url("/nodes/" + n.id + suffix)
}

func (n *Node) fail(err error) error {
	if transport.IsNotFound(err) {
		n.stale = true
		return notFound("node", n.id)
	}
	return err
}

// topoLocked guards an accessor: stale nodes are gone, fresh ones may need a
// topology refresh first.
func (n *Node) topoLocked(ctx context.Context) error {
	if n.stale {
		return gone("node", n.id)
	}
	return n.lab.syncTopologyIfOutdatedLocked(ctx, false)
}

// Label returns the node label.
func (n *Node) Label(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return "", err
	}
	return n.label, nil
}

// SetLabel renames the node.
func (n *Node) SetLabel(ctx context.Context, label string) error {
	defer n.lab.guard.Lock()()
	if n.stale {
		return gone("node", n.id)
	}
	if err := n.setPropertiesLocked(ctx, model.ElementFields{"label": label}); err != nil {
		return err
	}
	n.label = label
	return nil
}

// Definition returns the node definition ID.
func (n *Node) Definition(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return "", err
	}
	return n.definition, nil
}

// ImageDefinition returns the image definition ID, empty when the node uses
// the definition default.
func (n *Node) ImageDefinition(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return "", err
	}
	return n.imageDefinition, nil
}

// Position returns the canvas coordinates of the node.
func (n *Node) Position(ctx context.Context) (x, y int, err error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, 0, err
	}
	return n.x, n.y, nil
}

// SetPosition moves the node on the canvas.
func (n *Node) SetPosition(ctx context.Context, x, y int) error {
	defer n.lab.guard.Lock()()
	if n.stale {
		return gone("node", n.id)
	}
	if err := n.setPropertiesLocked(ctx, model.ElementFields{"x": x, "y": y}); err != nil {
		return err
	}
	n.x, n.y = x, y
	return nil
}

// Configuration returns the node configuration text. Forces a full topology
// fetch when configurations were excluded from the last sync.
func (n *Node) Configuration(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return "", gone("node", n.id)
	}
	if err := n.lab.syncTopologyIfOutdatedLocked(ctx, true); err != nil {
		return "", err
	}
	if n.configuration == nil {
		return "", nil
	}
	return *n.configuration, nil
}

// SetConfiguration replaces the node configuration text.
func (n *Node) SetConfiguration(ctx context.Context, configuration string) error {
	defer n.lab.guard.Lock()()
	if n.stale {
		return gone("node", n.id)
	}
	if err := n.setPropertiesLocked(ctx, model.ElementFields{"configuration": configuration}); err != nil {
		return err
	}
	n.configuration = &configuration
	return nil
}

// Tags returns the tags set on the node.
func (n *Node) Tags(ctx context.Context) ([]string, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return nil, err
	}
	tags := make([]string, len(n.tags))
	copy(tags, n.tags)
	return tags, nil
}

// AddTag adds a tag to the node. Adding an existing tag is a no-op. The
// controller materializes a smart annotation for each distinct tag, which
// shows up on the next topology sync.
func (n *Node) AddTag(ctx context.Context, tag string) error {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return err
	}
	for _, t := range n.tags {
		if t == tag {
			return nil
		}
	}
	tags := append(append([]string{}, n.tags...), tag)
	if err := n.setPropertiesLocked(ctx, model.ElementFields{"tags": tags}); err != nil {
		return err
	}
	n.tags = tags
	return nil
}

// RemoveTag removes a tag from the node. Removing an absent tag is a no-op.
func (n *Node) RemoveTag(ctx context.Context, tag string) error {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return err
	}
	tags := make([]string, 0, len(n.tags))
	for _, t := range n.tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	if len(tags) == len(n.tags) {
		return nil
	}
	if err := n.setPropertiesLocked(ctx, model.ElementFields{"tags": tags}); err != nil {
		return err
	}
	n.tags = tags
	return nil
}

// RAM returns the configured memory in MiB, zero for the definition default.
func (n *Node) RAM(ctx context.Context) (int, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, err
	}
	return n.ram, nil
}

// CPUs returns the configured vCPU count, zero for the definition default.
func (n *Node) CPUs(ctx context.Context) (int, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, err
	}
	return n.cpus, nil
}

// CPULimit returns the CPU usage limit in percent, zero for unlimited.
func (n *Node) CPULimit(ctx context.Context) (int, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, err
	}
	return n.cpuLimit, nil
}

// BootDiskSize returns the boot disk size in GiB, zero for the default.
func (n *Node) BootDiskSize(ctx context.Context) (int, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, err
	}
	return n.bootDiskSize, nil
}

// DataVolume returns the data volume size in GiB, zero for none.
func (n *Node) DataVolume(ctx context.Context) (int, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return 0, err
	}
	return n.dataVolume, nil
}

// HideLinks reports whether the node's links are hidden on the canvas.
func (n *Node) HideLinks(ctx context.Context) (bool, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return false, err
	}
	return n.hideLinks, nil
}

// State returns the node runtime state.
func (n *Node) State(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return "", gone("node", n.id)
	}
	if err := n.lab.syncStatesIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return n.state, nil
}

// IsActive reports whether the node is running or on its way to running.
func (n *Node) IsActive(ctx context.Context) (bool, error) {
	state, err := n.State(ctx)
	if err != nil {
		return false, err
	}
	return model.IsActiveState(state), nil
}

// Statistics returns the node resource usage counters.
func (n *Node) Statistics(ctx context.Context) (model.NodeStatistics, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return model.NodeStatistics{}, gone("node", n.id)
	}
	if err := n.lab.syncStatisticsIfOutdatedLocked(ctx); err != nil {
		return model.NodeStatistics{}, err
	}
	return n.stats, nil
}

// ComputeID returns the compute host the node runs on, empty while the node
// is not deployed.
func (n *Node) ComputeID(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return "", gone("node", n.id)
	}
	if err := n.lab.syncOperationalIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return n.computeID, nil
}

// ResourcePool returns the resource pool the node is accounted to.
func (n *Node) ResourcePool(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return "", gone("node", n.id)
	}
	if err := n.lab.syncOperationalIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return n.resourcePool, nil
}

// LockedComputeID returns the compute host the node is pinned to, empty when
// unpinned.
func (n *Node) LockedComputeID(ctx context.Context) (string, error) {
	defer n.lab.guard.Lock()()
	if n.stale {
		return "", gone("node", n.id)
	}
	if err := n.lab.syncOperationalIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return n.lockedComputeID, nil
}

// Interfaces returns the node's interfaces in creation order.
func (n *Node) Interfaces(ctx context.Context) ([]*Interface, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return nil, err
	}
	var out []*Interface
	for _, i := range n.lab.interfaces.values() {
		if i.nodeID == n.id {
			out = append(out, i)
		}
	}
	return out, nil
}

// Links returns the links attached to any of the node's interfaces.
func (n *Node) Links(ctx context.Context) ([]*Link, error) {
	defer n.lab.guard.Lock()()
	if err := n.topoLocked(ctx); err != nil {
		return nil, err
	}
	var out []*Link
	for _, lnk := range n.lab.links.values() {
		a, okA := n.lab.interfaces.get(lnk.ifaceAID)
		b, okB := n.lab.interfaces.get(lnk.ifaceBID)
		if (okA && a.nodeID == n.id) || (okB && b.nodeID == n.id) {
			out = append(out, lnk)
		}
	}
	return out, nil
}

// Remove deletes the node on the controller and drops it, its interfaces
// and their links from the local mirror.
func (n *Node) Remove(ctx context.Context) error {
	return n.lab.RemoveNode(ctx, n)
}

// Start starts the node.
func (n *Node) Start(ctx context.Context) error {
	return n.putState(ctx, "/state/start")
}

// Stop stops the node.
func (n *Node) Stop(ctx context.Context) error {
	return n.putState(ctx, "/state/stop")
}

// Wipe wipes the node runtime state. The node must be stopped.
func (n *Node) Wipe(ctx context.Context) error {
	return n.putState(ctx, "/wipe_disks")
}

func (n *Node) putState(ctx context.Context, action string) error {
	defer n.lab.guard.Lock()()
	if n.stale {
		return gone("node", n.id)
	}
	if err := n.lab.api.Put(ctx, n.url(action), nil, nil); err != nil {
		return n.fail(err)
	}
	return nil
}

func (n *Node) setPropertiesLocked(ctx context.Context, fields model.ElementFields) error {
	if err := n.lab.api.Patch(ctx, n.url(""), fields, nil); err != nil {
		return n.fail(err)
	}
	return nil
}

// applyUpdateLocked merges a partial node snapshot into the mirror. Absent
// keys keep their current value, unknown keys are ignored.
func (n *Node) applyUpdateLocked(fields model.ElementFields, excludeConfigurations bool) {
	for key := range fields {
		switch key {
		// Nested interface entries are handled by the topology importer.
		case "id", "lab_id", "interfaces":
		case "label":
			n.label = fields.Str(key)
		case "node_definition":
			n.definition = fields.Str(key)
		case "image_definition":
			n.imageDefinition = fields.Str(key)
		case "x":
			n.x = fields.Int(key)
		case "y":
			n.y = fields.Int(key)
		case "tags":
			n.tags = fields.StrSlice(key)
		case "hide_links":
			n.hideLinks = fields.Bool(key)
		case "configuration":
			if excludeConfigurations {
				continue
			}
			cfg := fields.Str(key)
			n.configuration = &cfg
		case "ram":
			n.ram = fields.Int(key)
		case "cpus":
			n.cpus = fields.Int(key)
		case "cpu_limit":
			n.cpuLimit = fields.Int(key)
		case "boot_disk_size":
			n.bootDiskSize = fields.Int(key)
		case "data_volume":
			n.dataVolume = fields.Int(key)
		case "state":
			n.state = fields.Str(key)
		case "operational", "locked_compute_id":
			n.applyOperationalLocked(fields)
		default:
			n.lab.logger.Debugf("Ignoring unknown node field %q on node %s", key, n.id)
		}
	}
}

// applyOperationalLocked picks the deployment details out of an operational
// node snapshot.
func (n *Node) applyOperationalLocked(fields model.ElementFields) {
	n.lockedComputeID = fields.Str("locked_compute_id")
	op, ok := fields["operational"].(map[string]interface{})
	if !ok {
		return
	}
	opf := model.ElementFields(op)
	n.computeID = opf.Str("compute_id")
	n.resourcePool = opf.Str("resource_pool")
}

// applyLayer3Locked matches snooped address entries to the node's interfaces
// by label and stores them there.
func (n *Node) applyLayer3Locked(entries map[string]model.Layer3Snooped) {
	for mac, entry := range entries {
		for _, i := range n.lab.interfaces.values() {
			if i.nodeID != n.id || i.label != entry.Label {
				continue
			}
			i.snoopedMAC = mac
			i.snoopedIPv4 = append([]string{}, entry.IPv4...)
			i.snoopedIPv6 = append([]string{}, entry.IPv6...)
			break
		}
	}
}

func (n *Node) topologyFieldsLocked() model.ElementFields {
	fields := model.ElementFields{
		"id":              n.id,
		"label":           n.label,
		"node_definition": n.definition,
		"x":               n.x,
		"y":               n.y,
		"tags":            append([]string{}, n.tags...),
	}
	if n.imageDefinition != "" {
		fields["image_definition"] = n.imageDefinition
	}
	if n.configuration != nil {
		fields["configuration"] = *n.configuration
	}
	if n.ram > 0 {
		fields["ram"] = n.ram
	}
	if n.cpus > 0 {
		fields["cpus"] = n.cpus
	}
	if n.cpuLimit > 0 {
		fields["cpu_limit"] = n.cpuLimit
	}
	if n.bootDiskSize > 0 {
		fields["boot_disk_size"] = n.bootDiskSize
	}
	if n.dataVolume > 0 {
		fields["data_volume"] = n.dataVolume
	}
	if n.hideLinks {
		fields["hide_links"] = true
	}
	return fields
}
