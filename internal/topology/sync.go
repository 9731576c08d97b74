package topology

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/simlab-dev/simlab/internal/model"
)

// outdatedLocked reports whether a sync category is due for a refresh. A
// non-positive auto-sync interval disables automatic refresh entirely.
func (l *Lab) outdatedLocked(last time.Time) bool {
	if l.autoSyncInterval <= 0 {
		return false
	}
	return time.Since(last) > l.autoSyncInterval
}

// --- Sync gates, one per category ---

// syncTopologyIfOutdatedLocked refreshes the topology when it is due. When a
// caller needs configuration text and the last sync skipped it, the refresh
// is forced and fetches everything.
func (l *Lab) syncTopologyIfOutdatedLocked(ctx context.Context, needConfigurations bool) error {
	exclude := l.excludeConfigurations && !needConfigurations
	force := needConfigurations && l.configurationsExcluded
	if !force && !l.outdatedLocked(l.topologySynced) {
		return nil
	}
	return l.syncTopologyLocked(ctx, exclude)
}

func (l *Lab) syncStatesIfOutdatedLocked(ctx context.Context) error {
	if !l.outdatedLocked(l.statesSynced) {
		return nil
	}
	return l.syncStatesLocked(ctx)
}

func (l *Lab) syncStatisticsIfOutdatedLocked(ctx context.Context) error {
	if !l.outdatedLocked(l.statisticsSynced) {
		return nil
	}
	return l.syncStatisticsLocked(ctx)
}

func (l *Lab) syncLayer3IfOutdatedLocked(ctx context.Context) error {
	if !l.outdatedLocked(l.layer3Synced) {
		return nil
	}
	return l.syncLayer3Locked(ctx)
}

func (l *Lab) syncOperationalIfOutdatedLocked(ctx context.Context) error {
	if !l.outdatedLocked(l.operationalSynced) {
		return nil
	}
	return l.syncOperationalLocked(ctx)
}

// --- Forced syncs ---

// SyncTopology fetches the lab topology and reconciles the local mirror with
// it, regardless of how fresh it is.
func (l *Lab) SyncTopology(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	return l.syncTopologyLocked(ctx, l.excludeConfigurations)
}

// SyncStates fetches the runtime states of the lab and all its elements.
func (l *Lab) SyncStates(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	return l.syncStatesLocked(ctx)
}

// SyncStatistics fetches the traffic and resource usage counters.
func (l *Lab) SyncStatistics(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	return l.syncStatisticsLocked(ctx)
}

// SyncLayer3 fetches the addresses snooped from live traffic.
func (l *Lab) SyncLayer3(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	return l.syncLayer3Locked(ctx)
}

// SyncOperational fetches the deployment details of all nodes.
func (l *Lab) SyncOperational(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	return l.syncOperationalLocked(ctx)
}

// Sync refreshes every category at once.
func (l *Lab) Sync(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if err := l.syncTopologyLocked(ctx, l.excludeConfigurations); err != nil {
		return err
	}
	if err := l.syncStatesLocked(ctx); err != nil {
		return err
	}
	if err := l.syncStatisticsLocked(ctx); err != nil {
		return err
	}
	if err := l.syncLayer3Locked(ctx); err != nil {
		return err
	}
	return l.syncOperationalLocked(ctx)
}

// --- Category fetches ---

func (l *Lab) syncTopologyLocked(ctx context.Context, exclude bool) error {
	path := l.url("/topology") + "?exclude_configurations=" + strconv.FormatBool(exclude)
	var topo model.Topology
	if err := l.api.Get(ctx, path, &topo); err != nil {
		return l.fail(err)
	}
	if err := checkTopologyReferences(topo); err != nil {
		return err
	}

	var err error
	if !l.initialized {
		err = l.importTopologyLocked(topo, exclude)
	} else {
		err = l.updateTopologyLocked(topo, exclude)
	}
	if err != nil {
		return err
	}

	l.initialized = true
	l.topologySynced = time.Now()
	l.configurationsExcluded = exclude
	return nil
}

func (l *Lab) syncStatesLocked(ctx context.Context) error {
	var states model.ElementStates
	if err := l.api.Get(ctx, l.url("/lab_element_state"), &states); err != nil {
		return l.fail(err)
	}

	if states.Lab != "" {
		l.state = states.Lab
	}
	for id, state := range states.Nodes {
		if n, ok := l.nodes.get(id); ok {
			n.state = state
		}
	}
	for id, state := range states.Interfaces {
		if i, ok := l.interfaces.get(id); ok {
			i.state = state
		}
	}
	for id, state := range states.Links {
		if lnk, ok := l.links.get(id); ok {
			lnk.state = state
		}
	}

	l.statesSynced = time.Now()
	return nil
}

func (l *Lab) syncStatisticsLocked(ctx context.Context) error {
	var stats model.SimulationStats
	if err := l.api.Get(ctx, l.url("/simulation_stats"), &stats); err != nil {
		return l.fail(err)
	}

	for id, ns := range stats.Nodes {
		if n, ok := l.nodes.get(id); ok {
			n.stats = ns
		}
	}
	// A link's counters are its A-side view; the B side sees them mirrored.
	for id, ls := range stats.Links {
		lnk, ok := l.links.get(id)
		if !ok {
			continue
		}
		lnk.stats = ls
		if a, ok := l.interfaces.get(lnk.ifaceAID); ok {
			a.stats = ls
		}
		if b, ok := l.interfaces.get(lnk.ifaceBID); ok {
			b.stats = ls.Reversed()
		}
	}

	l.statisticsSynced = time.Now()
	return nil
}

func (l *Lab) syncLayer3Locked(ctx context.Context) error {
	var l3 model.Layer3Addresses
	if err := l.api.Get(ctx, l.url("/layer3_addresses"), &l3); err != nil {
		return l.fail(err)
	}

	for nodeID, entry := range l3 {
		if n, ok := l.nodes.get(nodeID); ok {
			n.applyLayer3Locked(entry.Interfaces)
		}
	}

	l.layer3Synced = time.Now()
	return nil
}

func (l *Lab) syncOperationalLocked(ctx context.Context) error {
	var nodes []model.ElementFields
	if err := l.api.Get(ctx, l.url("/nodes")+"?data=true&operational=true", &nodes); err != nil {
		return l.fail(err)
	}

	for _, fields := range nodes {
		if n, ok := l.nodes.get(fields.ID()); ok {
			n.applyOperationalLocked(fields)
		}
	}

	l.operationalSynced = time.Now()
	return nil
}

// --- Snapshot reconciliation ---

// applyLabPropertiesLocked takes the lab-level fields of a snapshot.
func (l *Lab) applyLabPropertiesLocked(props model.LabProperties) {
	l.title = props.Title
	l.description = props.Description
	l.notes = props.Notes
	if props.Owner != "" {
		l.owner = props.Owner
	} else if l.owner == "" {
		l.owner = l.username
	}
	if props.State != "" {
		l.state = props.State
	}
	if props.Created != "" {
		l.created = props.Created
	}
}

// importTopologyLocked populates an empty mirror from a snapshot. Duplicate
// element IDs in the document are an error.
func (l *Lab) importTopologyLocked(topo model.Topology, excludeConfigurations bool) error {
	l.applyLabPropertiesLocked(topo.Lab)

	for _, fields := range topo.Nodes {
		if l.nodes.has(fields.ID()) {
			return alreadyExists("node", fields.ID())
		}
		l.importNodeLocked(fields, excludeConfigurations)
	}
	for _, fields := range documentInterfaces(topo) {
		if l.interfaces.has(fields.ID()) {
			return alreadyExists("interface", fields.ID())
		}
		l.importInterfaceLocked(fields)
	}
	for _, fields := range topo.Links {
		if l.links.has(fields.ID()) {
			return alreadyExists("link", fields.ID())
		}
		l.importLinkLocked(fields)
	}
	for _, fields := range topo.Annotations {
		if l.annotations.has(fields.ID()) {
			return alreadyExists("annotation", fields.ID())
		}
		l.importAnnotationLocked(fields)
	}
	for _, fields := range topo.SmartAnnotations {
		if l.smartAnnotations.has(fields.ID()) {
			return alreadyExists("smart annotation", fields.ID())
		}
		l.importSmartAnnotationLocked(fields)
	}

	return nil
}

// updateTopologyLocked reconciles the mirror against a fresh snapshot.
// Elements the snapshot no longer lists are dropped first, dependents before
// dependencies, then new elements are added in dependency order. Kept
// elements are updated in place so references held by callers stay valid.
func (l *Lab) updateTopologyLocked(topo model.Topology, excludeConfigurations bool) error {
	l.applyLabPropertiesLocked(topo.Lab)

	ifaceDocs := documentInterfaces(topo)
	nodeIDs := idSet(topo.Nodes)
	ifaceIDs := idSet(ifaceDocs)
	linkIDs := idSet(topo.Links)
	annIDs := idSet(topo.Annotations)
	saIDs := idSet(topo.SmartAnnotations)

	for _, id := range l.smartAnnotations.keys() {
		if _, ok := saIDs[id]; !ok {
			l.removeSmartAnnotationLocalLocked(id)
			l.logger.Warningf("Removed smart annotation %s", id)
		}
	}
	for _, id := range l.annotations.keys() {
		if _, ok := annIDs[id]; !ok {
			l.removeAnnotationLocalLocked(id)
			l.logger.Warningf("Removed annotation %s", id)
		}
	}
	for _, id := range l.links.keys() {
		if _, ok := linkIDs[id]; !ok {
			l.removeLinkLocalLocked(id)
			l.logger.Warningf("Removed link %s", id)
		}
	}
	for _, id := range l.interfaces.keys() {
		if _, ok := ifaceIDs[id]; !ok {
			l.removeInterfaceLocalLocked(id)
			l.logger.Warningf("Removed interface %s", id)
		}
	}
	for _, id := range l.nodes.keys() {
		if _, ok := nodeIDs[id]; !ok {
			l.removeNodeLocalLocked(id)
			l.logger.Warningf("Removed node %s", id)
		}
	}

	for _, fields := range topo.Nodes {
		if known := l.nodes.has(fields.ID()); !known {
			l.logger.Infof("Added node %s", fields.ID())
		}
		l.importNodeLocked(fields, excludeConfigurations)
	}
	for _, fields := range ifaceDocs {
		// Kept interfaces carry nothing mutable, only new ones matter.
		if l.interfaces.has(fields.ID()) {
			continue
		}
		l.importInterfaceLocked(fields)
		l.logger.Infof("Added interface %s", fields.ID())
	}
	for _, fields := range topo.Links {
		if l.links.has(fields.ID()) {
			continue
		}
		l.importLinkLocked(fields)
		l.logger.Infof("Added link %s", fields.ID())
	}
	for _, fields := range topo.Annotations {
		if known := l.annotations.has(fields.ID()); !known {
			l.logger.Infof("Added annotation %s", fields.ID())
		}
		l.importAnnotationLocked(fields)
	}
	for _, fields := range topo.SmartAnnotations {
		if known := l.smartAnnotations.has(fields.ID()); !known {
			l.logger.Infof("Added smart annotation %s", fields.ID())
		}
		l.importSmartAnnotationLocked(fields)
	}

	return nil
}

// checkTopologyReferences verifies a fetched topology is self-consistent
// before any of it is applied: links must cable interfaces the document
// lists, sitting on nodes the document lists. Applying a broken document
// would strand mirrored elements, so it is rejected whole.
func checkTopologyReferences(topo model.Topology) error {
	nodeIDs := idSet(topo.Nodes)
	ifaceNode := map[string]string{}
	for _, fields := range documentInterfaces(topo) {
		ifaceNode[fields.ID()] = fields.Str("node")
	}

	for id, nodeID := range ifaceNode {
		if _, ok := nodeIDs[nodeID]; !ok {
			return fmt.Errorf("interface %s references node %s not in the topology: %w", id, nodeID, model.ErrNotValid)
		}
	}
	for _, link := range topo.Links {
		for _, key := range []string{"interface_a", "interface_b"} {
			ifaceID := link.Str(key)
			if _, ok := ifaceNode[ifaceID]; !ok {
				return fmt.Errorf("link %s references interface %s not in the topology: %w", link.ID(), ifaceID, model.ErrNotValid)
			}
		}
	}
	return nil
}

// documentInterfaces collects the interface entries of a topology document.
// Interfaces may sit at the top level or nested under their node, in which
// case the node reference is filled in from the parent.
func documentInterfaces(topo model.Topology) []model.ElementFields {
	var out []model.ElementFields
	for _, node := range topo.Nodes {
		nested, ok := node["interfaces"].([]interface{})
		if !ok {
			continue
		}
		for _, entry := range nested {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			fields := model.ElementFields(m)
			if !fields.Has("node") {
				fields["node"] = node.ID()
			}
			out = append(out, fields)
		}
	}
	out = append(out, topo.Interfaces...)
	return out
}

func idSet(docs []model.ElementFields) map[string]struct{} {
	out := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if id := d.ID(); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
