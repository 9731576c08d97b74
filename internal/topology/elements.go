package topology

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/simlab-dev/simlab/internal/model"
)

// --- Element accessors ---

// Nodes returns all nodes in creation order.
func (l *Lab) Nodes(ctx context.Context) ([]*Node, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return l.nodes.values(), nil
}

// NodeByID returns the node with the given ID.
func (l *Lab) NodeByID(ctx context.Context, id string) (*Node, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	n, ok := l.nodes.get(id)
	if !ok {
		return nil, notFound("node", id)
	}
	return n, nil
}

// NodeByLabel returns the first node with the given label.
func (l *Lab) NodeByLabel(ctx context.Context, label string) (*Node, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	for _, n := range l.nodes.values() {
		if n.label == label {
			return n, nil
		}
	}
	return nil, notFound("node", label)
}

// NodesByTag returns all nodes carrying the given tag, in creation order.
func (l *Lab) NodesByTag(ctx context.Context, tag string) ([]*Node, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range l.nodes.values() {
		for _, t := range n.tags {
			if t == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

// Interfaces returns all interfaces in creation order.
func (l *Lab) Interfaces(ctx context.Context) ([]*Interface, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return l.interfaces.values(), nil
}

// InterfaceByID returns the interface with the given ID.
func (l *Lab) InterfaceByID(ctx context.Context, id string) (*Interface, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	i, ok := l.interfaces.get(id)
	if !ok {
		return nil, notFound("interface", id)
	}
	return i, nil
}

// Links returns all links in creation order.
func (l *Lab) Links(ctx context.Context) ([]*Link, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return l.links.values(), nil
}

// LinkByID returns the link with the given ID.
func (l *Lab) LinkByID(ctx context.Context, id string) (*Link, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	lnk, ok := l.links.get(id)
	if !ok {
		return nil, notFound("link", id)
	}
	return lnk, nil
}

// LinkBetween returns the first link connecting the two nodes, in either
// direction.
func (l *Lab) LinkBetween(ctx context.Context, a, b *Node) (*Link, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	for _, lnk := range l.links.values() {
		ia, okA := l.interfaces.get(lnk.ifaceAID)
		ib, okB := l.interfaces.get(lnk.ifaceBID)
		if !okA || !okB {
			continue
		}
		if (ia.nodeID == a.id && ib.nodeID == b.id) || (ia.nodeID == b.id && ib.nodeID == a.id) {
			return lnk, nil
		}
	}
	return nil, notFound("link", a.id+"<->"+b.id)
}

// Annotations returns all annotations in creation order.
func (l *Lab) Annotations(ctx context.Context) ([]*Annotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return l.annotations.values(), nil
}

// AnnotationByID returns the annotation with the given ID.
func (l *Lab) AnnotationByID(ctx context.Context, id string) (*Annotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	a, ok := l.annotations.get(id)
	if !ok {
		return nil, notFound("annotation", id)
	}
	return a, nil
}

// SmartAnnotations returns all smart annotations in creation order.
func (l *Lab) SmartAnnotations(ctx context.Context) ([]*SmartAnnotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return l.smartAnnotations.values(), nil
}

// SmartAnnotationByID returns the smart annotation with the given ID.
func (l *Lab) SmartAnnotationByID(ctx context.Context, id string) (*SmartAnnotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	sa, ok := l.smartAnnotations.get(id)
	if !ok {
		return nil, notFound("smart annotation", id)
	}
	return sa, nil
}

// SmartAnnotationByTag returns the smart annotation materialized for a node
// tag. There is at most one per tag.
func (l *Lab) SmartAnnotationByTag(ctx context.Context, tag string) (*SmartAnnotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	for _, sa := range l.smartAnnotations.values() {
		if sa.tag == tag {
			return sa, nil
		}
	}
	return nil, notFound("smart annotation", tag)
}

// --- Create operations ---

// CreateNode creates a node on the controller and registers it locally. A
// push event echoing the creation is recognized by ID and folded into an
// update.
func (l *Lab) CreateNode(ctx context.Context, label, definition string, x, y int) (*Node, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if label == "" || definition == "" {
		return nil, fmt.Errorf("node label and definition are required: %w", model.ErrNotValid)
	}

	body := model.ElementFields{
		"label":           label,
		"node_definition": definition,
		"x":               x,
		"y":               y,
	}
	var resp model.ElementFields
	if err := l.api.Post(ctx, l.url("/nodes"), body, &resp); err != nil {
		return nil, l.fail(err)
	}
	if resp.ID() == "" {
		return nil, fmt.Errorf("controller returned no node ID: %w", model.ErrNotValid)
	}

	for k, v := range body {
		if !resp.Has(k) {
			resp[k] = v
		}
	}
	n := l.importNodeLocked(resp, false)
	l.logger.Debugf("Created node %s (%s)", n.id, label)
	return n, nil
}

// CreateInterface creates an interface on a node. A negative slot asks for
// the next free slot. The controller may create all lower slots along the
// way; every returned interface is registered locally.
func (l *Lab) CreateInterface(ctx context.Context, node *Node, slot int) (*Interface, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if node.stale {
		return nil, gone("node", node.id)
	}

	body := model.ElementFields{"node": node.id}
	if slot >= 0 {
		body["slot"] = slot
	}
	var raw json.RawMessage
	if err := l.api.Post(ctx, l.url("/interfaces"), body, &raw); err != nil {
		return nil, l.fail(err)
	}

	created, err := decodeElementList(raw)
	if err != nil {
		return nil, fmt.Errorf("undecodable interface response: %w", model.ErrNotValid)
	}
	var iface *Interface
	for _, fields := range created {
		if fields.ID() == "" {
			continue
		}
		if !fields.Has("node") {
			fields["node"] = node.id
		}
		candidate := l.importInterfaceLocked(fields)
		if iface == nil || slot < 0 || candidate.slot == slot {
			iface = candidate
		}
	}
	if iface == nil {
		return nil, fmt.Errorf("controller returned no interface: %w", model.ErrNotValid)
	}
	l.logger.Debugf("Created interface %s on node %s", iface.id, node.id)
	return iface, nil
}

// CreateLink cables two interfaces together.
func (l *Lab) CreateLink(ctx context.Context, a, b *Interface) (*Link, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}
	if a.stale {
		return nil, gone("interface", a.id)
	}
	if b.stale {
		return nil, gone("interface", b.id)
	}

	body := model.ElementFields{"interface_a": a.id, "interface_b": b.id}
	var resp model.ElementFields
	if err := l.api.Post(ctx, l.url("/links"), body, &resp); err != nil {
		return nil, l.fail(err)
	}
	if resp.ID() == "" {
		return nil, fmt.Errorf("controller returned no link ID: %w", model.ErrNotValid)
	}

	for k, v := range body {
		if !resp.Has(k) {
			resp[k] = v
		}
	}
	lnk := l.importLinkLocked(resp)
	l.logger.Debugf("Created link %s (%s <-> %s)", lnk.id, a.id, b.id)
	return lnk, nil
}

// ConnectTwoNodes creates a fresh interface on each node and links them.
func (l *Lab) ConnectTwoNodes(ctx context.Context, a, b *Node) (*Link, error) {
	ia, err := l.CreateInterface(ctx, a, -1)
	if err != nil {
		return nil, err
	}
	ib, err := l.CreateInterface(ctx, b, -1)
	if err != nil {
		return nil, err
	}
	return l.CreateLink(ctx, ia, ib)
}

// CreateAnnotation creates a canvas annotation of the given variant.
// Properties not given fall back to the variant defaults.
func (l *Lab) CreateAnnotation(ctx context.Context, typ string, fields model.ElementFields) (*Annotation, error) {
	defer l.guard.Lock()()
	if l.stale {
		return nil, gone("lab", l.id)
	}

	keys, err := annotationKeys(typ)
	if err != nil {
		return nil, err
	}
	body := annotationDefaults(typ)
	for key, value := range fields {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("invalid annotation property %q for type %q: %w", key, typ, model.ErrNotValid)
		}
		body[key] = value
	}
	body["type"] = typ

	var resp model.ElementFields
	if err := l.api.Post(ctx, l.url("/annotations"), body, &resp); err != nil {
		return nil, l.fail(err)
	}
	if resp.ID() == "" {
		return nil, fmt.Errorf("controller returned no annotation ID: %w", model.ErrNotValid)
	}

	for k, v := range body {
		if !resp.Has(k) {
			resp[k] = v
		}
	}
	a := l.importAnnotationLocked(resp)
	l.logger.Debugf("Created %s annotation %s", typ, a.id)
	return a, nil
}

// --- Remove operations ---

// RemoveNode deletes a node on the controller and drops it, its interfaces
// and their links from the local mirror.
func (l *Lab) RemoveNode(ctx context.Context, n *Node) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if n.stale {
		return gone("node", n.id)
	}
	if err := l.api.Delete(ctx, n.url("")); err != nil {
		return n.fail(err)
	}
	l.removeNodeLocalLocked(n.id)
	l.logger.Infof("Removed node %s", n.id)
	return nil
}

// RemoveInterface deletes an interface on the controller and drops it and
// its link from the local mirror.
func (l *Lab) RemoveInterface(ctx context.Context, i *Interface) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if i.stale {
		return gone("interface", i.id)
	}
	if err := l.api.Delete(ctx, i.url("")); err != nil {
		return i.fail(err)
	}
	l.removeInterfaceLocalLocked(i.id)
	l.logger.Infof("Removed interface %s", i.id)
	return nil
}

// RemoveLink deletes a link on the controller and drops it from the local
// mirror.
func (l *Lab) RemoveLink(ctx context.Context, lnk *Link) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if lnk.stale {
		return gone("link", lnk.id)
	}
	if err := l.api.Delete(ctx, lnk.url("")); err != nil {
		return lnk.fail(err)
	}
	l.removeLinkLocalLocked(lnk.id)
	l.logger.Infof("Removed link %s", lnk.id)
	return nil
}

// --- Local mutation ---

// importNodeLocked upserts a node from snapshot fields. Existing nodes are
// updated in place so references held by callers stay valid.
func (l *Lab) importNodeLocked(fields model.ElementFields, excludeConfigurations bool) *Node {
	id := fields.ID()
	n, ok := l.nodes.get(id)
	if !ok {
		n = newNode(l, id)
		l.nodes.set(id, n)
	}
	n.applyUpdateLocked(fields, excludeConfigurations)
	return n
}

// importInterfaceLocked upserts an interface from snapshot fields.
func (l *Lab) importInterfaceLocked(fields model.ElementFields) *Interface {
	id := fields.ID()
	i, ok := l.interfaces.get(id)
	if !ok {
		i = newInterface(l, id, fields.Str("node"))
		l.interfaces.set(id, i)
	}
	i.applyUpdateLocked(fields)
	return i
}

// importLinkLocked upserts a link from snapshot fields.
func (l *Lab) importLinkLocked(fields model.ElementFields) *Link {
	id := fields.ID()
	lnk, ok := l.links.get(id)
	if !ok {
		lnk = newLink(l, id, fields.Str("interface_a"), fields.Str("interface_b"))
		l.links.set(id, lnk)
	}
	lnk.applyUpdateLocked(fields)
	return lnk
}

// importAnnotationLocked upserts an annotation from snapshot fields.
func (l *Lab) importAnnotationLocked(fields model.ElementFields) *Annotation {
	id := fields.ID()
	a, ok := l.annotations.get(id)
	if !ok {
		a = newAnnotation(l, id, fields.Str("type"))
		l.annotations.set(id, a)
	}
	a.applyUpdateLocked(fields)
	return a
}

// importSmartAnnotationLocked upserts a smart annotation from snapshot
// fields.
func (l *Lab) importSmartAnnotationLocked(fields model.ElementFields) *SmartAnnotation {
	id := fields.ID()
	sa, ok := l.smartAnnotations.get(id)
	if !ok {
		sa = newSmartAnnotation(l, id, fields.Str("tag"))
		l.smartAnnotations.set(id, sa)
	}
	sa.applyUpdateLocked(fields)
	return sa
}

// removeNodeLocalLocked drops a node and cascades to its interfaces and
// their links. Unknown IDs are a no-op.
func (l *Lab) removeNodeLocalLocked(id string) {
	n, ok := l.nodes.get(id)
	if !ok {
		return
	}
	n.stale = true
	l.nodes.remove(id)
	for _, i := range l.interfaces.values() {
		if i.nodeID == id {
			l.removeInterfaceLocalLocked(i.id)
		}
	}
}

// removeInterfaceLocalLocked drops an interface and cascades to links using
// it. Unknown IDs are a no-op.
func (l *Lab) removeInterfaceLocalLocked(id string) {
	i, ok := l.interfaces.get(id)
	if !ok {
		return
	}
	i.stale = true
	l.interfaces.remove(id)
	for _, lnk := range l.links.values() {
		if lnk.ifaceAID == id || lnk.ifaceBID == id {
			l.removeLinkLocalLocked(lnk.id)
		}
	}
}

// removeLinkLocalLocked drops a link. Unknown IDs are a no-op.
func (l *Lab) removeLinkLocalLocked(id string) {
	lnk, ok := l.links.get(id)
	if !ok {
		return
	}
	lnk.stale = true
	l.links.remove(id)
}

// removeAnnotationLocalLocked drops an annotation. Unknown IDs are a no-op.
func (l *Lab) removeAnnotationLocalLocked(id string) {
	a, ok := l.annotations.get(id)
	if !ok {
		return
	}
	a.stale = true
	l.annotations.remove(id)
}

// removeSmartAnnotationLocalLocked drops a smart annotation. Unknown IDs are
// a no-op.
func (l *Lab) removeSmartAnnotationLocalLocked(id string) {
	sa, ok := l.smartAnnotations.get(id)
	if !ok {
		return
	}
	sa.stale = true
	l.smartAnnotations.remove(id)
}

// decodeElementList accepts either a single element object or a list of
// them.
func decodeElementList(raw json.RawMessage) ([]model.ElementFields, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []model.ElementFields
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single model.ElementFields
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []model.ElementFields{single}, nil
}
