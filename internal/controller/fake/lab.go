package fake

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/simlab-dev/simlab/internal/model"
)

// lab is one stored lab: its properties, elements and link conditions.
type lab struct {
	id    string
	props model.LabProperties

	nodes       *table
	ifaces      *table
	links       *table
	annotations *table
	smartAnnos  *table
	conditions  map[string]*model.LinkCondition
}

func (l *lab) document() model.ElementFields {
	return model.ElementFields{
		"id":          l.id,
		"title":       l.props.Title,
		"description": l.props.Description,
		"notes":       l.props.Notes,
		"owner":       l.props.Owner,
		"state":       l.props.State,
		"created":     l.props.Created,
		"node_count":  len(l.nodes.items),
		"link_count":  len(l.links.items),
	}
}

func (c *Controller) routeLab(l *lab, method string, rest []string, query url.Values, body interface{}) (interface{}, error) {
	if len(rest) == 0 {
		switch method {
		case http.MethodGet:
			return l.document(), nil
		case http.MethodPatch:
			return nil, c.patchLab(l, body)
		case http.MethodDelete:
			c.removeLab(l)
			return nil, nil
		}
		return nil, methodNotAllowed(method, "labs/"+l.id)
	}

	switch rest[0] {
	case "start", "stop", "wipe":
		if len(rest) == 1 && method == http.MethodPut {
			c.setLabState(l, rest[0])
			return nil, nil
		}
	case "check_if_converged":
		if len(rest) == 1 && method == http.MethodGet {
			return true, nil
		}
	case "topology":
		if len(rest) == 1 && method == http.MethodGet {
			return l.topology(query.Get("exclude_configurations") == "true"), nil
		}
	case "lab_element_state":
		if len(rest) == 1 && method == http.MethodGet {
			return l.elementStates(), nil
		}
	case "simulation_stats":
		if len(rest) == 1 && method == http.MethodGet {
			return l.simulationStats(), nil
		}
	case "layer3_addresses":
		if len(rest) == 1 && method == http.MethodGet {
			return l.layer3Addresses(), nil
		}
	case "nodes":
		return c.routeNodes(l, method, rest[1:], query, body)
	case "interfaces":
		return c.routeInterfaces(l, method, rest[1:], body)
	case "links":
		return c.routeLinks(l, method, rest[1:], body)
	case "annotations":
		return c.routeAnnotations(l, method, rest[1:], body)
	case "smart_annotations":
		return c.routeSmartAnnotations(l, method, rest[1:], body)
	}

	return nil, notFoundErr("no such lab endpoint: %s", rest[0])
}

func (c *Controller) patchLab(l *lab, body interface{}) error {
	var fields model.ElementFields
	if err := reencode(body, &fields); err != nil {
		return badRequest("unparsable lab update: %s", err)
	}

	if fields.Has("title") {
		l.props.Title = fields.Str("title")
	}
	if fields.Has("description") {
		l.props.Description = fields.Str("description")
	}
	if fields.Has("notes") {
		l.props.Notes = fields.Str("notes")
	}
	return nil
}

// setLabState drives the whole lab through a lifecycle operation. The fake
// is instant: started nodes go straight to booted.
func (c *Controller) setLabState(l *lab, op string) {
	switch op {
	case "start":
		l.props.State = model.StateStarted
		l.eachElement(func(e *element) { e.state = model.StateBooted })
	case "stop":
		l.props.State = model.StateStopped
		l.eachElement(func(e *element) { e.state = model.StateStopped })
	case "wipe":
		l.props.State = model.StateDefined
		l.eachElement(func(e *element) { e.state = model.StateDefined })
	}
	c.logger.Infof("Lab %s %s", l.id, op)
}

// eachElement visits nodes, interfaces and links. Annotations carry no state.
func (l *lab) eachElement(fn func(*element)) {
	for _, t := range []*table{l.nodes, l.ifaces, l.links} {
		for _, id := range t.order {
			fn(t.items[id])
		}
	}
}

func (l *lab) topology(excludeConfigurations bool) model.Topology {
	topo := model.Topology{Lab: l.props}
	for _, id := range l.nodes.order {
		fields := l.nodes.items[id].fields.Clone()
		if excludeConfigurations {
			delete(fields, "configuration")
		}
		topo.Nodes = append(topo.Nodes, fields)
	}
	for _, id := range l.ifaces.order {
		topo.Interfaces = append(topo.Interfaces, l.ifaces.items[id].fields.Clone())
	}
	for _, id := range l.links.order {
		topo.Links = append(topo.Links, l.links.items[id].fields.Clone())
	}
	for _, id := range l.annotations.order {
		topo.Annotations = append(topo.Annotations, l.annotations.items[id].fields.Clone())
	}
	for _, id := range l.smartAnnos.order {
		topo.SmartAnnotations = append(topo.SmartAnnotations, l.smartAnnos.items[id].fields.Clone())
	}
	return topo
}

func (l *lab) elementStates() model.ElementStates {
	states := model.ElementStates{
		Lab:        l.props.State,
		Nodes:      map[string]string{},
		Interfaces: map[string]string{},
		Links:      map[string]string{},
	}
	for id, e := range l.nodes.items {
		states.Nodes[id] = e.state
	}
	for id, e := range l.ifaces.items {
		states.Interfaces[id] = e.state
	}
	for id, e := range l.links.items {
		states.Links[id] = e.state
	}
	return states
}

func (l *lab) simulationStats() model.SimulationStats {
	stats := model.SimulationStats{
		Nodes: map[string]model.NodeStatistics{},
		Links: map[string]model.LinkStatistics{},
	}
	for id, e := range l.nodes.items {
		if !model.IsActiveState(e.state) {
			continue
		}
		stats.Nodes[id] = model.NodeStatistics{CPUUsage: 2.5, DiskRead: 4 << 20, DiskWrite: 1 << 20}
	}
	for id, e := range l.links.items {
		if !model.IsActiveState(e.state) {
			continue
		}
		stats.Links[id] = model.LinkStatistics{ReadBytes: 1 << 16, ReadPackets: 256, WriteBytes: 1 << 14, WritePackets: 64}
	}
	return stats
}

// layer3Addresses synthesizes discovered addresses for active nodes, one
// deterministic IPv4 address per interface.
func (l *lab) layer3Addresses() model.Layer3Addresses {
	addrs := model.Layer3Addresses{}
	for i, nodeID := range l.nodes.order {
		node := l.nodes.items[nodeID]
		if !model.IsActiveState(node.state) {
			continue
		}

		snooped := map[string]model.Layer3Snooped{}
		slot := 0
		for _, ifaceID := range l.ifaces.order {
			iface := l.ifaces.items[ifaceID]
			if iface.fields.Str("node") != nodeID {
				continue
			}
			mac := iface.fields.Str("mac_address")
			if mac == "" {
				continue
			}
			snooped[mac] = model.Layer3Snooped{
				ID:    ifaceID,
				Label: iface.fields.Str("label"),
				IPv4:  []string{fmt.Sprintf("10.0.%d.%d", i, slot+1)},
				IPv6:  []string{},
			}
			slot++
		}
		addrs[nodeID] = model.NodeLayer3{
			Name:       node.fields.Str("label"),
			Interfaces: snooped,
		}
	}
	return addrs
}

// --- Nodes ---

func (c *Controller) routeNodes(l *lab, method string, rest []string, query url.Values, body interface{}) (interface{}, error) {
	if len(rest) == 0 {
		switch method {
		case http.MethodGet:
			return l.nodeList(query.Get("operational") == "true"), nil
		case http.MethodPost:
			return c.createNode(l, body)
		}
		return nil, methodNotAllowed(method, "nodes")
	}

	node, ok := l.nodes.get(rest[0])
	if !ok {
		return nil, notFoundErr("node %s not found", rest[0])
	}

	if len(rest) == 1 {
		switch method {
		case http.MethodGet:
			return node.fields.Clone(), nil
		case http.MethodPatch:
			return nil, c.patchNode(l, node, body)
		case http.MethodDelete:
			c.removeNode(l, rest[0])
			return nil, nil
		}
		return nil, methodNotAllowed(method, "nodes/"+rest[0])
	}

	switch {
	case len(rest) == 3 && rest[1] == "state" && method == http.MethodPut:
		return nil, c.setNodeState(l, rest[0], node, rest[2])
	case len(rest) == 2 && rest[1] == "wipe_disks" && method == http.MethodPut:
		node.state = model.StateDefined
		l.eachNodeInterface(rest[0], func(e *element) { e.state = model.StateDefined })
		return nil, nil
	case len(rest) == 2 && rest[1] == "check_if_converged" && method == http.MethodGet:
		return true, nil
	}

	return nil, notFoundErr("no such node endpoint: %s", rest[1])
}

func (l *lab) nodeList(operational bool) []model.ElementFields {
	out := make([]model.ElementFields, 0, len(l.nodes.order))
	for _, id := range l.nodes.order {
		node := l.nodes.items[id]
		fields := node.fields.Clone()
		if operational {
			fields["locked_compute_id"] = ""
			op := map[string]interface{}{"compute_id": "", "resource_pool": ""}
			if model.IsActiveState(node.state) {
				op["compute_id"] = "fake-compute-0"
			}
			fields["operational"] = op
		}
		out = append(out, fields)
	}
	return out
}

func (c *Controller) createNode(l *lab, body interface{}) (interface{}, error) {
	var fields model.ElementFields
	if err := reencode(body, &fields); err != nil {
		return nil, badRequest("unparsable node request: %s", err)
	}
	if fields.Str("label") == "" || fields.Str("node_definition") == "" {
		return nil, badRequest("node label and node_definition are required")
	}

	fields = fields.Clone()
	fields["id"] = newID()
	if !fields.Has("tags") {
		fields["tags"] = []interface{}{}
	}

	l.nodes.put(fields.ID(), &element{fields: fields, state: model.StateDefined})
	c.logger.Infof("Created node %s (%s)", fields.ID(), fields.Str("label"))
	return fields.Clone(), nil
}

func (c *Controller) patchNode(l *lab, node *element, body interface{}) error {
	var fields model.ElementFields
	if err := reencode(body, &fields); err != nil {
		return badRequest("unparsable node update: %s", err)
	}

	for key, value := range fields {
		if key == "id" {
			continue
		}
		node.fields[key] = value
	}
	if fields.Has("tags") {
		c.reconcileSmartAnnotations(l)
	}
	return nil
}

func (c *Controller) removeNode(l *lab, id string) {
	for _, ifaceID := range l.ifaces.ids() {
		if l.ifaces.items[ifaceID].fields.Str("node") == id {
			c.removeInterface(l, ifaceID)
		}
	}
	l.nodes.delete(id)
	c.reconcileSmartAnnotations(l)
	c.logger.Infof("Removed node %s", id)
}

func (c *Controller) setNodeState(l *lab, id string, node *element, op string) error {
	switch op {
	case "start":
		node.state = model.StateBooted
		l.eachNodeInterface(id, func(e *element) { e.state = model.StateStarted })
		l.refreshLinkStates()
	case "stop":
		node.state = model.StateStopped
		l.eachNodeInterface(id, func(e *element) { e.state = model.StateStopped })
		l.refreshLinkStates()
	default:
		return notFoundErr("no such node state operation: %s", op)
	}
	return nil
}

func (l *lab) eachNodeInterface(nodeID string, fn func(*element)) {
	for _, id := range l.ifaces.order {
		iface := l.ifaces.items[id]
		if iface.fields.Str("node") == nodeID {
			fn(iface)
		}
	}
}

// refreshLinkStates derives link states from their endpoints: a link runs
// only while both of its interfaces do.
func (l *lab) refreshLinkStates() {
	for _, id := range l.links.order {
		link := l.links.items[id]
		a, okA := l.ifaces.get(link.fields.Str("interface_a"))
		b, okB := l.ifaces.get(link.fields.Str("interface_b"))
		if okA && okB && model.IsActiveState(a.state) && model.IsActiveState(b.state) {
			link.state = model.StateStarted
		} else {
			link.state = model.StateStopped
		}
	}
}

// --- Interfaces ---

func (c *Controller) routeInterfaces(l *lab, method string, rest []string, body interface{}) (interface{}, error) {
	if len(rest) == 0 {
		if method == http.MethodPost {
			return c.createInterfaces(l, body)
		}
		return nil, methodNotAllowed(method, "interfaces")
	}

	iface, ok := l.ifaces.get(rest[0])
	if !ok {
		return nil, notFoundErr("interface %s not found", rest[0])
	}

	switch {
	case len(rest) == 1 && method == http.MethodGet:
		return iface.fields.Clone(), nil
	case len(rest) == 1 && method == http.MethodDelete:
		c.removeInterface(l, rest[0])
		return nil, nil
	case len(rest) == 3 && rest[1] == "state" && method == http.MethodPut:
		switch rest[2] {
		case "start":
			iface.state = model.StateStarted
		case "stop":
			iface.state = model.StateStopped
		default:
			return nil, notFoundErr("no such interface state operation: %s", rest[2])
		}
		l.refreshLinkStates()
		return nil, nil
	}

	return nil, notFoundErr("no such interface endpoint: %s", rest[0])
}

// createInterfaces allocates an interface on a node. Requesting a slot fills
// every free slot up to it, the way the real controller does, and the
// response lists everything created.
func (c *Controller) createInterfaces(l *lab, body interface{}) (interface{}, error) {
	var req struct {
		Node string `json:"node"`
		Slot *int   `json:"slot"`
	}
	if err := reencode(body, &req); err != nil {
		return nil, badRequest("unparsable interface request: %s", err)
	}
	if _, ok := l.nodes.get(req.Node); !ok {
		return nil, notFoundErr("node %s not found", req.Node)
	}

	taken := map[int]string{}
	next := 0
	l.eachNodeInterface(req.Node, func(e *element) {
		slot := e.fields.Int("slot")
		taken[slot] = e.fields.ID()
		if slot >= next {
			next = slot + 1
		}
	})

	want := next
	if req.Slot != nil {
		if *req.Slot < 0 {
			return nil, badRequest("slot must not be negative")
		}
		want = *req.Slot
	}

	if id, ok := taken[want]; ok {
		existing, _ := l.ifaces.get(id)
		return []model.ElementFields{existing.fields.Clone()}, nil
	}

	var created []model.ElementFields
	for slot := 0; slot <= want; slot++ {
		if _, ok := taken[slot]; ok {
			continue
		}
		fields := model.ElementFields{
			"id":          newID(),
			"node":        req.Node,
			"label":       "eth" + strconv.Itoa(slot),
			"slot":        slot,
			"type":        "physical",
			"mac_address": c.nextMAC(),
		}
		l.ifaces.put(fields.ID(), &element{fields: fields, state: model.StateDefined})
		created = append(created, fields.Clone())
	}

	c.logger.Infof("Created %d interface(s) on node %s", len(created), req.Node)
	return created, nil
}

func (c *Controller) nextMAC() string {
	c.macCounter++
	n := c.macCounter
	return fmt.Sprintf("52:54:00:%02x:%02x:%02x", byte(n>>16), byte(n>>8), byte(n))
}

func (c *Controller) removeInterface(l *lab, id string) {
	for _, linkID := range l.links.ids() {
		link := l.links.items[linkID]
		if link.fields.Str("interface_a") == id || link.fields.Str("interface_b") == id {
			c.removeLink(l, linkID)
		}
	}
	l.ifaces.delete(id)
	c.logger.Infof("Removed interface %s", id)
}

// --- Links ---

func (c *Controller) routeLinks(l *lab, method string, rest []string, body interface{}) (interface{}, error) {
	if len(rest) == 0 {
		if method == http.MethodPost {
			return c.createLink(l, body)
		}
		return nil, methodNotAllowed(method, "links")
	}

	link, ok := l.links.get(rest[0])
	if !ok {
		return nil, notFoundErr("link %s not found", rest[0])
	}

	switch {
	case len(rest) == 1 && method == http.MethodGet:
		return link.fields.Clone(), nil
	case len(rest) == 1 && method == http.MethodDelete:
		c.removeLink(l, rest[0])
		return nil, nil
	case len(rest) == 3 && rest[1] == "state" && method == http.MethodPut:
		switch rest[2] {
		case "start":
			link.state = model.StateStarted
		case "stop":
			link.state = model.StateStopped
		default:
			return nil, notFoundErr("no such link state operation: %s", rest[2])
		}
		return nil, nil
	case len(rest) == 2 && rest[1] == "check_if_converged" && method == http.MethodGet:
		return true, nil
	case len(rest) == 2 && rest[1] == "condition":
		return c.routeLinkCondition(l, method, rest[0], body)
	}

	return nil, notFoundErr("no such link endpoint: %s", rest[0])
}

func (c *Controller) createLink(l *lab, body interface{}) (interface{}, error) {
	var req struct {
		InterfaceA string `json:"interface_a"`
		InterfaceB string `json:"interface_b"`
	}
	if err := reencode(body, &req); err != nil {
		return nil, badRequest("unparsable link request: %s", err)
	}

	a, ok := l.ifaces.get(req.InterfaceA)
	if !ok {
		return nil, notFoundErr("interface %s not found", req.InterfaceA)
	}
	b, ok := l.ifaces.get(req.InterfaceB)
	if !ok {
		return nil, notFoundErr("interface %s not found", req.InterfaceB)
	}
	if a.fields.Str("node") == b.fields.Str("node") {
		return nil, badRequest("cannot link two interfaces on the same node")
	}
	for _, id := range l.links.order {
		link := l.links.items[id]
		for _, ifaceID := range []string{req.InterfaceA, req.InterfaceB} {
			if link.fields.Str("interface_a") == ifaceID || link.fields.Str("interface_b") == ifaceID {
				return nil, badRequest("interface %s is already connected", ifaceID)
			}
		}
	}

	fields := model.ElementFields{
		"id":          newID(),
		"interface_a": req.InterfaceA,
		"interface_b": req.InterfaceB,
		"label":       a.fields.Str("label") + "<->" + b.fields.Str("label"),
	}
	l.links.put(fields.ID(), &element{fields: fields, state: model.StateDefined})
	c.logger.Infof("Created link %s", fields.ID())
	return fields.Clone(), nil
}

func (c *Controller) removeLink(l *lab, id string) {
	l.links.delete(id)
	delete(l.conditions, id)
	c.logger.Infof("Removed link %s", id)
}

func (c *Controller) routeLinkCondition(l *lab, method, linkID string, body interface{}) (interface{}, error) {
	switch method {
	case http.MethodGet:
		return l.conditions[linkID], nil
	case http.MethodPatch:
		var cond model.LinkCondition
		if err := reencode(body, &cond); err != nil {
			return nil, badRequest("unparsable link condition: %s", err)
		}
		l.conditions[linkID] = &cond
		return nil, nil
	case http.MethodDelete:
		delete(l.conditions, linkID)
		return nil, nil
	}
	return nil, methodNotAllowed(method, "condition")
}

// --- Annotations ---

func (c *Controller) routeAnnotations(l *lab, method string, rest []string, body interface{}) (interface{}, error) {
	if len(rest) == 0 {
		if method == http.MethodPost {
			return c.createAnnotation(l, body)
		}
		return nil, methodNotAllowed(method, "annotations")
	}

	anno, ok := l.annotations.get(rest[0])
	if !ok {
		return nil, notFoundErr("annotation %s not found", rest[0])
	}

	switch method {
	case http.MethodGet:
		return anno.fields.Clone(), nil
	case http.MethodPatch:
		var fields model.ElementFields
		if err := reencode(body, &fields); err != nil {
			return nil, badRequest("unparsable annotation update: %s", err)
		}
		if fields.Has("type") && fields.Str("type") != anno.fields.Str("type") {
			return nil, badRequest("annotation type cannot change")
		}
		for key, value := range fields {
			if key == "id" {
				continue
			}
			anno.fields[key] = value
		}
		return nil, nil
	case http.MethodDelete:
		l.annotations.delete(rest[0])
		c.logger.Infof("Removed annotation %s", rest[0])
		return nil, nil
	}

	return nil, methodNotAllowed(method, "annotations/"+rest[0])
}

func (c *Controller) createAnnotation(l *lab, body interface{}) (interface{}, error) {
	var fields model.ElementFields
	if err := reencode(body, &fields); err != nil {
		return nil, badRequest("unparsable annotation request: %s", err)
	}
	switch fields.Str("type") {
	case model.AnnotationTypeRectangle, model.AnnotationTypeEllipse, model.AnnotationTypeLine, model.AnnotationTypeText:
	default:
		return nil, badRequest("unknown annotation type %q", fields.Str("type"))
	}

	fields = fields.Clone()
	fields["id"] = newID()
	l.annotations.put(fields.ID(), &element{fields: fields})
	c.logger.Infof("Created %s annotation %s", fields.Str("type"), fields.ID())
	return fields.Clone(), nil
}

// --- Smart annotations ---

// Smart annotations are never created directly. The controller materializes
// one per distinct node tag and drops it when the tag's last node goes.
func (c *Controller) reconcileSmartAnnotations(l *lab) {
	tags := map[string]bool{}
	for _, id := range l.nodes.order {
		for _, tag := range l.nodes.items[id].fields.StrSlice("tags") {
			tags[tag] = true
		}
	}

	known := map[string]bool{}
	for _, id := range l.smartAnnos.ids() {
		tag := l.smartAnnos.items[id].fields.Str("tag")
		if !tags[tag] {
			l.smartAnnos.delete(id)
			c.logger.Infof("Removed smart annotation %s (tag %q gone)", id, tag)
			continue
		}
		known[tag] = true
	}

	for _, id := range l.nodes.order {
		for _, tag := range l.nodes.items[id].fields.StrSlice("tags") {
			if known[tag] {
				continue
			}
			known[tag] = true
			fields := model.ElementFields{
				"id":             newID(),
				"tag":            tag,
				"is_on":          true,
				"padding":        35,
				"tag_size":       14,
				"group_distance": 400,
				"thickness":      1,
				"border_style":   "",
				"border_color":   "#00000080",
				"fill_color":     "",
				"z_index":        1,
			}
			l.smartAnnos.put(fields.ID(), &element{fields: fields})
			c.logger.Infof("Created smart annotation %s for tag %q", fields.ID(), tag)
		}
	}
}

func (c *Controller) routeSmartAnnotations(l *lab, method string, rest []string, body interface{}) (interface{}, error) {
	if len(rest) != 1 {
		return nil, notFoundErr("no such smart annotation endpoint")
	}

	anno, ok := l.smartAnnos.get(rest[0])
	if !ok {
		return nil, notFoundErr("smart annotation %s not found", rest[0])
	}

	switch method {
	case http.MethodGet:
		return anno.fields.Clone(), nil
	case http.MethodPatch:
		var fields model.ElementFields
		if err := reencode(body, &fields); err != nil {
			return nil, badRequest("unparsable smart annotation update: %s", err)
		}
		if fields.Has("tag") && fields.Str("tag") != anno.fields.Str("tag") {
			return nil, badRequest("smart annotation tag cannot change")
		}
		for key, value := range fields {
			if key == "id" {
				continue
			}
			anno.fields[key] = value
		}
		return nil, nil
	case http.MethodDelete:
		c.removeSmartAnnotation(l, rest[0], anno.fields.Str("tag"))
		return nil, nil
	}

	return nil, methodNotAllowed(method, "smart_annotations/"+rest[0])
}

// removeSmartAnnotation drops the annotation and clears its tag from every
// node, so the reconciler does not bring it straight back.
func (c *Controller) removeSmartAnnotation(l *lab, id, tag string) {
	for _, nodeID := range l.nodes.order {
		node := l.nodes.items[nodeID]
		tags := node.fields.StrSlice("tags")
		kept := make([]interface{}, 0, len(tags))
		for _, t := range tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		node.fields["tags"] = kept
	}
	l.smartAnnos.delete(id)
	c.logger.Infof("Removed smart annotation %s", id)
}
