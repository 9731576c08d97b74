package topology

import (
	"github.com/simlab-dev/simlab/internal/model"
)

// ApplyEvent folds one push event into the local mirror. Events are advisory
// refinements of state the next sync would deliver anyway, so events that
// reference unknown elements are discarded rather than treated as errors.
func (l *Lab) ApplyEvent(ev model.Event) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}

	switch ev.Type {
	case model.EventTypeLab:
		l.applyLabEventLocked(ev)
	case model.EventTypeLabElement:
		l.applyElementEventLocked(ev)
	case model.EventTypeStateChange:
		l.applyStateChangeLocked(ev)
	default:
		l.logger.Debugf("Discarding event type %q", ev.Type)
	}
	return nil
}

func (l *Lab) applyLabEventLocked(ev model.Event) {
	switch ev.Subtype {
	case model.EventCreated:
		// The mirror exists, the creation already happened.
	case model.EventModified:
		l.applyLabFieldsLocked(ev.Data)
	case model.EventDeleted:
		l.logger.Warningf("Lab %s was deleted on the controller", l.id)
		l.markStaleLocked()
	case model.EventState:
		if ev.Data.Has("state") {
			l.state = ev.Data.Str("state")
		}
	default:
		l.logger.Debugf("Discarding lab event subtype %q", ev.Subtype)
	}
}

// applyLabFieldsLocked merges a partial lab snapshot from an event payload.
func (l *Lab) applyLabFieldsLocked(fields model.ElementFields) {
	for key := range fields {
		switch key {
		case "id", "lab_id":
		case "title":
			l.title = fields.Str(key)
		case "description":
			l.description = fields.Str(key)
		case "notes":
			l.notes = fields.Str(key)
		case "owner":
			l.owner = fields.Str(key)
		case "state":
			l.state = fields.Str(key)
		case "created":
			l.created = fields.Str(key)
		default:
			l.logger.Debugf("Ignoring unknown lab field %q", key)
		}
	}
}

func (l *Lab) applyElementEventLocked(ev model.Event) {
	switch ev.ElementType {
	case model.ElementTypeNode, model.ElementTypeInterface, model.ElementTypeLink:
	default:
		l.logger.Warningf("Discarding event for unhandled element type %q", ev.ElementType)
		return
	}

	switch ev.Subtype {
	case model.EventCreated:
		l.applyElementCreatedLocked(ev)
	case model.EventModified:
		l.applyElementModifiedLocked(ev)
	case model.EventDeleted:
		l.applyElementDeletedLocked(ev)
	default:
		l.logger.Debugf("Discarding element event subtype %q", ev.Subtype)
	}
}

// applyElementCreatedLocked registers a new element announced by the
// controller. A creation for an ID that is already mirrored is the echo of
// this client's own create call and folds into an update.
func (l *Lab) applyElementCreatedLocked(ev model.Event) {
	data := ev.Data
	if data == nil {
		data = model.ElementFields{}
	}
	if !data.Has("id") && ev.ElementID != "" {
		data["id"] = ev.ElementID
	}
	id := data.ID()
	if id == "" {
		l.logger.Debugf("Discarding %s created event without an ID", ev.ElementType)
		return
	}

	switch ev.ElementType {
	case model.ElementTypeNode:
		if l.nodes.has(id) {
			l.logger.Debugf("Created event for known node %s, applying as update", id)
		} else {
			l.logger.Infof("Added node %s", id)
		}
		l.importNodeLocked(data, false)
	case model.ElementTypeInterface:
		if l.interfaces.has(id) {
			l.logger.Debugf("Created event for known interface %s, applying as update", id)
		} else {
			l.logger.Infof("Added interface %s", id)
		}
		l.importInterfaceLocked(data)
	case model.ElementTypeLink:
		if l.links.has(id) {
			l.logger.Debugf("Created event for known link %s, applying as update", id)
		} else {
			l.logger.Infof("Added link %s", id)
		}
		l.importLinkLocked(data)
	}
}

// applyElementModifiedLocked updates a mirrored element from an event
// payload. Only nodes carry mutable modeled fields; interface and link
// modifications concern fields the mirror does not track.
func (l *Lab) applyElementModifiedLocked(ev model.Event) {
	switch ev.ElementType {
	case model.ElementTypeNode:
		n, ok := l.nodes.get(ev.ElementID)
		if !ok {
			l.logger.Debugf("Discarding modified event for unknown node %s", ev.ElementID)
			return
		}
		n.applyUpdateLocked(ev.Data, false)
	case model.ElementTypeInterface, model.ElementTypeLink:
		l.logger.Debugf("Discarding %s modified event for %s", ev.ElementType, ev.ElementID)
	}
}

// applyElementDeletedLocked drops a mirrored element. Deletions of elements
// that were never mirrored are discarded silently.
func (l *Lab) applyElementDeletedLocked(ev model.Event) {
	switch ev.ElementType {
	case model.ElementTypeNode:
		if !l.nodes.has(ev.ElementID) {
			l.logger.Debugf("Discarding deleted event for unknown node %s", ev.ElementID)
			return
		}
		l.removeNodeLocalLocked(ev.ElementID)
		l.logger.Warningf("Removed node %s", ev.ElementID)
	case model.ElementTypeInterface:
		if !l.interfaces.has(ev.ElementID) {
			l.logger.Debugf("Discarding deleted event for unknown interface %s", ev.ElementID)
			return
		}
		l.removeInterfaceLocalLocked(ev.ElementID)
		l.logger.Warningf("Removed interface %s", ev.ElementID)
	case model.ElementTypeLink:
		if !l.links.has(ev.ElementID) {
			l.logger.Debugf("Discarding deleted event for unknown link %s", ev.ElementID)
			return
		}
		l.removeLinkLocalLocked(ev.ElementID)
		l.logger.Warningf("Removed link %s", ev.ElementID)
	}
}

// applyStateChangeLocked stores a pushed runtime state on the mirrored
// element. Only the cached state moves, sync bookkeeping is untouched.
func (l *Lab) applyStateChangeLocked(ev model.Event) {
	state := ev.SubtypeRaw
	switch ev.ElementType {
	case model.ElementTypeNode:
		if n, ok := l.nodes.get(ev.ElementID); ok {
			n.state = state
			return
		}
	case model.ElementTypeInterface:
		if i, ok := l.interfaces.get(ev.ElementID); ok {
			i.state = state
			return
		}
	case model.ElementTypeLink:
		if lnk, ok := l.links.get(ev.ElementID); ok {
			lnk.state = state
			return
		}
	default:
		l.logger.Warningf("Discarding state change for unhandled element type %q", ev.ElementType)
		return
	}
	l.logger.Debugf("Discarding state change for unknown %s %s", ev.ElementType, ev.ElementID)
}
