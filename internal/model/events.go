package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event types delivered over the event channel.
const (
	EventTypeLab         = "lab_event"
	EventTypeLabElement  = "lab_element_event"
	EventTypeStateChange = "state_change"
	EventTypeLabStats    = "lab_stats"
	EventTypeSystemStats = "system_stats"
)

// Event subtypes.
const (
	EventCreated  = "created"
	EventModified = "modified"
	EventDeleted  = "deleted"
	EventState    = "state"
)

// Event is a single notification pushed by the controller. Type, Subtype and
// ElementType are normalized to lower case; SubtypeRaw keeps the original
// casing because state-change events carry the state name there.
type Event struct {
	Type        string
	Subtype     string
	SubtypeRaw  string
	ElementType string
	LabID       string
	ElementID   string
	Data        ElementFields
}

type eventWire struct {
	EventType   string        `json:"event_type"`
	Event       string        `json:"event"`
	ElementType string        `json:"element_type"`
	LabID       string        `json:"lab_id"`
	ElementID   string        `json:"element_id"`
	Data        ElementFields `json:"data"`
}

// ParseEvent decodes a raw event message.
func ParseEvent(raw []byte) (Event, error) {
	var w eventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}

	return Event{
		Type:        strings.ToLower(w.EventType),
		Subtype:     strings.ToLower(w.Event),
		SubtypeRaw:  w.Event,
		ElementType: strings.ToLower(w.ElementType),
		LabID:       w.LabID,
		ElementID:   w.ElementID,
		Data:        w.Data,
	}, nil
}
