package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/model"
)

func TestParseEvent(t *testing.T) {
	tests := map[string]struct {
		raw      string
		expEvent model.Event
		expErr   bool
	}{
		"An element event should decode with normalized casing": {
			raw: `{
				"event_type": "Lab_Element_Event",
				"event": "Modified",
				"element_type": "Node",
				"lab_id": "lab-1",
				"element_id": "n1",
				"data": {"id": "n1", "x": 10}
			}`,
			expEvent: model.Event{
				Type:        model.EventTypeLabElement,
				Subtype:     model.EventModified,
				SubtypeRaw:  "Modified",
				ElementType: model.ElementTypeNode,
				LabID:       "lab-1",
				ElementID:   "n1",
				Data:        model.ElementFields{"id": "n1", "x": float64(10)},
			},
		},

		"A state change event should keep the state name casing in the raw subtype": {
			raw: `{
				"event_type": "state_change",
				"event": "BOOTED",
				"element_type": "node",
				"lab_id": "lab-1",
				"element_id": "n1"
			}`,
			expEvent: model.Event{
				Type:        model.EventTypeStateChange,
				Subtype:     "booted",
				SubtypeRaw:  "BOOTED",
				ElementType: model.ElementTypeNode,
				LabID:       "lab-1",
				ElementID:   "n1",
			},
		},

		"A lab event should decode without element fields": {
			raw: `{"event_type": "lab_event", "event": "deleted", "lab_id": "lab-1"}`,
			expEvent: model.Event{
				Type:       model.EventTypeLab,
				Subtype:    model.EventDeleted,
				SubtypeRaw: "deleted",
				LabID:      "lab-1",
			},
		},

		"Garbage should fail": {
			raw:    `not json`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			event, err := model.ParseEvent([]byte(test.raw))

			if test.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expEvent, event)
		})
	}
}
