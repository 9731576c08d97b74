package topology

import (
	"context"
	"fmt"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

// smartAnnotationKeys are the updatable properties of a smart annotation.
var smartAnnotationKeys = map[string]struct{}{
	"is_on":          {},
	"padding":        {},
	"tag_offset_x":   {},
	"tag_offset_y":   {},
	"tag_size":       {},
	"group_distance": {},
	"thickness":      {},
	"border_style":   {},
	"border_color":   {},
	"fill_color":     {},
	"z_index":        {},
}

func smartAnnotationDefaults() model.ElementFields {
	return model.ElementFields{
		"is_on":          true,
		"padding":        35,
		"tag_offset_x":   0,
		"tag_offset_y":   0,
		"tag_size":       14,
		"group_distance": 400,
		"thickness":      1,
		"border_style":   "",
		"border_color":   "#00000080",
		"z_index":        1,
	}
}

// SmartAnnotation is the local mirror of a tag-driven annotation. The
// controller materializes one per distinct node tag; clients never create
// them directly, only restyle or remove them.
type SmartAnnotation struct {
	lab   *Lab
	id    string
	tag   string
	stale bool

	props model.ElementFields
}

func newSmartAnnotation(lab *Lab, id, tag string) *SmartAnnotation {
	return &SmartAnnotation{lab: lab, id: id, tag: tag, props: smartAnnotationDefaults()}
}

// ID returns the smart annotation ID. Always available, even when stale.
func (s *SmartAnnotation) ID() string { return s.id }

// Tag returns the node tag this smart annotation groups. The tag is fixed at
// materialization.
func (s *SmartAnnotation) Tag() string { return s.tag }

func (s *SmartAnnotation) url(suffix string) string {
	return s.lab.url("/smart_annotations/" + s.id + suffix)
}

func (s *SmartAnnotation) fail(err error) error {
	if transport.IsNotFound(err) {
		s.stale = true
		return notFound("smart annotation", s.id)
	}
	return err
}

// Properties returns a copy of the smart annotation's current property
// values.
func (s *SmartAnnotation) Properties(ctx context.Context) (model.ElementFields, error) {
	defer s.lab.guard.Lock()()
	if s.stale {
		return nil, gone("smart annotation", s.id)
	}
	if err := s.lab.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return s.props.Clone(), nil
}

// Update pushes property changes to the controller and applies them locally.
func (s *SmartAnnotation) Update(ctx context.Context, fields model.ElementFields) error {
	defer s.lab.guard.Lock()()
	if s.stale {
		return gone("smart annotation", s.id)
	}

	for key := range fields {
		if key == "tag" {
			return fmt.Errorf("can't update smart annotation tag: %w", model.ErrNotValid)
		}
		if _, ok := smartAnnotationKeys[key]; !ok {
			return fmt.Errorf("invalid smart annotation property %q: %w", key, model.ErrNotValid)
		}
	}

	if err := s.lab.api.Patch(ctx, s.url(""), fields, nil); err != nil {
		return s.fail(err)
	}
	s.applyUpdateLocked(fields)
	return nil
}

// Remove deletes the smart annotation on the controller, which also clears
// its tag from all nodes, and drops it from the local mirror.
func (s *SmartAnnotation) Remove(ctx context.Context) error {
	defer s.lab.guard.Lock()()
	if s.stale {
		return gone("smart annotation", s.id)
	}
	if err := s.lab.api.Delete(ctx, s.url("")); err != nil {
		return s.fail(err)
	}
	s.lab.removeSmartAnnotationLocalLocked(s.id)
	return nil
}

// applyUpdateLocked merges property values into the mirror without
// validation. Snapshot data is trusted as-is.
func (s *SmartAnnotation) applyUpdateLocked(fields model.ElementFields) {
	for key, value := range fields {
		switch key {
		case "id", "lab_id", "tag":
		default:
			s.props[key] = value
		}
	}
}

func (s *SmartAnnotation) topologyFieldsLocked() model.ElementFields {
	fields := model.ElementFields{
		"id":  s.id,
		"tag": s.tag,
	}
	for k, v := range s.props {
		fields[k] = v
	}
	return fields
}
