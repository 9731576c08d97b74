package topology

import (
	"context"
	"fmt"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

const (
	colorGrey        = "#808080FF"
	colorWhite       = "#FFFFFFFF"
	colorTransparent = "#00000000"
)

// annotationKeys returns the set of updatable properties for an annotation
// variant.
func annotationKeys(typ string) (map[string]struct{}, error) {
	keys := map[string]struct{}{
		"border_color": {},
		"border_style": {},
		"color":        {},
		"thickness":    {},
		"x1":           {},
		"y1":           {},
		"z_index":      {},
	}
	switch typ {
	case model.AnnotationTypeRectangle:
		keys["x2"] = struct{}{}
		keys["y2"] = struct{}{}
		keys["border_radius"] = struct{}{}
	case model.AnnotationTypeEllipse:
		keys["x2"] = struct{}{}
		keys["y2"] = struct{}{}
	case model.AnnotationTypeLine:
		keys["x2"] = struct{}{}
		keys["y2"] = struct{}{}
		keys["line_start"] = struct{}{}
		keys["line_end"] = struct{}{}
	case model.AnnotationTypeText:
		keys["rotation"] = struct{}{}
		keys["text_bold"] = struct{}{}
		keys["text_content"] = struct{}{}
		keys["text_font"] = struct{}{}
		keys["text_italic"] = struct{}{}
		keys["text_size"] = struct{}{}
		keys["text_unit"] = struct{}{}
	default:
		return nil, fmt.Errorf("unknown annotation type %q: %w", typ, model.ErrNotValid)
	}
	return keys, nil
}

// annotationDefaults returns the property values a fresh annotation of the
// given variant starts from.
func annotationDefaults(typ string) model.ElementFields {
	defaults := model.ElementFields{
		"border_color": colorGrey,
		"border_style": "",
		"color":        colorWhite,
		"thickness":    1,
		"x1":           0,
		"y1":           0,
		"z_index":      0,
	}
	switch typ {
	case model.AnnotationTypeRectangle:
		defaults["x2"] = 100
		defaults["y2"] = 100
		defaults["border_radius"] = 0
	case model.AnnotationTypeEllipse:
		defaults["x2"] = 100
		defaults["y2"] = 100
	case model.AnnotationTypeLine:
		defaults["x2"] = 100
		defaults["y2"] = 100
	case model.AnnotationTypeText:
		defaults["border_color"] = colorTransparent
		defaults["color"] = colorGrey
		defaults["rotation"] = 0
		defaults["text_bold"] = false
		defaults["text_content"] = "text annotation"
		defaults["text_font"] = "monospace"
		defaults["text_italic"] = false
		defaults["text_size"] = 12
		defaults["text_unit"] = "pt"
	}
	return defaults
}

// Annotation is the local mirror of one free-form canvas annotation. The
// variant decides which properties exist; values live in a property map so
// partial server snapshots merge cleanly.
type Annotation struct {
	lab   *Lab
	id    string
	typ   string
	stale bool

	props model.ElementFields
}

func newAnnotation(lab *Lab, id, typ string) *Annotation {
	return &Annotation{lab: lab, id: id, typ: typ, props: annotationDefaults(typ)}
}

// ID returns the annotation ID. Always available, even on stale annotations.
func (a *Annotation) ID() string { return a.id }

// Type returns the annotation variant. The variant is fixed at creation.
func (a *Annotation) Type() string { return a.typ }

func (a *Annotation) url(suffix string) string {
	return a.lab.url("/annotations/" + a.id + suffix)
}

func (a *Annotation) fail(err error) error {
	if transport.IsNotFound(err) {
		a.stale = true
		return notFound("annotation", a.id)
	}
	return err
}

// Properties returns a copy of the annotation's current property values.
func (a *Annotation) Properties(ctx context.Context) (model.ElementFields, error) {
	defer a.lab.guard.Lock()()
	if a.stale {
		return nil, gone("annotation", a.id)
	}
	if err := a.lab.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return nil, err
	}
	return a.props.Clone(), nil
}

// Update pushes property changes to the controller and applies them locally.
// Properties must belong to the annotation's variant, and the variant itself
// cannot change.
func (a *Annotation) Update(ctx context.Context, fields model.ElementFields) error {
	defer a.lab.guard.Lock()()
	if a.stale {
		return gone("annotation", a.id)
	}

	keys, err := annotationKeys(a.typ)
	if err != nil {
		return err
	}
	for key := range fields {
		if key == "type" {
			return fmt.Errorf("can't update annotation type: %w", model.ErrNotValid)
		}
		if _, ok := keys[key]; !ok {
			return fmt.Errorf("invalid annotation property %q for type %q: %w", key, a.typ, model.ErrNotValid)
		}
	}

	if err := a.lab.api.Patch(ctx, a.url(""), fields, nil); err != nil {
		return a.fail(err)
	}
	a.applyUpdateLocked(fields)
	return nil
}

// Remove deletes the annotation on the controller and drops it from the
// local mirror.
func (a *Annotation) Remove(ctx context.Context) error {
	defer a.lab.guard.Lock()()
	if a.stale {
		return gone("annotation", a.id)
	}
	if err := a.lab.api.Delete(ctx, a.url("")); err != nil {
		return a.fail(err)
	}
	a.lab.removeAnnotationLocalLocked(a.id)
	return nil
}

// applyUpdateLocked merges property values into the mirror without variant
// validation. Snapshot data is trusted as-is.
func (a *Annotation) applyUpdateLocked(fields model.ElementFields) {
	for key, value := range fields {
		switch key {
		case "id", "lab_id", "type":
		default:
			a.props[key] = value
		}
	}
}

func (a *Annotation) topologyFieldsLocked() model.ElementFields {
	fields := model.ElementFields{
		"id":   a.id,
		"type": a.typ,
	}
	for k, v := range a.props {
		fields[k] = v
	}
	return fields
}
