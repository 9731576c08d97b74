package model

// Element states reported by the controller.
const (
	StateDefined = "DEFINED_ON_CORE"
	StateStopped = "STOPPED"
	StateStarted = "STARTED"
	StateQueued  = "QUEUED"
	StateBooted  = "BOOTED"
)

// IsActiveState reports whether a state counts as active (running or on its
// way to running).
func IsActiveState(state string) bool {
	switch state {
	case StateStarted, StateQueued, StateBooted:
		return true
	}
	return false
}

// Element types used on the wire and in events.
const (
	ElementTypeNode            = "node"
	ElementTypeInterface       = "interface"
	ElementTypeLink            = "link"
	ElementTypeAnnotation      = "annotation"
	ElementTypeSmartAnnotation = "smart_annotation"
)

// Annotation variants.
const (
	AnnotationTypeRectangle = "rectangle"
	AnnotationTypeEllipse   = "ellipse"
	AnnotationTypeLine      = "line"
	AnnotationTypeText      = "text"
)

// Topology is a full lab snapshot as returned by the controller, and the
// document format for topology files.
type Topology struct {
	Lab              LabProperties   `json:"lab" yaml:"lab"`
	Nodes            []ElementFields `json:"nodes" yaml:"nodes"`
	Interfaces       []ElementFields `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Links            []ElementFields `json:"links" yaml:"links"`
	Annotations      []ElementFields `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	SmartAnnotations []ElementFields `json:"smart_annotations,omitempty" yaml:"smart_annotations,omitempty"`
}

// LabProperties are the lab-level fields of a topology snapshot.
type LabProperties struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Notes       string `json:"notes" yaml:"notes"`
	Owner       string `json:"owner,omitempty" yaml:"owner,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
	Created     string `json:"created,omitempty" yaml:"created,omitempty"`
}

// SystemInfo is the controller identity and readiness report.
type SystemInfo struct {
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
}

// ElementFields is one element of a topology snapshot or event payload: a
// decoded JSON object carrying a partial or full set of fields keyed by wire
// name. Absent keys mean "unchanged", which a typed struct cannot express.
type ElementFields map[string]interface{}

// ID returns the element's ID field, empty when absent.
func (f ElementFields) ID() string { return f.Str("id") }

// Clone returns a shallow copy.
func (f ElementFields) Clone() ElementFields {
	out := make(ElementFields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present.
func (f ElementFields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Str returns a string field, empty when absent or not a string.
func (f ElementFields) Str(key string) string {
	s, _ := f[key].(string)
	return s
}

// Int returns a numeric field. JSON decodes numbers as float64 and YAML as
// int, so both are accepted.
func (f ElementFields) Int(key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Float returns a float field.
func (f ElementFields) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns a boolean field, false when absent.
func (f ElementFields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// StrSlice returns a string list field.
func (f ElementFields) StrSlice(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
