package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/simlab-dev/simlab/internal/model"
)

// JSONPrinter prints lab information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// labItem represents a lab in the list output.
type labItem struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	State   string    `json:"state"`
	Nodes   int       `json:"nodes"`
	Links   int       `json:"links"`
	Created time.Time `json:"created_at"`
}

// labDetailOutput represents the full lab detail output.
type labDetailOutput struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	State       string          `json:"state"`
	Owner       string          `json:"owner,omitempty"`
	Created     *time.Time      `json:"created_at,omitempty"`
	Nodes       []nodeRowOutput `json:"nodes"`
	Links       []linkRowOutput `json:"links"`
}

type nodeRowOutput struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Definition string   `json:"definition"`
	State      string   `json:"state"`
	IPv4       []string `json:"ipv4"`
}

type linkRowOutput struct {
	ID         string `json:"id"`
	EndpointA  string `json:"endpoint_a"`
	EndpointB  string `json:"endpoint_b"`
	State      string `json:"state"`
	ReadBytes  int64  `json:"read_bytes"`
	WriteBytes int64  `json:"write_bytes"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintLabList prints labs in JSON format.
func (j *JSONPrinter) PrintLabList(labs []LabRow) error {
	items := make([]labItem, len(labs))
	for i, l := range labs {
		items[i] = labItem{
			ID:      l.ID,
			Title:   l.Title,
			State:   l.State,
			Nodes:   l.Nodes,
			Links:   l.Links,
			Created: l.Created.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintLabDetail prints the full lab detail in JSON format.
func (j *JSONPrinter) PrintLabDetail(detail LabDetail) error {
	output := labDetailOutput{
		ID:          detail.ID,
		Title:       detail.Title,
		Description: detail.Description,
		State:       detail.State,
		Owner:       detail.Owner,
		Nodes:       make([]nodeRowOutput, 0, len(detail.Nodes)),
		Links:       make([]linkRowOutput, 0, len(detail.Links)),
	}
	if !detail.Created.IsZero() {
		utcTime := detail.Created.UTC()
		output.Created = &utcTime
	}

	for _, n := range detail.Nodes {
		ips := n.IPv4
		if ips == nil {
			ips = []string{}
		}
		output.Nodes = append(output.Nodes, nodeRowOutput{
			ID:         n.ID,
			Label:      n.Label,
			Definition: n.Definition,
			State:      n.State,
			IPv4:       ips,
		})
	}
	for _, l := range detail.Links {
		output.Links = append(output.Links, linkRowOutput{
			ID:         l.ID,
			EndpointA:  l.EndpointA,
			EndpointB:  l.EndpointB,
			State:      l.State,
			ReadBytes:  l.ReadBytes,
			WriteBytes: l.WriteBytes,
		})
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintSystemInfo prints controller version information in JSON format.
func (j *JSONPrinter) PrintSystemInfo(info model.SystemInfo) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
