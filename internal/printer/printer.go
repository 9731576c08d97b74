package printer

import (
	"time"

	"github.com/simlab-dev/simlab/internal/model"
)

// Printer knows how to print lab information in different formats.
type Printer interface {
	PrintLabList(labs []LabRow) error
	PrintLabDetail(detail LabDetail) error
	PrintSystemInfo(info model.SystemInfo) error
	PrintMessage(msg string) error
}

// LabRow is one lab in list output.
type LabRow struct {
	ID      string
	Title   string
	State   string
	Nodes   int
	Links   int
	Created time.Time
}

// LabDetail is the full lab view, including per-node and per-link rows.
type LabDetail struct {
	ID          string
	Title       string
	Description string
	State       string
	Owner       string
	Created     time.Time
	Nodes       []NodeRow
	Links       []LinkRow
}

// NodeRow is one node in lab detail output.
type NodeRow struct {
	ID         string
	Label      string
	Definition string
	State      string
	IPv4       []string
}

// LinkRow is one link in lab detail output. Traffic counters are the A-side
// view; zero counters print as "-".
type LinkRow struct {
	ID         string
	EndpointA  string
	EndpointB  string
	State      string
	ReadBytes  int64
	WriteBytes int64
}
