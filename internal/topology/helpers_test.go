package topology_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/topology"
	"github.com/simlab-dev/simlab/internal/transport"
)

// Controller paths used by a lab with ID "lab-1".
const (
	pathTopo     = "labs/lab-1/topology?exclude_configurations=false"
	pathTopoExcl = "labs/lab-1/topology?exclude_configurations=true"
	pathStates   = "labs/lab-1/lab_element_state"
	pathStats    = "labs/lab-1/simulation_stats"
	pathLayer3   = "labs/lab-1/layer3_addresses"
	pathOper     = "labs/lab-1/nodes?data=true&operational=true"
)

// stubAPI is a scripted controller: responses are keyed by "METHOD path",
// every call is recorded in order and unscripted calls fail the test. Out
// values are filled through a JSON round trip so decoding behaves exactly
// like a real response body.
type stubAPI struct {
	t *testing.T

	responses map[string][]interface{}
	failures  map[string]error
	calls     []string
	bodies    map[string][]interface{}
}

func newStubAPI(t *testing.T) *stubAPI {
	t.Helper()
	return &stubAPI{
		t:         t,
		responses: map[string][]interface{}{},
		failures:  map[string]error{},
		bodies:    map[string][]interface{}{},
	}
}

func (s *stubAPI) respond(method, path string, response interface{}) {
	s.responses[method+" "+path] = []interface{}{response}
}

// respondSeq scripts successive responses; the last one sticks.
func (s *stubAPI) respondSeq(method, path string, responses ...interface{}) {
	s.responses[method+" "+path] = responses
}

func (s *stubAPI) failWith(method, path string, err error) {
	s.failures[method+" "+path] = err
}

func (s *stubAPI) count(method, path string) int {
	n := 0
	for _, call := range s.calls {
		if call == method+" "+path {
			n++
		}
	}
	return n
}

// lastBody returns the most recent request body sent to the path, decoded
// the way the controller would decode it.
func (s *stubAPI) lastBody(method, path string) model.ElementFields {
	list := s.bodies[method+" "+path]
	if len(list) == 0 {
		return nil
	}
	var out model.ElementFields
	data, err := json.Marshal(list[len(list)-1])
	require.NoError(s.t, err)
	require.NoError(s.t, json.Unmarshal(data, &out))
	return out
}

func (s *stubAPI) do(method, path string, body, out interface{}) error {
	key := method + " " + path
	s.calls = append(s.calls, key)
	if body != nil {
		s.bodies[key] = append(s.bodies[key], body)
	}
	if err, ok := s.failures[key]; ok {
		return err
	}
	queue, ok := s.responses[key]
	if !ok {
		s.t.Fatalf("unscripted controller call: %s", key)
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[key] = queue[1:]
	}
	if out == nil || resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	require.NoError(s.t, err)
	require.NoError(s.t, json.Unmarshal(data, out))
	return nil
}

func (s *stubAPI) Get(_ context.Context, path string, out interface{}) error {
	return s.do("GET", path, nil, out)
}

func (s *stubAPI) Post(_ context.Context, path string, body, out interface{}) error {
	return s.do("POST", path, body, out)
}

func (s *stubAPI) Patch(_ context.Context, path string, body, out interface{}) error {
	return s.do("PATCH", path, body, out)
}

func (s *stubAPI) Put(_ context.Context, path string, body, out interface{}) error {
	return s.do("PUT", path, body, out)
}

func (s *stubAPI) Delete(_ context.Context, path string) error {
	return s.do("DELETE", path, nil, nil)
}

func httpNotFound() error {
	return &transport.HTTPError{StatusCode: 404, Body: `{"description": "not found"}`}
}

// newTestLab builds a lab mirror with auto-sync disabled, so every fetch in
// a test is explicit and the stub sees exactly the scripted traffic.
func newTestLab(t *testing.T, api *stubAPI) *topology.Lab {
	t.Helper()
	lab, err := topology.NewLab(topology.LabConfig{
		ID:               "lab-1",
		API:              api,
		Username:         "admin",
		AutoSyncInterval: -1,
	})
	require.NoError(t, err)
	return lab
}

// --- Topology document builders ---

func nodeDoc(id, label string, x, y int) model.ElementFields {
	return model.ElementFields{"id": id, "label": label, "node_definition": "iosv", "x": x, "y": y}
}

func ifaceDoc(id, nodeID, label string, slot int) model.ElementFields {
	return model.ElementFields{"id": id, "node": nodeID, "label": label, "slot": slot, "type": "physical"}
}

func linkDoc(id, a, b string) model.ElementFields {
	return model.ElementFields{"id": id, "interface_a": a, "interface_b": b, "label": a + "<->" + b}
}

func topoDoc(nodes, ifaces, links []model.ElementFields) model.Topology {
	return model.Topology{
		Lab: model.LabProperties{
			Title:   "test lab",
			Owner:   "admin",
			Created: "2026-08-20T10:00:00Z",
		},
		Nodes:      nodes,
		Interfaces: ifaces,
		Links:      links,
	}
}

// nodeIDs projects a node list onto its IDs, keeping order.
func nodeIDs(nodes []*topology.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	return out
}
