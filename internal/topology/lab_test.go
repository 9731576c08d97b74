package topology_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/topology"
)

func TestLabSyncTopologyImport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	doc := topoDoc(
		[]model.ElementFields{nodeDoc("n1", "r1", 10, 20), nodeDoc("n2", "r2", 30, 40)},
		[]model.ElementFields{ifaceDoc("i1", "n1", "eth0", 0), ifaceDoc("i2", "n2", "eth0", 0)},
		[]model.ElementFields{linkDoc("l1", "i1", "i2")},
	)
	doc.Annotations = []model.ElementFields{{"id": "a1", "type": "text", "text_content": "hello"}}
	doc.SmartAnnotations = []model.ElementFields{{"id": "sa1", "tag": "core", "fill_color": "#FF00FF"}}
	api.respond("GET", pathTopo, doc)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))

	title, err := lab.Title(ctx)
	require.NoError(err)
	assert.Equal("test lab", title)

	owner, err := lab.Owner(ctx)
	require.NoError(err)
	assert.Equal("admin", owner)

	created, err := lab.Created(ctx)
	require.NoError(err)
	assert.Equal(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), created.UTC())

	nodes, err := lab.Nodes(ctx)
	require.NoError(err)
	assert.Equal([]string{"n1", "n2"}, nodeIDs(nodes))

	label, err := nodes[0].Label(ctx)
	require.NoError(err)
	assert.Equal("r1", label)
	x, y, err := nodes[0].Position(ctx)
	require.NoError(err)
	assert.Equal(10, x)
	assert.Equal(20, y)

	ifaces, err := nodes[0].Interfaces(ctx)
	require.NoError(err)
	require.Len(ifaces, 1)
	assert.Equal("i1", ifaces[0].ID())

	links, err := lab.Links(ctx)
	require.NoError(err)
	require.Len(links, 1)
	a, err := links[0].InterfaceA(ctx)
	require.NoError(err)
	assert.Equal("i1", a.ID())
	nodeB, err := links[0].NodeB(ctx)
	require.NoError(err)
	assert.Equal("n2", nodeB.ID())

	peer, err := ifaces[0].PeerNode(ctx)
	require.NoError(err)
	assert.Equal("n2", peer.ID())

	ann, err := lab.AnnotationByID(ctx, "a1")
	require.NoError(err)
	assert.Equal("text", ann.Type())

	sa, err := lab.SmartAnnotationByTag(ctx, "core")
	require.NoError(err)
	assert.Equal("sa1", sa.ID())

	// The whole walk above must come out of the single scripted fetch.
	assert.Equal(1, api.count("GET", pathTopo))
}

func TestLabSyncTopologyNestedInterfaces(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	// Interfaces nested under their node, as topology documents have them.
	node := nodeDoc("n1", "r1", 0, 0)
	node["interfaces"] = []interface{}{
		map[string]interface{}{"id": "i1", "label": "eth0", "slot": 0},
		map[string]interface{}{"id": "i2", "label": "eth1", "slot": 1},
	}
	api := newStubAPI(t)
	api.respond("GET", pathTopo, topoDoc([]model.ElementFields{node}, nil, nil))

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))

	ifaces, err := lab.Interfaces(ctx)
	require.NoError(err)
	require.Len(ifaces, 2)
	assert.Equal("i1", ifaces[0].ID())

	// The node reference is filled in from the parent entry.
	owner, err := ifaces[1].Node(ctx)
	require.NoError(err)
	assert.Equal("n1", owner.ID())
}

func TestLabSyncTopologyDuplicateID(t *testing.T) {
	require := require.New(t)

	api := newStubAPI(t)
	api.respond("GET", pathTopo, topoDoc(
		[]model.ElementFields{nodeDoc("n1", "r1", 0, 0), nodeDoc("n1", "r1-again", 0, 0)},
		nil, nil,
	))

	lab := newTestLab(t, api)
	err := lab.SyncTopology(context.Background())
	require.Error(err)
	require.ErrorIs(err, model.ErrAlreadyExists)
}

func TestLabSyncTopologyDiff(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.respondSeq("GET", pathTopo,
		topoDoc([]model.ElementFields{nodeDoc("nA", "a", 0, 0), nodeDoc("nB", "b", 5, 5)}, nil, nil),
		topoDoc([]model.ElementFields{nodeDoc("nB", "b", 50, 50), nodeDoc("nC", "c", 9, 9)}, nil, nil),
	)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))

	nodes, err := lab.Nodes(ctx)
	require.NoError(err)
	require.Equal([]string{"nA", "nB"}, nodeIDs(nodes))
	nodeA, nodeB := nodes[0], nodes[1]

	require.NoError(lab.SyncTopology(ctx))

	// nA is gone: dropped from the lab, the held reference turns stale.
	nodes, err = lab.Nodes(ctx)
	require.NoError(err)
	assert.Equal([]string{"nB", "nC"}, nodeIDs(nodes))

	_, err = nodeA.Label(ctx)
	require.Error(err)
	assert.ErrorIs(err, model.ErrStale)
	assert.ErrorIs(err, model.ErrNotFound)
	assert.Equal("nA", nodeA.ID())

	// nB survived: same pointer, fields moved under it.
	assert.Same(nodeB, nodes[0])
	x, y, err := nodeB.Position(ctx)
	require.NoError(err)
	assert.Equal(50, x)
	assert.Equal(50, y)
}

func TestLabSyncTopologyBrokenReferences(t *testing.T) {
	tests := map[string]struct {
		doc model.Topology
	}{
		"A link cabling an interface the document does not list should be rejected": {
			doc: topoDoc(
				[]model.ElementFields{nodeDoc("nA", "a", 0, 0)},
				[]model.ElementFields{ifaceDoc("iA", "nA", "eth0", 0)},
				[]model.ElementFields{linkDoc("l1", "iA", "iMissing")},
			),
		},
		"An interface sitting on a node the document does not list should be rejected": {
			doc: topoDoc(
				[]model.ElementFields{nodeDoc("nA", "a", 0, 0)},
				[]model.ElementFields{ifaceDoc("iA", "nA", "eth0", 0), ifaceDoc("iB", "nMissing", "eth0", 0)},
				[]model.ElementFields{linkDoc("l1", "iA", "iB")},
			),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			api := newStubAPI(t)
			api.respond("GET", pathTopo, test.doc)

			lab := newTestLab(t, api)
			err := lab.SyncTopology(ctx)
			require.Error(err)
			assert.ErrorIs(err, model.ErrNotValid)

			// Nothing of the broken document was applied.
			nodes, err := lab.Nodes(ctx)
			require.NoError(err)
			assert.Empty(nodes)
		})
	}
}

func TestLabSyncTopologyRemoveCascades(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.respondSeq("GET", pathTopo,
		topoDoc(
			[]model.ElementFields{nodeDoc("nA", "a", 0, 0), nodeDoc("nB", "b", 0, 0)},
			[]model.ElementFields{ifaceDoc("iA", "nA", "eth0", 0), ifaceDoc("iB", "nB", "eth0", 0)},
			[]model.ElementFields{linkDoc("l1", "iA", "iB")},
		),
		topoDoc(
			[]model.ElementFields{nodeDoc("nB", "b", 0, 0)},
			[]model.ElementFields{ifaceDoc("iB", "nB", "eth0", 0)},
			nil,
		),
	)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))

	nodeA, err := lab.NodeByID(ctx, "nA")
	require.NoError(err)
	ifaceA, err := lab.InterfaceByID(ctx, "iA")
	require.NoError(err)
	ifaceB, err := lab.InterfaceByID(ctx, "iB")
	require.NoError(err)
	link, err := lab.LinkByID(ctx, "l1")
	require.NoError(err)

	require.NoError(lab.SyncTopology(ctx))

	// Node, its interface and the link are all gone.
	_, err = nodeA.Label(ctx)
	assert.ErrorIs(err, model.ErrStale)
	_, err = ifaceA.Label(ctx)
	assert.ErrorIs(err, model.ErrStale)
	_, err = link.Label(ctx)
	assert.ErrorIs(err, model.ErrStale)

	// The far side of the cable survives, now unplugged.
	connected, err := ifaceB.IsConnected(ctx)
	require.NoError(err)
	assert.False(connected)

	links, err := lab.Links(ctx)
	require.NoError(err)
	assert.Empty(links)
}

func TestLabSetProperties(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.respond("GET", pathTopo, topoDoc(nil, nil, nil))
	api.respond("PATCH", "labs/lab-1", nil)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))

	require.NoError(lab.SetTitle(ctx, "renamed"))
	assert.Equal("renamed", api.lastBody("PATCH", "labs/lab-1").Str("title"))

	require.NoError(lab.SetDescription(ctx, "new description"))
	assert.Equal("new description", api.lastBody("PATCH", "labs/lab-1").Str("description"))

	require.NoError(lab.SetNotes(ctx, "new notes"))

	// The stores are local, no refetch needed to read them back.
	title, err := lab.Title(ctx)
	require.NoError(err)
	assert.Equal("renamed", title)
	notes, err := lab.Notes(ctx)
	require.NoError(err)
	assert.Equal("new notes", notes)
	assert.Equal(1, api.count("GET", pathTopo))
}

func TestLabLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.respond("PUT", "labs/lab-1/start", nil)
	api.respond("PUT", "labs/lab-1/stop", nil)
	api.respond("PUT", "labs/lab-1/wipe", nil)

	lab := newTestLab(t, api)
	require.NoError(lab.Start(ctx))
	require.NoError(lab.Stop(ctx))
	require.NoError(lab.Wipe(ctx))
	require.Equal(1, api.count("PUT", "labs/lab-1/start"))
	require.Equal(1, api.count("PUT", "labs/lab-1/stop"))
	require.Equal(1, api.count("PUT", "labs/lab-1/wipe"))
}

func TestLabRemoveMarksEverythingStale(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.respond("GET", pathTopo, topoDoc(
		[]model.ElementFields{nodeDoc("n1", "r1", 0, 0)},
		[]model.ElementFields{ifaceDoc("i1", "n1", "eth0", 0)},
		nil,
	))
	api.respond("DELETE", "labs/lab-1", nil)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))
	node, err := lab.NodeByID(ctx, "n1")
	require.NoError(err)

	require.NoError(lab.Remove(ctx))
	assert.True(lab.Stale())

	_, err = lab.Title(ctx)
	assert.ErrorIs(err, model.ErrStale)
	_, err = node.Label(ctx)
	assert.ErrorIs(err, model.ErrStale)
	err = lab.Remove(ctx)
	assert.ErrorIs(err, model.ErrStale)

	// The ID stays readable for error reporting.
	assert.Equal("lab-1", lab.ID())
}

func TestLabGoneOnControllerNotFound(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.failWith("GET", pathTopo, httpNotFound())

	lab := newTestLab(t, api)
	err := lab.SyncTopology(ctx)
	require.Error(err)
	assert.ErrorIs(err, model.ErrNotFound)

	// Once the controller said 404, the mirror is terminally stale.
	_, err = lab.Title(ctx)
	assert.ErrorIs(err, model.ErrStale)
	assert.True(lab.Stale())
}

func TestLabOnStaleFiresOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	api := newStubAPI(t)
	api.failWith("GET", pathTopo, httpNotFound())

	var notified []string
	lab, err := topology.NewLab(topology.LabConfig{
		ID:               "lab-1",
		API:              api,
		AutoSyncInterval: -1,
		OnStale:          func(labID string) { notified = append(notified, labID) },
	})
	require.NoError(err)

	require.Error(lab.SyncTopology(ctx))
	assert.Equal([]string{"lab-1"}, notified)

	// Staleness is terminal: further failures don't notify again.
	require.Error(lab.Remove(ctx))
	assert.Equal([]string{"lab-1"}, notified)
}

func TestLabCreatedUnparsable(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	doc := topoDoc(nil, nil, nil)
	doc.Lab.Created = "sometime last week"
	api := newStubAPI(t)
	api.respond("GET", pathTopo, doc)

	lab := newTestLab(t, api)
	require.NoError(lab.SyncTopology(ctx))
	created, err := lab.Created(ctx)
	require.NoError(err)
	require.True(created.IsZero())
}

func TestLabExportTopology(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	node := nodeDoc("n1", "r1", 10, 20)
	node["configuration"] = "hostname r1"
	doc := topoDoc(
		[]model.ElementFields{node},
		[]model.ElementFields{ifaceDoc("i1", "n1", "eth0", 0)},
		nil,
	)
	doc.SmartAnnotations = []model.ElementFields{{"id": "sa1", "tag": "core"}}
	api := newStubAPI(t)
	api.respond("GET", pathTopo, doc)

	lab := newTestLab(t, api)
	exported, err := lab.ExportTopology(ctx)
	require.NoError(err)

	assert.Equal("test lab", exported.Lab.Title)
	require.Len(exported.Nodes, 1)
	assert.Equal("n1", exported.Nodes[0].ID())
	assert.Equal("r1", exported.Nodes[0].Str("label"))
	assert.Equal("hostname r1", exported.Nodes[0].Str("configuration"))
	require.Len(exported.Interfaces, 1)
	assert.Equal("n1", exported.Interfaces[0].Str("node"))
	require.Len(exported.SmartAnnotations, 1)
	assert.Equal("core", exported.SmartAnnotations[0].Str("tag"))

	// Export always refreshes with configuration text included.
	assert.Equal(1, api.count("GET", pathTopo))
}

func TestNewLabConfigValidation(t *testing.T) {
	tests := map[string]struct {
		config topology.LabConfig
		expErr bool
	}{
		"A config with an ID and an API should be valid.": {
			config: topology.LabConfig{ID: "lab-1", API: newStubAPI(t)},
		},

		"A config without a lab ID should fail.": {
			config: topology.LabConfig{API: newStubAPI(t)},
			expErr: true,
		},

		"A config without a controller API should fail.": {
			config: topology.LabConfig{ID: "lab-1"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := topology.NewLab(test.config)
			if test.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLabStaleErrorChain(t *testing.T) {
	// Staleness refines not-found, callers matching either must succeed.
	require.True(t, errors.Is(model.ErrStale, model.ErrNotFound))
}
