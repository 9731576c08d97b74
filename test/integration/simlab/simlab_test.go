package simlab_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/simlab-dev/simlab/pkg/simlab"
	intsim "github.com/simlab-dev/simlab/test/integration/simlab"
)

func TestSDKLabLifecycle(t *testing.T) {
	config := intsim.NewConfig(t)
	client := intsim.NewTestClient(t, config)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	title := intsim.UniqueTitle("sdk-lifecycle")

	// Create.
	lab, err := client.CreateLab(ctx, title)
	require.NoError(t, err)
	intsim.CleanupLab(t, lab)
	assert.NotEmpty(t, lab.ID())

	gotTitle, err := lab.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, title, gotTitle)

	// Build a two node topology.
	r1, err := lab.CreateNode(ctx, "r1", config.NodeDefinition, 0, 0)
	require.NoError(t, err)
	r2, err := lab.CreateNode(ctx, "r2", config.NodeDefinition, 200, 0)
	require.NoError(t, err)
	link, err := lab.ConnectTwoNodes(ctx, r1, r2)
	require.NoError(t, err)

	// Start and wait until every node settles.
	require.NoError(t, lab.Start(ctx))
	require.NoError(t, lab.WaitUntilConverged(ctx, 0, 0))

	require.NoError(t, lab.SyncStates(ctx))
	state, err := lab.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, sdk.StateStarted, state)

	active, err := link.IsActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	// Stop.
	require.NoError(t, lab.Stop(ctx))
	require.NoError(t, lab.SyncStates(ctx))
	state, err = lab.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, sdk.StateStopped, state)

	// Wipe.
	require.NoError(t, lab.Wipe(ctx))
	require.NoError(t, lab.SyncStates(ctx))
	state, err = lab.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, sdk.StateDefined, state)

	// Remove.
	require.NoError(t, client.RemoveLab(ctx, lab.ID()))

	// The lab should be gone from the controller.
	found, err := client.FindLabsByTitle(ctx, title)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSDKImportExport(t *testing.T) {
	config := intsim.NewConfig(t)
	client := intsim.NewTestClient(t, config)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	title := intsim.UniqueTitle("sdk-import")
	doc := sdk.Topology{
		Lab: sdk.LabProperties{Title: title, Description: "import export round trip"},
		Nodes: []sdk.ElementFields{
			{"id": "n0", "label": "r1", "node_definition": config.NodeDefinition, "x": 0, "y": 0},
			{"id": "n1", "label": "r2", "node_definition": config.NodeDefinition, "x": 200, "y": 0},
		},
		Interfaces: []sdk.ElementFields{
			{"id": "i0", "node": "n0", "label": "eth0", "slot": 0},
			{"id": "i1", "node": "n1", "label": "eth0", "slot": 0},
		},
		Links: []sdk.ElementFields{
			{"id": "l0", "interface_a": "i0", "interface_b": "i1"},
		},
	}

	// Import.
	lab, err := client.ImportLab(ctx, doc, "")
	require.NoError(t, err)
	intsim.CleanupLab(t, lab)

	gotTitle, err := lab.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, title, gotTitle)

	nodes, err := lab.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	links, err := lab.Links(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	// Export and compare.
	exported, err := lab.ExportTopology(ctx)
	require.NoError(t, err)
	assert.Equal(t, title, exported.Lab.Title)
	assert.Len(t, exported.Nodes, 2)
	assert.Len(t, exported.Interfaces, 2)
	assert.Len(t, exported.Links, 1)

	// Remove.
	require.NoError(t, client.RemoveLab(ctx, lab.ID()))
}
