package simlab_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/pkg/simlab"
)

// newTestClient creates a client backed by the in-memory fake controller.
func newTestClient(t *testing.T) *simlab.Client {
	t.Helper()

	client, err := simlab.New(context.Background(), simlab.Config{
		Controller: simlab.ControllerFake,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		config simlab.Config
		expErr bool
		expIs  error
	}{
		"Creating a client against the fake controller should work.": {
			config: simlab.Config{Controller: simlab.ControllerFake},
		},

		"An unknown controller type should fail.": {
			config: simlab.Config{Controller: "docker"},
			expErr: true,
			expIs:  simlab.ErrNotValid,
		},

		"A REST client without a URL should fail.": {
			config: simlab.Config{Username: "admin", Password: "secret"},
			expErr: true,
		},

		"A REST client without credentials should fail.": {
			config: simlab.Config{URL: "https://sim.example.com"},
			expErr: true,
		},

		"Event listening on the fake controller should fail.": {
			config: simlab.Config{Controller: simlab.ControllerFake, EventListening: true},
			expErr: true,
			expIs:  simlab.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			client, err := simlab.New(context.Background(), test.config)

			if test.expErr {
				assert.Error(err)
				if test.expIs != nil {
					assert.True(errors.Is(err, test.expIs), "expected error %v, got: %v", test.expIs, err)
				}
				return
			}

			assert.NoError(err)
			assert.NoError(client.Close())
		})
	}
}

func TestSystemInfo(t *testing.T) {
	assert := assert.New(t)
	client := newTestClient(t)

	info, err := client.SystemInfo(context.Background())

	assert.NoError(err)
	assert.Equal(simlab.SupportedControllerVersion, info.Version)
	assert.True(info.Ready)
}

func TestCreateLab(t *testing.T) {
	tests := map[string]struct {
		title string
	}{
		"Creating a lab with a title should keep it.": {
			title: "my network",
		},

		"Creating a lab without a title should let the controller pick one.": {
			title: "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			client := newTestClient(t)
			ctx := context.Background()

			lab, err := client.CreateLab(ctx, test.title)
			require.NoError(err)
			assert.NotEmpty(lab.ID())

			title, err := lab.Title(ctx)
			require.NoError(err)
			if test.title != "" {
				assert.Equal(test.title, title)
			} else {
				assert.NotEmpty(title)
			}

			// The lab is joined and known to the controller.
			assert.Len(client.JoinedLabs(), 1)
			ids, err := client.Labs(ctx, false)
			require.NoError(err)
			assert.Equal([]string{lab.ID()}, ids)
		})
	}
}

func TestJoinExistingLab(t *testing.T) {
	t.Run("Joining an already joined lab should return the same snapshot.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		client := newTestClient(t)
		ctx := context.Background()

		lab, err := client.CreateLab(ctx, "joined twice")
		require.NoError(err)

		again, err := client.JoinExistingLab(ctx, lab.ID())
		require.NoError(err)
		assert.Same(lab, again)
	})

	t.Run("Joining an unknown lab should fail with not found.", func(t *testing.T) {
		assert := assert.New(t)
		client := newTestClient(t)
		ctx := context.Background()

		_, err := client.JoinExistingLab(ctx, "ghost")
		assert.Error(err)
		assert.True(errors.Is(err, simlab.ErrNotFound), "expected ErrNotFound, got: %v", err)

		// The failed join leaves nothing behind.
		_, err = client.GetLocalLab("ghost")
		assert.True(errors.Is(err, simlab.ErrNotFound))
	})
}

func TestImportLab(t *testing.T) {
	doc := simlab.Topology{
		Lab: simlab.LabProperties{Title: "document title"},
		Nodes: []simlab.ElementFields{
			{"id": "n1", "label": "r1", "node_definition": "iosv", "x": 0, "y": 0},
			{"id": "n2", "label": "r2", "node_definition": "iosv", "x": 200, "y": 0},
		},
		Interfaces: []simlab.ElementFields{
			{"id": "i1", "node": "n1", "label": "eth0", "slot": 0},
			{"id": "i2", "node": "n2", "label": "eth0", "slot": 0},
		},
		Links: []simlab.ElementFields{
			{"id": "l1", "interface_a": "i1", "interface_b": "i2"},
		},
	}

	tests := map[string]struct {
		title    string
		expTitle string
	}{
		"Importing with a title should override the document.": {
			title:    "renamed",
			expTitle: "renamed",
		},

		"Importing without a title should use the document title.": {
			title:    "",
			expTitle: "document title",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			client := newTestClient(t)
			ctx := context.Background()

			lab, err := client.ImportLab(ctx, doc, test.title)
			require.NoError(err)

			title, err := lab.Title(ctx)
			require.NoError(err)
			assert.Equal(test.expTitle, title)

			nodes, err := lab.Nodes(ctx)
			require.NoError(err)
			assert.Len(nodes, 2)
			links, err := lab.Links(ctx)
			require.NoError(err)
			assert.Len(links, 1)

			// The imported lab is joined.
			local, err := client.GetLocalLab(lab.ID())
			require.NoError(err)
			assert.Same(lab, local)
		})
	}
}

func TestInspectLab(t *testing.T) {
	t.Run("Inspecting an existing lab should return its properties.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		client := newTestClient(t)
		ctx := context.Background()

		lab, err := client.CreateLab(ctx, "inspect me")
		require.NoError(err)

		fields, err := client.InspectLab(ctx, lab.ID())
		require.NoError(err)
		assert.Equal("inspect me", fields.Str("title"))
		assert.Equal(simlab.StateDefined, fields.Str("state"))
		assert.Equal(0, fields.Int("node_count"))
	})

	t.Run("Inspecting an unknown lab should fail with not found.", func(t *testing.T) {
		assert := assert.New(t)
		client := newTestClient(t)

		_, err := client.InspectLab(context.Background(), "ghost")
		assert.Error(err)
		assert.True(errors.Is(err, simlab.ErrNotFound), "expected ErrNotFound, got: %v", err)
	})
}

func TestGetLocalLab(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	lab, err := client.CreateLab(ctx, "local")
	require.NoError(err)

	got, err := client.GetLocalLab(lab.ID())
	require.NoError(err)
	assert.Same(lab, got)

	_, err = client.GetLocalLab("never-joined")
	assert.True(errors.Is(err, simlab.ErrNotFound))
}

func TestJoinedLabs(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	assert.Empty(client.JoinedLabs())

	var created []string
	for _, title := range []string{"a", "b", "c"} {
		lab, err := client.CreateLab(ctx, title)
		require.NoError(err)
		created = append(created, lab.ID())
	}

	labs := client.JoinedLabs()
	require.Len(labs, 3)

	ids := make([]string, 0, len(labs))
	for _, lab := range labs {
		ids = append(ids, lab.ID())
	}
	assert.True(sort.StringsAreSorted(ids), "expected IDs sorted, got: %v", ids)
	assert.ElementsMatch(created, ids)
}

func TestFindLabsByTitle(t *testing.T) {
	tests := map[string]struct {
		setup    func(t *testing.T, c *simlab.Client)
		title    string
		expCount int
	}{
		"Finding labs by title should return every match.": {
			setup: func(t *testing.T, c *simlab.Client) {
				t.Helper()
				ctx := context.Background()
				for _, title := range []string{"alpha", "beta", "alpha"} {
					_, err := c.CreateLab(ctx, title)
					require.NoError(t, err)
				}
			},
			title:    "alpha",
			expCount: 2,
		},

		"Finding an unknown title should return nothing.": {
			setup: func(t *testing.T, c *simlab.Client) {
				t.Helper()
				_, err := c.CreateLab(context.Background(), "alpha")
				require.NoError(t, err)
			},
			title:    "ghost",
			expCount: 0,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := newTestClient(t)
			test.setup(t, client)

			labs, err := client.FindLabsByTitle(context.Background(), test.title)

			assert.NoError(err)
			assert.Len(labs, test.expCount)
		})
	}
}

func TestRemoveLab(t *testing.T) {
	t.Run("Removing a joined lab should evict and invalidate its snapshot.", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		client := newTestClient(t)
		ctx := context.Background()

		lab, err := client.CreateLab(ctx, "doomed")
		require.NoError(err)

		require.NoError(client.RemoveLab(ctx, lab.ID()))

		// Evicted locally, gone on the controller, handle is stale.
		_, err = client.GetLocalLab(lab.ID())
		assert.True(errors.Is(err, simlab.ErrNotFound))
		ids, err := client.Labs(ctx, false)
		require.NoError(err)
		assert.Empty(ids)
		_, err = lab.Title(ctx)
		assert.True(errors.Is(err, simlab.ErrStale), "expected ErrStale, got: %v", err)
	})

	t.Run("Removing an unknown lab should fail with not found.", func(t *testing.T) {
		assert := assert.New(t)
		client := newTestClient(t)

		err := client.RemoveLab(context.Background(), "ghost")
		assert.Error(err)
		assert.True(errors.Is(err, simlab.ErrNotFound), "expected ErrNotFound, got: %v", err)
	})
}

func TestEventListeningFakeController(t *testing.T) {
	assert := assert.New(t)
	client := newTestClient(t)

	// Only the REST controller carries an event stream.
	err := client.StartEventListening(context.Background())
	assert.True(errors.Is(err, simlab.ErrNotValid), "expected ErrNotValid, got: %v", err)
	assert.False(client.EventListening())
	assert.NoError(client.StopEventListening())
}

func TestFullLifecycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	// Automatic refresh off: every state read below is served by explicit
	// Sync calls, so the assertions do not depend on timing.
	client, err := simlab.New(ctx, simlab.Config{
		Controller:       simlab.ControllerFake,
		AutoSyncInterval: -1,
	})
	require.NoError(err)
	defer client.Close()

	// Create.
	lab, err := client.CreateLab(ctx, "lifecycle")
	require.NoError(err)

	// Build a two-router topology.
	r1, err := lab.CreateNode(ctx, "r1", "iosv", 0, 0)
	require.NoError(err)
	r2, err := lab.CreateNode(ctx, "r2", "iosv", 200, 0)
	require.NoError(err)
	link, err := lab.ConnectTwoNodes(ctx, r1, r2)
	require.NoError(err)

	// Start: the fake controller boots everything instantly.
	require.NoError(lab.Start(ctx))
	require.NoError(lab.SyncStates(ctx))

	state, err := lab.State(ctx)
	require.NoError(err)
	assert.Equal(simlab.StateStarted, state)
	state, err = r1.State(ctx)
	require.NoError(err)
	assert.Equal(simlab.StateBooted, state)
	active, err := link.IsActive(ctx)
	require.NoError(err)
	assert.True(active)

	require.NoError(lab.WaitUntilConverged(ctx, 0, 0))

	// Runtime data.
	require.NoError(lab.SyncStatistics(ctx))
	stats, err := r1.Statistics(ctx)
	require.NoError(err)
	assert.Equal(2.5, stats.CPUUsage)

	require.NoError(lab.SyncLayer3(ctx))
	ifaceA, err := link.InterfaceA(ctx)
	require.NoError(err)
	addrs, err := ifaceA.DiscoveredIPv4(ctx)
	require.NoError(err)
	require.Len(addrs, 1)
	assert.Equal("10.0.0.1", addrs[0])

	// Stop and wipe.
	require.NoError(lab.Stop(ctx))
	require.NoError(lab.SyncStates(ctx))
	state, err = lab.State(ctx)
	require.NoError(err)
	assert.Equal(simlab.StateStopped, state)

	require.NoError(lab.Wipe(ctx))
	require.NoError(lab.SyncStates(ctx))
	state, err = r1.State(ctx)
	require.NoError(err)
	assert.Equal(simlab.StateDefined, state)

	// Remove.
	require.NoError(client.RemoveLab(ctx, lab.ID()))
	_, err = lab.Title(ctx)
	assert.True(errors.Is(err, simlab.ErrStale))
	ids, err := client.Labs(ctx, false)
	require.NoError(err)
	assert.Empty(ids)
}
