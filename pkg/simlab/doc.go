// Package simlab provides a Go SDK for driving a network simulation
// controller programmatically.
//
// This package lets applications build, run and inspect simulated network
// labs without clicking through the controller's UI. It keeps a local
// snapshot of each joined lab and reconciles it with the controller through
// REST calls and, optionally, a live WebSocket event stream.
//
// # Quick Start
//
// Create a client, build a two-node lab and start it:
//
//	client, err := simlab.New(ctx, simlab.Config{
//	    URL:      "https://sim.example.com",
//	    Username: "admin",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	lab, _ := client.CreateLab(ctx, "my-lab")
//	r1, _ := lab.CreateNode(ctx, "r1", "iosv", 0, 0)
//	r2, _ := lab.CreateNode(ctx, "r2", "iosv", 200, 0)
//	lab.ConnectTwoNodes(ctx, r1, r2)
//
//	lab.Start(ctx)
//	lab.WaitUntilConverged(ctx, 0, 0)
//
// # Synchronization
//
// A [Lab] is a cache. Reads serve from it and refresh the relevant data
// category (topology, element states, statistics, discovered addresses)
// from the controller when the cached copy is older than
// [Config.AutoSyncInterval]. Explicit refreshes are available through
// [Lab.Sync] and its per-category variants; setting a negative interval
// makes those the only refresh path.
//
// When an element disappears from the controller, local references to it
// become stale and every access through them returns an error matching
// [ErrStale]. A stale reference never comes back.
//
// # Event Listening
//
// With [Config.EventListening] (or [Client.StartEventListening]) the client
// follows the controller's event stream and applies element creations,
// updates, deletions and state changes to joined labs as they happen,
// which keeps snapshots current between syncs.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: The element or lab does not exist.
//   - [ErrStale]: Access through a reference to a deleted element. Matches
//     [ErrNotFound] too.
//   - [ErrAlreadyExists]: A topology document carried a duplicate ID.
//   - [ErrNotValid]: Invalid input or operation (e.g. changing an
//     annotation's type).
//   - [ErrTimeout]: A convergence wait ran out of iterations.
//
// # Testing
//
// Use [ControllerFake] to write tests without a running controller. The
// fake keeps labs in memory and serves the same API surface:
//
//	client, _ := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] and its labs are safe for concurrent use. While event
// listening is active, snapshot access and the event consumer serialize on
// a per-client lock.
package simlab
