package simlab_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/simlab-dev/simlab/pkg/simlab"
)

// This example shows how to create a client using the fake controller for
// testing.
func Example_testing() {
	ctx := context.Background()

	// The fake controller lives in process memory, no connection settings
	// needed.
	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	lab, err := client.CreateLab(ctx, "demo lab")
	if err != nil {
		panic(err)
	}

	title, err := lab.Title(ctx)
	if err != nil {
		panic(err)
	}
	state, err := lab.State(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Created: %s (state: %s)\n", title, state)

	// Output:
	// Created: demo lab (state: DEFINED_ON_CORE)
}

// This example shows the full lab lifecycle: create, build, start, stop,
// remove.
func Example_lifecycle() {
	ctx := context.Background()

	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// Create.
	lab, err := client.CreateLab(ctx, "my network")
	if err != nil {
		panic(err)
	}
	fmt.Println("1. Created")

	// Build a two-router topology.
	r1, err := lab.CreateNode(ctx, "r1", "iosv", 0, 0)
	if err != nil {
		panic(err)
	}
	r2, err := lab.CreateNode(ctx, "r2", "iosv", 200, 0)
	if err != nil {
		panic(err)
	}
	_, err = lab.ConnectTwoNodes(ctx, r1, r2)
	if err != nil {
		panic(err)
	}
	fmt.Println("2. Connected r1 and r2")

	// Start and wait until the simulation settles.
	if err := lab.Start(ctx); err != nil {
		panic(err)
	}
	if err := lab.WaitUntilConverged(ctx, 0, 0); err != nil {
		panic(err)
	}
	state, err := r1.State(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("3. Started (r1 state: %s)\n", state)

	// Stop.
	if err := lab.Stop(ctx); err != nil {
		panic(err)
	}
	fmt.Println("4. Stopped")

	// Remove.
	if err := client.RemoveLab(ctx, lab.ID()); err != nil {
		panic(err)
	}
	fmt.Println("5. Removed")

	// Output:
	// 1. Created
	// 2. Connected r1 and r2
	// 3. Started (r1 state: BOOTED)
	// 4. Stopped
	// 5. Removed
}

// This example shows how to upload a topology document as a new lab.
func ExampleClient_ImportLab() {
	ctx := context.Background()

	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	doc := simlab.Topology{
		Lab: simlab.LabProperties{Title: "document title"},
		Nodes: []simlab.ElementFields{
			{"id": "n1", "label": "r1", "node_definition": "iosv"},
			{"id": "n2", "label": "r2", "node_definition": "iosv"},
		},
		Interfaces: []simlab.ElementFields{
			{"id": "i1", "node": "n1", "label": "eth0", "slot": 0},
			{"id": "i2", "node": "n2", "label": "eth0", "slot": 0},
		},
		Links: []simlab.ElementFields{
			{"id": "l1", "interface_a": "i1", "interface_b": "i2"},
		},
	}

	// The title argument overrides the one in the document.
	lab, err := client.ImportLab(ctx, doc, "imported net")
	if err != nil {
		panic(err)
	}

	title, err := lab.Title(ctx)
	if err != nil {
		panic(err)
	}
	nodes, err := lab.Nodes(ctx)
	if err != nil {
		panic(err)
	}
	links, err := lab.Links(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s: %d nodes, %d links\n", title, len(nodes), len(links))

	// Output:
	// imported net: 2 nodes, 1 links
}

// This example shows how ConnectTwoNodes allocates interfaces on both ends.
func ExampleLab_ConnectTwoNodes() {
	ctx := context.Background()

	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	lab, err := client.CreateLab(ctx, "cabling")
	if err != nil {
		panic(err)
	}
	r1, err := lab.CreateNode(ctx, "r1", "iosv", 0, 0)
	if err != nil {
		panic(err)
	}
	r2, err := lab.CreateNode(ctx, "r2", "iosv", 200, 0)
	if err != nil {
		panic(err)
	}

	// The next free slot on each node is used, eth0 here.
	link, err := lab.ConnectTwoNodes(ctx, r1, r2)
	if err != nil {
		panic(err)
	}

	label, err := link.Label(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("link: %s\n", label)

	// Output:
	// link: eth0<->eth0
}

// This example shows how to export a lab as a topology document.
func ExampleLab_ExportTopology() {
	ctx := context.Background()

	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	lab, err := client.CreateLab(ctx, "export demo")
	if err != nil {
		panic(err)
	}
	_, err = lab.CreateNode(ctx, "r1", "iosv", 0, 0)
	if err != nil {
		panic(err)
	}

	topo, err := lab.ExportTopology(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s: %d node(s)\n", topo.Lab.Title, len(topo.Nodes))

	// Output:
	// export demo: 1 node(s)
}

// This example shows how to handle SDK errors using errors.Is.
func Example_errorHandling() {
	ctx := context.Background()

	client, err := simlab.New(ctx, simlab.Config{Controller: simlab.ControllerFake})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// Look up a lab that was never joined.
	_, err = client.GetLocalLab("missing")
	if errors.Is(err, simlab.ErrNotFound) {
		fmt.Println("lab not found (expected)")
	}

	// Create an annotation of an unknown type.
	lab, err := client.CreateLab(ctx, "errors")
	if err != nil {
		panic(err)
	}
	_, err = lab.CreateAnnotation(ctx, "banner", nil)
	if errors.Is(err, simlab.ErrNotValid) {
		fmt.Println("invalid annotation type (expected)")
	}

	// Use a snapshot after its lab was deleted.
	if err := client.RemoveLab(ctx, lab.ID()); err != nil {
		panic(err)
	}
	_, err = lab.Title(ctx)
	if errors.Is(err, simlab.ErrStale) {
		fmt.Println("stale snapshot (expected)")
	}

	// Output:
	// lab not found (expected)
	// invalid annotation type (expected)
	// stale snapshot (expected)
}

// This example shows a REST controller configuration (will not actually
// connect without a real controller, but demonstrates the settings).
func ExampleConfig() {
	cfg := simlab.Config{
		URL:      "https://sim.example.com",
		Username: "admin",
		Password: "secret",

		// Lab controllers commonly run with self-signed certificates.
		Insecure: true,

		// Keep joined labs current through the WebSocket event stream
		// instead of polling.
		EventListening: true,
	}

	fmt.Printf("url=%s user=%s insecure=%v events=%v\n",
		cfg.URL, cfg.Username, cfg.Insecure, cfg.EventListening)

	// Output:
	// url=https://sim.example.com user=admin insecure=true events=true
}
