package simlab

import (
	"context"
	"fmt"

	"github.com/simlab-dev/simlab/internal/eventstream"
	"github.com/simlab-dev/simlab/internal/model"
)

// tokenSource is the part of the REST transport the event stream needs for
// its auth handshake. The fake controller does not implement it.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StartEventListening opens the controller's WebSocket event stream and
// applies incoming events to joined labs, so their snapshots stay current
// without polling. Starting twice is a no-op.
//
// While listening, lab snapshot access is serialized against the event
// consumer; this is transparent to callers.
//
// Returns [ErrNotValid] when the client is not backed by the REST
// controller, since only it carries an event stream.
func (c *Client) StartEventListening(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listener != nil {
		return nil
	}

	ts, ok := c.api.(tokenSource)
	if !ok {
		return fmt.Errorf("event listening needs the REST controller: %w", ErrNotValid)
	}

	listener, err := eventstream.NewListener(eventstream.ListenerConfig{
		URL:      c.url,
		Token:    ts.Token,
		ClientID: c.clientID,
		Insecure: c.insecure,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create event listener: %w", err)
	}
	if err := listener.Listen(ctx); err != nil {
		return fmt.Errorf("could not connect event stream: %w", err)
	}

	c.guard.Enable()
	c.listener = listener
	c.consumed = make(chan struct{})
	go c.consumeEvents(listener, c.consumed)

	c.logger.Infof("Event listening started")
	return nil
}

// StopEventListening closes the event stream and waits for the consumer to
// drain. Stopping when not listening is a no-op.
func (c *Client) StopEventListening() error {
	c.mu.Lock()
	listener, consumed := c.listener, c.consumed
	c.listener, c.consumed = nil, nil
	c.mu.Unlock()

	if listener == nil {
		return nil
	}

	listener.Close()
	<-consumed
	c.guard.Disable()

	c.logger.Infof("Event listening stopped")
	return nil
}

// EventListening reports whether the event stream is connected and healthy.
func (c *Client) EventListening() bool {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()

	return listener != nil && listener.Alive()
}

func (c *Client) consumeEvents(listener *eventstream.Listener, consumed chan struct{}) {
	defer close(consumed)
	for ev := range listener.Events() {
		c.routeEvent(ev)
	}
}

// routeEvent hands an event to the lab it belongs to. Statistics broadcasts
// and events for labs this client never joined carry nothing for the local
// snapshots and are dropped.
func (c *Client) routeEvent(ev model.Event) {
	switch ev.Type {
	case model.EventTypeLabStats, model.EventTypeSystemStats:
		return
	}

	if ev.LabID == "" {
		c.logger.Debugf("Discarding %s event without a lab ID", ev.Type)
		return
	}

	c.mu.Lock()
	lab, ok := c.labs[ev.LabID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debugf("Discarding event for unjoined lab %s", ev.LabID)
		return
	}

	// A lab deleted event turns the snapshot stale, which also evicts it
	// from the client.
	if err := lab.ApplyEvent(ev); err != nil {
		c.logger.Warningf("Could not apply %s event to lab %s: %s", ev.Type, ev.LabID, err)
	}
}
