package eventstream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/eventstream"
	"github.com/simlab-dev/simlab/internal/model"
)

// startEventServer runs a WebSocket endpoint that records the auth handshake,
// plays back the given frames and then follows dropAfter.
func startEventServer(t *testing.T, frames []string, dropAfter bool) (string, <-chan map[string]string) {
	t.Helper()

	authCh := make(chan map[string]string, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/ui" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		auth := map[string]string{}
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		authCh <- auth

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if dropAfter {
			return
		}

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return server.URL, authCh
}

func recvEvent(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return model.Event{}
}

func TestListenerDeliversEvents(t *testing.T) {
	frames := []string{
		`{"event_type": "lab_element_event", "event": "modified", "element_type": "node", "lab_id": "lab-1", "element_id": "n1", "data": {"x": 5}}`,
		`this is not json`,
		`{"event_type": "lab_event", "event": "deleted", "lab_id": "lab-1"}`,
	}
	url, authCh := startEventServer(t, frames, false)

	listener, err := eventstream.NewListener(eventstream.ListenerConfig{
		URL:      url,
		Token:    func(ctx context.Context) (string, error) { return "tok-1", nil },
		ClientID: "client-1",
	})
	require.NoError(t, err)

	require.NoError(t, listener.Listen(context.Background()))
	assert.True(t, listener.Alive())

	// The first message on the wire authenticates the session.
	select {
	case auth := <-authCh:
		assert.Equal(t, map[string]string{"token": "tok-1", "client_uuid": "client-1"}, auth)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth handshake")
	}

	// The garbage frame is dropped, both real events come through in order.
	ev := recvEvent(t, listener.Events())
	assert.Equal(t, model.EventTypeLabElement, ev.Type)
	assert.Equal(t, "n1", ev.ElementID)

	ev = recvEvent(t, listener.Events())
	assert.Equal(t, model.EventTypeLab, ev.Type)
	assert.Equal(t, model.EventDeleted, ev.Subtype)

	listener.Close()
	_, ok := <-listener.Events()
	assert.False(t, ok, "event channel should close on Close")
	assert.False(t, listener.Alive())
}

func TestListenerServerDrop(t *testing.T) {
	frames := []string{`{"event_type": "lab_event", "event": "created", "lab_id": "lab-1"}`}
	url, _ := startEventServer(t, frames, true)

	listener, err := eventstream.NewListener(eventstream.ListenerConfig{
		URL:      url,
		Token:    func(ctx context.Context) (string, error) { return "tok-1", nil },
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.NoError(t, listener.Listen(context.Background()))

	recvEvent(t, listener.Events())

	// The server hangs up; listening ends without a Close call.
	select {
	case _, ok := <-listener.Events():
		assert.False(t, ok, "event channel should close when the server drops")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the channel to close")
	}
	assert.False(t, listener.Alive())

	listener.Close()
}

func TestListenerTokenError(t *testing.T) {
	url, _ := startEventServer(t, nil, false)

	listener, err := eventstream.NewListener(eventstream.ListenerConfig{
		URL:      url,
		Token:    func(ctx context.Context) (string, error) { return "", fmt.Errorf("no token for you") },
		ClientID: "client-1",
	})
	require.NoError(t, err)

	err = listener.Listen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token for you")
}

func TestNewListenerConfigValidation(t *testing.T) {
	token := func(ctx context.Context) (string, error) { return "tok", nil }

	tests := map[string]struct {
		config eventstream.ListenerConfig
		expErr bool
	}{
		"A complete config should work": {
			config: eventstream.ListenerConfig{URL: "https://controller.test", Token: token, ClientID: "c1"},
		},
		"Missing URL should fail": {
			config: eventstream.ListenerConfig{Token: token, ClientID: "c1"},
			expErr: true,
		},
		"Missing token source should fail": {
			config: eventstream.ListenerConfig{URL: "https://controller.test", ClientID: "c1"},
			expErr: true,
		},
		"Missing client ID should fail": {
			config: eventstream.ListenerConfig{URL: "https://controller.test", Token: token},
			expErr: true,
		},
		"An unsupported URL scheme should fail": {
			config: eventstream.ListenerConfig{URL: "ftp://controller.test", Token: token, ClientID: "c1"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := eventstream.NewListener(test.config)

			if test.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
