package simlab

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/simlab-dev/simlab/internal/controller/fake"
	"github.com/simlab-dev/simlab/internal/eventstream"
	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/internal/topology"
	"github.com/simlab-dev/simlab/internal/transport"
)

// ControllerType selects how the client reaches a controller.
type ControllerType string

const (
	// ControllerREST talks to a real controller over its REST API.
	ControllerREST ControllerType = "rest"

	// ControllerFake uses an in-memory controller (no network).
	// Use this for unit testing without a running controller.
	ControllerFake ControllerType = "fake"
)

// Config configures the SDK client.
//
// For [ControllerREST] (the default), URL plus either Token or
// Username/Password are required. [ControllerFake] needs no connection
// settings at all; an empty Config{Controller: ControllerFake} works.
type Config struct {
	// URL is the controller base URL (e.g. "https://sim.example.com").
	// Required for [ControllerREST].
	URL string

	// Username and Password authenticate against the controller.
	Username string
	Password string

	// Token is an optional pre-issued bearer token. When it expires the
	// client falls back to Username/Password.
	Token string

	// Insecure skips TLS certificate verification. Lab controllers
	// commonly run with self-signed certificates.
	Insecure bool

	// Controller selects the controller implementation.
	// Default: [ControllerREST]. Set [ControllerFake] for testing.
	Controller ControllerType

	// AutoSyncInterval is how stale a lab's cached data may get before a
	// read triggers a refresh from the controller. Zero means
	// [DefaultAutoSyncInterval]; negative disables automatic refresh so
	// only explicit Sync calls and events update the cache.
	AutoSyncInterval time.Duration

	// ExcludeConfigurations skips node configuration text on topology
	// fetches until some caller actually reads a configuration. Saves
	// bandwidth on large labs.
	ExcludeConfigurations bool

	// EventListening opens the controller's WebSocket event stream right
	// away, keeping joined labs current without polling. It can also be
	// started later with [Client.StartEventListening].
	EventListening bool

	// SkipVersionCheck disables the controller compatibility check that
	// [New] performs.
	SkipVersionCheck bool

	// HTTPClient overrides the default HTTP client. Only used by
	// [ControllerREST].
	HTTPClient *http.Client

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Controller == "" {
		c.Controller = ControllerREST
	}

	if c.AutoSyncInterval == 0 {
		c.AutoSyncInterval = DefaultAutoSyncInterval
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "simlab.Client"})

	return nil
}

// Client is the main SDK entry point for working with labs on a controller.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	api      transport.API
	logger   log.Logger
	url      string
	username string
	insecure bool

	// clientID identifies this session on the event stream so the
	// controller can tell clients apart.
	clientID string

	autoSyncInterval      time.Duration
	excludeConfigurations bool

	// guard serializes lab cache mutation between callers and the event
	// consumer. Disabled (free) until event listening starts.
	guard *topology.Guard

	mu       sync.Mutex
	labs     map[string]*topology.Lab
	listener *eventstream.Listener
	consumed chan struct{}
}

// New creates a new SDK client and verifies the controller is reachable and
// version-compatible (unless [Config.SkipVersionCheck] is set).
//
// The caller must call [Client.Close] when done to stop event listening.
// Typically used with defer:
//
//	client, err := simlab.New(ctx, simlab.Config{
//	    URL:      "https://sim.example.com",
//	    Username: "admin",
//	    Password: "secret",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	api, err := newAPI(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		api:                   api,
		logger:                cfg.Logger,
		url:                   cfg.URL,
		username:              cfg.Username,
		insecure:              cfg.Insecure,
		clientID:              ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		autoSyncInterval:      cfg.AutoSyncInterval,
		excludeConfigurations: cfg.ExcludeConfigurations,
		guard:                 &topology.Guard{},
		labs:                  map[string]*topology.Lab{},
	}

	if !cfg.SkipVersionCheck {
		if err := c.checkControllerVersion(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.EventListening {
		if err := c.StartEventListening(ctx); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func newAPI(cfg Config) (transport.API, error) {
	switch cfg.Controller {
	case ControllerREST:
		client, err := transport.NewClient(transport.ClientConfig{
			URL:        cfg.URL,
			Username:   cfg.Username,
			Password:   cfg.Password,
			Token:      cfg.Token,
			Insecure:   cfg.Insecure,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create REST client: %w", err)
		}
		return client, nil
	case ControllerFake:
		controller, err := fake.New(fake.Config{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create fake controller: %w", err)
		}
		return controller, nil
	default:
		return nil, fmt.Errorf("unsupported controller type: %s: %w", cfg.Controller, ErrNotValid)
	}
}

// Close stops event listening and releases client resources. Joined lab
// snapshots stay usable for cached reads but no longer receive events.
func (c *Client) Close() error {
	return c.StopEventListening()
}
