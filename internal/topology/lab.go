// Package topology keeps a local mirror of a lab's entity graph (nodes,
// interfaces, links, annotations) consistent with the controller. The mirror
// is refreshed through three channels that all feed the same registries: full
// topology snapshots, per-category timed polling, and push events.
package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

const (
	// DefaultWaitTime is the pause between convergence checks.
	DefaultWaitTime = 5 * time.Second
	// DefaultWaitMaxIterations bounds a convergence wait.
	DefaultWaitMaxIterations = 500
	// DefaultAutoSyncInterval is how stale a sync category may get before an
	// accessor refreshes it.
	DefaultAutoSyncInterval = 1 * time.Second
)

// LabConfig is the configuration of a local lab mirror.
type LabConfig struct {
	// ID is the server-assigned lab ID.
	ID string
	// Title seeds the local title until the first sync.
	Title string
	// API is the controller transport.
	API transport.API
	// Guard serializes mutation while event listening is active. Optional;
	// nil means unsynchronized single-goroutine use.
	Guard *Guard
	// OnStale is called once when the lab turns stale, with the lab ID.
	// Optional. Owners use it to evict the lab from their registries. It runs
	// while the lab is locked and must not call back into the lab.
	OnStale func(labID string)
	// Username is the owner fallback when snapshots omit the owner field.
	Username string
	// AutoSyncInterval tunes the per-category refresh gates. Zero or
	// negative disables automatic refresh entirely.
	AutoSyncInterval time.Duration
	// ExcludeConfigurations skips node configuration text on topology
	// fetches until a caller asks for it.
	ExcludeConfigurations bool
	// WaitTime is the pause between convergence checks.
	WaitTime time.Duration
	// WaitMaxIterations bounds convergence waits.
	WaitMaxIterations int
	// Logger is the logger.
	Logger log.Logger
}

func (c *LabConfig) defaults() error {
	if c.ID == "" {
		return fmt.Errorf("lab ID is required")
	}
	if c.API == nil {
		return fmt.Errorf("controller API is required")
	}
	if c.WaitTime <= 0 {
		c.WaitTime = DefaultWaitTime
	}
	if c.WaitMaxIterations <= 0 {
		c.WaitMaxIterations = DefaultWaitMaxIterations
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "topology.Lab", "lab-id": c.ID})

	return nil
}

// Lab is the root aggregate: the local mirror of one lab on the controller.
// Entities are handed out as pointers and updated in place, so references
// held by callers stay valid across syncs.
type Lab struct {
	id       string
	api      transport.API
	guard    *Guard
	onStale  func(string)
	logger   log.Logger
	username string

	title       string
	description string
	notes       string
	owner       string
	state       string
	created     string
	stale       bool

	nodes            *registry[*Node]
	interfaces       *registry[*Interface]
	links            *registry[*Link]
	annotations      *registry[*Annotation]
	smartAnnotations *registry[*SmartAnnotation]

	autoSyncInterval time.Duration
	initialized      bool

	// excludeConfigurations is the fetch policy; configurationsExcluded
	// records whether the last completed topology sync actually skipped the
	// configuration text, which forces the next sync to be full when a
	// caller needs it.
	excludeConfigurations  bool
	configurationsExcluded bool

	topologySynced    time.Time
	statesSynced      time.Time
	statisticsSynced  time.Time
	layer3Synced      time.Time
	operationalSynced time.Time

	waitTime          time.Duration
	waitMaxIterations int
}

// NewLab creates a local mirror for the given lab ID. No network traffic
// happens until the first sync or accessor.
func NewLab(cfg LabConfig) (*Lab, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Lab{
		id:                    cfg.ID,
		title:                 cfg.Title,
		api:                   cfg.API,
		guard:                 cfg.Guard,
		onStale:               cfg.OnStale,
		logger:                cfg.Logger,
		username:              cfg.Username,
		nodes:                 newRegistry[*Node](),
		interfaces:            newRegistry[*Interface](),
		links:                 newRegistry[*Link](),
		annotations:           newRegistry[*Annotation](),
		smartAnnotations:      newRegistry[*SmartAnnotation](),
		autoSyncInterval:      cfg.AutoSyncInterval,
		excludeConfigurations: cfg.ExcludeConfigurations,
		waitTime:              cfg.WaitTime,
		waitMaxIterations:     cfg.WaitMaxIterations,
	}, nil
}

// ID returns the lab ID. Always available, even on stale labs.
func (l *Lab) ID() string { return l.id }

// Stale reports whether the lab is known to be gone from the controller.
func (l *Lab) Stale() bool {
	defer l.guard.Lock()()
	return l.stale
}

// AutoSyncInterval returns the current auto-sync interval.
func (l *Lab) AutoSyncInterval() time.Duration {
	defer l.guard.Lock()()
	return l.autoSyncInterval
}

// SetAutoSyncInterval changes the auto-sync interval for this lab. Zero or
// negative disables automatic refresh.
func (l *Lab) SetAutoSyncInterval(d time.Duration) {
	defer l.guard.Lock()()
	l.autoSyncInterval = d
}

func (l *Lab) url(suffix string) string {
	return "labs/" + l.id + suffix
}

// fail translates a controller 404 into lab staleness and the domain
// not-found error; everything else propagates unchanged.
func (l *Lab) fail(err error) error {
	if transport.IsNotFound(err) {
		l.markStaleLocked()
		return notFound("lab", l.id)
	}
	return err
}

// markStaleLocked marks the lab and every owned entity stale, then notifies
// the owner. Staleness is terminal, so marking twice is a no-op.
func (l *Lab) markStaleLocked() {
	if l.stale {
		return
	}
	l.stale = true
	for _, n := range l.nodes.values() {
		n.stale = true
	}
	for _, i := range l.interfaces.values() {
		i.stale = true
	}
	for _, lnk := range l.links.values() {
		lnk.stale = true
	}
	for _, a := range l.annotations.values() {
		a.stale = true
	}
	for _, sa := range l.smartAnnotations.values() {
		sa.stale = true
	}
	if l.onStale != nil {
		l.onStale(l.id)
	}
}

// --- Lab properties ---

// Title returns the lab title.
func (l *Lab) Title(ctx context.Context) (string, error) {
	defer l.guard.Lock()()
	if l.stale {
		return "", gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return "", err
	}
	return l.title, nil
}

// SetTitle renames the lab.
func (l *Lab) SetTitle(ctx context.Context, title string) error {
	return l.setPropertyAndStore(ctx, "title", title, &l.title)
}

// Description returns the lab description.
func (l *Lab) Description(ctx context.Context) (string, error) {
	defer l.guard.Lock()()
	if l.stale {
		return "", gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return "", err
	}
	return l.description, nil
}

// SetDescription updates the lab description.
func (l *Lab) SetDescription(ctx context.Context, description string) error {
	return l.setPropertyAndStore(ctx, "description", description, &l.description)
}

// Notes returns the lab notes.
func (l *Lab) Notes(ctx context.Context) (string, error) {
	defer l.guard.Lock()()
	if l.stale {
		return "", gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return "", err
	}
	return l.notes, nil
}

// SetNotes updates the lab notes.
func (l *Lab) SetNotes(ctx context.Context, notes string) error {
	return l.setPropertyAndStore(ctx, "notes", notes, &l.notes)
}

// Owner returns the lab owner username.
func (l *Lab) Owner(ctx context.Context) (string, error) {
	defer l.guard.Lock()()
	if l.stale {
		return "", gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return "", err
	}
	return l.owner, nil
}

// State returns the lab state.
func (l *Lab) State(ctx context.Context) (string, error) {
	defer l.guard.Lock()()
	if l.stale {
		return "", gone("lab", l.id)
	}
	if err := l.syncStatesIfOutdatedLocked(ctx); err != nil {
		return "", err
	}
	return l.state, nil
}

// Created returns the lab creation time, zero when the controller did not
// report one.
func (l *Lab) Created(ctx context.Context) (time.Time, error) {
	defer l.guard.Lock()()
	if l.stale {
		return time.Time{}, gone("lab", l.id)
	}
	if err := l.syncTopologyIfOutdatedLocked(ctx, false); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, l.created)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (l *Lab) setPropertyAndStore(ctx context.Context, key, value string, store *string) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	err := l.api.Patch(ctx, l.url(""), map[string]interface{}{key: value}, nil)
	if err != nil {
		return l.fail(err)
	}
	*store = value
	return nil
}

// --- Lifecycle ---

// Start starts every stopped node in the lab.
func (l *Lab) Start(ctx context.Context) error {
	return l.putState(ctx, "/start")
}

// Stop stops every running node in the lab.
func (l *Lab) Stop(ctx context.Context) error {
	return l.putState(ctx, "/stop")
}

// Wipe wipes the runtime state of every node in the lab.
func (l *Lab) Wipe(ctx context.Context) error {
	return l.putState(ctx, "/wipe")
}

func (l *Lab) putState(ctx context.Context, action string) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if err := l.api.Put(ctx, l.url(action), nil, nil); err != nil {
		return l.fail(err)
	}
	return nil
}

// Remove deletes the lab on the controller and marks the local mirror and
// all its entities stale.
func (l *Lab) Remove(ctx context.Context) error {
	defer l.guard.Lock()()
	if l.stale {
		return gone("lab", l.id)
	}
	if err := l.api.Delete(ctx, l.url("")); err != nil {
		return l.fail(err)
	}
	l.logger.Infof("Removed lab %s", l.id)
	l.markStaleLocked()
	return nil
}

// ExportTopology assembles a topology document from the local mirror after a
// full refresh including configuration text.
func (l *Lab) ExportTopology(ctx context.Context) (model.Topology, error) {
	defer l.guard.Lock()()
	if l.stale {
		return model.Topology{}, gone("lab", l.id)
	}
	if err := l.syncTopologyLocked(ctx, false); err != nil {
		return model.Topology{}, err
	}

	doc := model.Topology{
		Lab: model.LabProperties{
			Title:       l.title,
			Description: l.description,
			Notes:       l.notes,
			Owner:       l.owner,
		},
	}
	for _, n := range l.nodes.values() {
		doc.Nodes = append(doc.Nodes, n.topologyFieldsLocked())
	}
	for _, i := range l.interfaces.values() {
		doc.Interfaces = append(doc.Interfaces, i.topologyFieldsLocked())
	}
	for _, lnk := range l.links.values() {
		doc.Links = append(doc.Links, lnk.topologyFieldsLocked())
	}
	for _, a := range l.annotations.values() {
		doc.Annotations = append(doc.Annotations, a.topologyFieldsLocked())
	}
	for _, sa := range l.smartAnnotations.values() {
		doc.SmartAnnotations = append(doc.SmartAnnotations, sa.topologyFieldsLocked())
	}

	return doc, nil
}
