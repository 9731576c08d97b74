// Package fake implements an in-memory controller.
//
// It serves the same REST surface a real controller does, at the path level,
// so the SDK can run against it without a network. Labs, elements and their
// states live in process memory; lifecycle operations complete instantly.
package fake

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/transport"
)

// Version is the controller version the fake reports.
const Version = "2.9.0"

// Config is the configuration for the fake controller.
type Config struct {
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "controller.Fake"})
	return nil
}

// Controller is a fake implementation of the controller REST API.
// It implements transport.API. Safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	labs       map[string]*lab
	labOrder   []string
	macCounter uint32
	logger     log.Logger
}

// New creates a new fake controller.
func New(cfg Config) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Controller{
		labs:   map[string]*lab{},
		logger: cfg.Logger,
	}, nil
}

func (c *Controller) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Controller) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Controller) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Controller) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Controller) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Controller) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rawPath := path
	query := url.Values{}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		rawPath = path[:i]
		q, err := url.ParseQuery(path[i+1:])
		if err != nil {
			return badRequest("unparsable query in %q", path)
		}
		query = q
	}
	segs := strings.Split(strings.Trim(rawPath, "/"), "/")

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.route(method, segs, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return reencode(resp, out)
}

func (c *Controller) route(method string, segs []string, query url.Values, body interface{}) (interface{}, error) {
	switch segs[0] {
	case "system_information":
		if len(segs) == 1 && method == http.MethodGet {
			return model.SystemInfo{Version: Version, Ready: true}, nil
		}
	case "labs":
		if len(segs) == 1 {
			switch method {
			case http.MethodGet:
				return append([]string{}, c.labOrder...), nil
			case http.MethodPost:
				return c.createLab(body)
			}
			return nil, methodNotAllowed(method, "labs")
		}
		l, ok := c.labs[segs[1]]
		if !ok {
			return nil, notFoundErr("lab %s not found", segs[1])
		}
		return c.routeLab(l, method, segs[2:], query, body)
	case "import":
		if len(segs) == 1 && method == http.MethodPost {
			return c.importLab(query, body)
		}
	}

	return nil, notFoundErr("no such endpoint: %s", strings.Join(segs, "/"))
}

func (c *Controller) createLab(body interface{}) (interface{}, error) {
	var req struct {
		Title string `json:"title"`
	}
	if err := reencode(body, &req); err != nil {
		return nil, badRequest("unparsable lab request: %s", err)
	}

	l := c.newLab(req.Title)
	c.logger.Infof("Created lab %s (%s)", l.id, l.props.Title)
	return l.document(), nil
}

func (c *Controller) newLab(title string) *lab {
	id := newID()
	if title == "" {
		title = "Lab at " + time.Now().UTC().Format("15:04:05")
	}

	l := &lab{
		id: id,
		props: model.LabProperties{
			Title:   title,
			Owner:   "admin",
			State:   model.StateDefined,
			Created: time.Now().UTC().Format(time.RFC3339),
		},
		nodes:       newTable(),
		ifaces:      newTable(),
		links:       newTable(),
		annotations: newTable(),
		smartAnnos:  newTable(),
		conditions:  map[string]*model.LinkCondition{},
	}

	c.labs[id] = l
	c.labOrder = append(c.labOrder, id)
	return l
}

func (c *Controller) removeLab(l *lab) {
	delete(c.labs, l.id)
	for i, id := range c.labOrder {
		if id == l.id {
			c.labOrder = append(c.labOrder[:i], c.labOrder[i+1:]...)
			break
		}
	}
	c.logger.Infof("Removed lab %s", l.id)
}

func (c *Controller) importLab(query url.Values, body interface{}) (interface{}, error) {
	var topo model.Topology
	if err := reencode(body, &topo); err != nil {
		return nil, badRequest("unparsable topology: %s", err)
	}

	title := query.Get("title")
	if title == "" {
		title = topo.Lab.Title
	}

	l := c.newLab(title)
	l.props.Description = topo.Lab.Description
	l.props.Notes = topo.Lab.Notes

	for _, fields := range topo.Nodes {
		l.nodes.put(fields.ID(), &element{fields: fields.Clone(), state: model.StateDefined})
	}
	for _, fields := range topo.Interfaces {
		l.ifaces.put(fields.ID(), &element{fields: fields.Clone(), state: model.StateDefined})
	}
	for _, fields := range topo.Links {
		l.links.put(fields.ID(), &element{fields: fields.Clone(), state: model.StateDefined})
	}
	for _, fields := range topo.Annotations {
		l.annotations.put(fields.ID(), &element{fields: fields.Clone()})
	}
	for _, fields := range topo.SmartAnnotations {
		l.smartAnnos.put(fields.ID(), &element{fields: fields.Clone()})
	}

	c.logger.Infof("Imported lab %s (%s)", l.id, title)
	return model.ElementFields{"id": l.id}, nil
}

// element is one stored lab element: its document plus runtime state.
type element struct {
	fields model.ElementFields
	state  string
}

// table keeps elements in creation order, the order the controller reports
// them in topology documents.
type table struct {
	order []string
	items map[string]*element
}

func newTable() *table {
	return &table{items: map[string]*element{}}
}

func (t *table) get(id string) (*element, bool) {
	e, ok := t.items[id]
	return e, ok
}

func (t *table) put(id string, e *element) {
	if _, ok := t.items[id]; !ok {
		t.order = append(t.order, id)
	}
	t.items[id] = e
}

func (t *table) delete(id string) {
	if _, ok := t.items[id]; !ok {
		return
	}
	delete(t.items, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (t *table) ids() []string {
	return append([]string{}, t.order...)
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// reencode roundtrips a value through JSON, giving the caller exactly what
// it would have decoded from a real response body.
func reencode(in, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("unencodable value: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func httpErr(status int, format string, args ...interface{}) error {
	desc, _ := json.Marshal(map[string]string{"description": fmt.Sprintf(format, args...)})
	return &transport.HTTPError{StatusCode: status, Body: string(desc)}
}

func notFoundErr(format string, args ...interface{}) error {
	return httpErr(http.StatusNotFound, format, args...)
}

func badRequest(format string, args ...interface{}) error {
	return httpErr(http.StatusBadRequest, format, args...)
}

func methodNotAllowed(method, path string) error {
	return httpErr(http.StatusMethodNotAllowed, "%s not allowed on %s", method, path)
}
