package simlab

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/simlab-dev/simlab/internal/model"
	"github.com/simlab-dev/simlab/internal/topology"
	"github.com/simlab-dev/simlab/internal/transport"
)

// CreateLab creates a new empty lab on the controller and joins it. An empty
// title lets the controller pick one.
func (c *Client) CreateLab(ctx context.Context, title string) (*Lab, error) {
	body := map[string]interface{}{}
	if title != "" {
		body["title"] = title
	}

	var resp model.ElementFields
	if err := c.api.Post(ctx, "labs", body, &resp); err != nil {
		return nil, fmt.Errorf("could not create lab: %w", err)
	}
	id := resp.ID()
	if id == "" {
		return nil, fmt.Errorf("controller returned no lab ID: %w", ErrDesynchronized)
	}
	if t := resp.Str("title"); t != "" {
		title = t
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lab, err := c.newLabLocked(id, title)
	if err != nil {
		return nil, err
	}

	c.logger.Infof("Created lab %s", id)
	return lab, nil
}

// JoinExistingLab joins a lab that already exists on the controller and
// fetches its full topology. Joining a lab that is already joined returns
// the same [Lab] snapshot, so references held elsewhere stay valid.
//
// Returns [ErrNotFound] if the controller does not know the lab.
func (c *Client) JoinExistingLab(ctx context.Context, labID string) (*Lab, error) {
	c.mu.Lock()
	if lab, ok := c.labs[labID]; ok {
		c.mu.Unlock()
		return lab, nil
	}

	lab, err := c.newLabLocked(labID, "")
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	if err := lab.SyncTopology(ctx); err != nil {
		c.forgetLab(labID)
		return nil, fmt.Errorf("could not join lab %s: %w", labID, err)
	}

	c.logger.Infof("Joined lab %s", labID)
	return lab, nil
}

// ImportLab uploads a topology document as a new lab and joins it. A
// non-empty title overrides the one in the document.
func (c *Client) ImportLab(ctx context.Context, topo Topology, title string) (*Lab, error) {
	path := "import"
	if title != "" {
		path += "?title=" + url.QueryEscape(title)
	}

	var resp model.ElementFields
	if err := c.api.Post(ctx, path, topo, &resp); err != nil {
		return nil, fmt.Errorf("could not import lab: %w", err)
	}
	id := resp.ID()
	if id == "" {
		return nil, fmt.Errorf("controller returned no lab ID: %w", ErrDesynchronized)
	}

	return c.JoinExistingLab(ctx, id)
}

// InspectLab fetches a lab's properties from the controller without joining
// it. The returned fields carry at least id, title, state and created, plus
// element counts.
//
// Returns [ErrNotFound] if the controller does not know the lab.
func (c *Client) InspectLab(ctx context.Context, labID string) (ElementFields, error) {
	var fields model.ElementFields
	if err := c.api.Get(ctx, "labs/"+labID, &fields); err != nil {
		if transport.IsNotFound(err) {
			return nil, fmt.Errorf("lab %s: %w", labID, ErrNotFound)
		}
		return nil, fmt.Errorf("could not inspect lab %s: %w", labID, err)
	}
	return fields, nil
}

// GetLocalLab returns an already-joined lab without touching the controller.
//
// Returns [ErrNotFound] if the lab was never joined (or was evicted after a
// deletion event).
func (c *Client) GetLocalLab(labID string) (*Lab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lab, ok := c.labs[labID]
	if !ok {
		return nil, fmt.Errorf("lab %s: %w", labID, ErrNotFound)
	}
	return lab, nil
}

// JoinedLabs returns the labs this client has joined, sorted by ID.
func (c *Client) JoinedLabs() []*Lab {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.labs))
	for id := range c.labs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	labs := make([]*Lab, 0, len(ids))
	for _, id := range ids {
		labs = append(labs, c.labs[id])
	}
	return labs
}

// Labs lists lab IDs known to the controller. With showAll the controller
// includes labs owned by other users, permissions allowing.
func (c *Client) Labs(ctx context.Context, showAll bool) ([]string, error) {
	path := "labs"
	if showAll {
		path += "?show_all=true"
	}

	var ids []string
	if err := c.api.Get(ctx, path, &ids); err != nil {
		return nil, fmt.Errorf("could not list labs: %w", err)
	}
	return ids, nil
}

// FindLabsByTitle joins every lab on the controller whose title matches
// exactly and returns them.
func (c *Client) FindLabsByTitle(ctx context.Context, title string) ([]*Lab, error) {
	ids, err := c.Labs(ctx, true)
	if err != nil {
		return nil, err
	}

	var labs []*Lab
	for _, id := range ids {
		fields, err := c.InspectLab(ctx, id)
		if err != nil {
			return nil, err
		}
		if fields.Str("title") != title {
			continue
		}

		lab, err := c.JoinExistingLab(ctx, id)
		if err != nil {
			return nil, err
		}
		labs = append(labs, lab)
	}
	return labs, nil
}

// RemoveLab deletes a lab on the controller. A joined snapshot of the lab
// becomes stale and is evicted from the client.
//
// Returns [ErrNotFound] if the controller does not know the lab.
func (c *Client) RemoveLab(ctx context.Context, labID string) error {
	c.mu.Lock()
	lab, joined := c.labs[labID]
	c.mu.Unlock()

	if joined {
		// Turning stale evicts the snapshot from the client.
		return lab.Remove(ctx)
	}

	if err := c.api.Delete(ctx, "labs/"+labID); err != nil {
		if transport.IsNotFound(err) {
			return fmt.Errorf("lab %s: %w", labID, ErrNotFound)
		}
		return fmt.Errorf("could not remove lab %s: %w", labID, err)
	}
	c.logger.Infof("Removed lab %s", labID)
	return nil
}

// newLabLocked builds the local snapshot for a lab and registers it.
// c.mu must be held.
func (c *Client) newLabLocked(id, title string) (*topology.Lab, error) {
	lab, err := topology.NewLab(topology.LabConfig{
		ID:                    id,
		Title:                 title,
		API:                   c.api,
		Guard:                 c.guard,
		OnStale:               c.forgetLab,
		Username:              c.username,
		AutoSyncInterval:      c.autoSyncInterval,
		ExcludeConfigurations: c.excludeConfigurations,
		Logger:                c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create lab snapshot: %w", err)
	}

	c.labs[id] = lab
	return lab, nil
}

func (c *Client) forgetLab(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.labs, id)
}
