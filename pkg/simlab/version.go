package simlab

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/simlab-dev/simlab/internal/model"
)

// SupportedControllerVersion is the controller release line this SDK tracks.
// Controllers with a different major version are rejected at [New] time;
// newer minor versions work but may expose features this SDK does not cover.
const SupportedControllerVersion = "2.9.0"

// SystemInfo returns the controller's version and readiness.
func (c *Client) SystemInfo(ctx context.Context) (SystemInfo, error) {
	var info model.SystemInfo
	if err := c.api.Get(ctx, "system_information", &info); err != nil {
		return SystemInfo{}, fmt.Errorf("could not fetch system information: %w", err)
	}
	return info, nil
}

func (c *Client) checkControllerVersion(ctx context.Context) error {
	info, err := c.SystemInfo(ctx)
	if err != nil {
		return err
	}
	if !info.Ready {
		c.logger.Warningf("Controller is not ready yet")
	}

	controller, err := parseVersion(info.Version)
	if err != nil {
		c.logger.Warningf("Could not parse controller version %q, skipping compatibility check", info.Version)
		return nil
	}
	supported, err := parseVersion(SupportedControllerVersion)
	if err != nil {
		return fmt.Errorf("could not parse supported version: %w", err)
	}

	if controller.major != supported.major {
		return fmt.Errorf("controller version %s is incompatible with this client (supports %s): %w",
			info.Version, SupportedControllerVersion, ErrNotValid)
	}
	if controller.minor > supported.minor {
		c.logger.Warningf("Controller version %s is newer than this client (%s), some features may be unavailable",
			info.Version, SupportedControllerVersion)
	}

	return nil
}

type version struct {
	major, minor, patch int
}

// parseVersion reads a "major.minor.patch" version, tolerating a leading "v"
// and trailing build or pre-release suffixes ("2.9.0+build.1" parses as
// 2.9.0). The patch part is optional.
func parseVersion(s string) (version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return version{}, fmt.Errorf("version %q: %w", s, ErrNotValid)
	}

	var v version
	var err error
	if v.major, err = strconv.Atoi(parts[0]); err != nil {
		return version{}, fmt.Errorf("version %q: %w", s, ErrNotValid)
	}
	if v.minor, err = strconv.Atoi(parts[1]); err != nil {
		return version{}, fmt.Errorf("version %q: %w", s, ErrNotValid)
	}
	if len(parts) == 3 {
		if v.patch, err = strconv.Atoi(parts[2]); err != nil {
			return version{}, fmt.Errorf("version %q: %w", s, ErrNotValid)
		}
	}
	return v, nil
}
