package simlab

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sdk "github.com/simlab-dev/simlab/pkg/simlab"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	URL            string
	Username       string
	Password       string
	Token          string
	Insecure       bool
	NodeDefinition string
}

func (c *Config) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("controller URL is required (SIMLAB_INTEGRATION_URL)")
	}

	if c.Token == "" && c.Username == "" {
		return fmt.Errorf("credentials are required (SIMLAB_INTEGRATION_TOKEN or SIMLAB_INTEGRATION_USERNAME/PASSWORD)")
	}

	if c.NodeDefinition == "" {
		c.NodeDefinition = "iosv"
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation     = "SIMLAB_INTEGRATION"
		envURL            = "SIMLAB_INTEGRATION_URL"
		envUsername       = "SIMLAB_INTEGRATION_USERNAME"
		envPassword       = "SIMLAB_INTEGRATION_PASSWORD"
		envToken          = "SIMLAB_INTEGRATION_TOKEN"
		envInsecure       = "SIMLAB_INTEGRATION_INSECURE"
		envNodeDefinition = "SIMLAB_INTEGRATION_NODE_DEFINITION"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		URL:            os.Getenv(envURL),
		Username:       os.Getenv(envUsername),
		Password:       os.Getenv(envPassword),
		Token:          os.Getenv(envToken),
		Insecure:       os.Getenv(envInsecure) == "true",
		NodeDefinition: os.Getenv(envNodeDefinition),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// UniqueTitle generates a unique lab title for test isolation.
func UniqueTitle(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// NewTestClient creates an SDK client against the configured controller.
func NewTestClient(t *testing.T, config Config) *sdk.Client {
	t.Helper()

	ctx := context.Background()
	client, err := sdk.New(ctx, sdk.Config{
		URL:      config.URL,
		Username: config.Username,
		Password: config.Password,
		Token:    config.Token,
		Insecure: config.Insecure,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// CleanupLab registers a cleanup function that tears a lab down: stop, wipe
// and remove, so a failed test does not leave labs behind on the controller.
func CleanupLab(t *testing.T, lab *sdk.Lab) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()
		// Best effort cleanup.
		_ = lab.Stop(ctx)
		_ = lab.Wipe(ctx)
		_ = lab.Remove(ctx)
	})
}
