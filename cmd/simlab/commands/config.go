package commands

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simlab-dev/simlab/pkg/simlab"
)

// connectionFile is the on-disk connection configuration. Command line flags
// take precedence over anything set here.
type connectionFile struct {
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Token      string `yaml:"token"`
	Insecure   bool   `yaml:"insecure"`
	Controller string `yaml:"controller"`
}

func loadConnectionFile(path string) (connectionFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// A missing config file is fine, flags may carry everything.
		return connectionFile{}, nil
	}
	if err != nil {
		return connectionFile{}, fmt.Errorf("could not read config file %s: %w", path, err)
	}

	file := connectionFile{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return connectionFile{}, fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	return file, nil
}

// newClientConfig merges the command line flags with the connection config
// file into a client configuration. Flags win over file values.
func newClientConfig(rootCmd *RootCommand) (simlab.Config, error) {
	file, err := loadConnectionFile(rootCmd.ConfigPath)
	if err != nil {
		return simlab.Config{}, err
	}

	pick := func(flag, fileValue string) string {
		if flag != "" {
			return flag
		}
		return fileValue
	}

	return simlab.Config{
		URL:        pick(rootCmd.URL, file.URL),
		Username:   pick(rootCmd.Username, file.Username),
		Password:   pick(rootCmd.Password, file.Password),
		Token:      pick(rootCmd.Token, file.Token),
		Insecure:   rootCmd.Insecure || file.Insecure,
		Controller: simlab.ControllerType(pick(rootCmd.Controller, file.Controller)),
		Logger:     rootCmd.Logger,
	}, nil
}

// newClient connects to the controller configured by flags and config file.
func newClient(ctx context.Context, rootCmd *RootCommand) (*simlab.Client, error) {
	cfg, err := newClientConfig(rootCmd)
	if err != nil {
		return nil, err
	}

	client, err := simlab.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the controller: %w", err)
	}

	return client, nil
}
