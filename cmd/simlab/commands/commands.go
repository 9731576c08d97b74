package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/pkg/simlab"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string

	// Connection flags. Empty values fall back to the config file.
	URL        string
	Username   string
	Password   string
	Token      string
	Insecure   bool
	Controller string
	ConfigPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	app.Flag("url", "Base URL of the controller API.").Envar("SIMLAB_URL").StringVar(&c.URL)
	app.Flag("username", "Controller username.").Envar("SIMLAB_USERNAME").StringVar(&c.Username)
	app.Flag("password", "Controller password.").Envar("SIMLAB_PASSWORD").StringVar(&c.Password)
	app.Flag("token", "Pre-issued controller API token, skips username and password authentication.").Envar("SIMLAB_TOKEN").StringVar(&c.Token)
	app.Flag("insecure", "Skip TLS certificate verification.").BoolVar(&c.Insecure)
	app.Flag("controller", "Selects the controller type.").EnumVar(&c.Controller, string(simlab.ControllerREST), string(simlab.ControllerFake))

	defaultConfigPath := filepath.Join(homedir.HomeDir(), ".simlab", "config.yaml")
	app.Flag("config", "Path to the connection config file.").Envar("SIMLAB_CONFIG").Default(defaultConfigPath).StringVar(&c.ConfigPath)

	return c
}
