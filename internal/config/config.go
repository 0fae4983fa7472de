// Package config handles the parsing and validation of application
// configuration from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/craftping/internal/logger"
	"github.com/woozymasta/craftping/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Query   Query         `group:"Query Options" env-namespace:"CRAFTPING"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"CRAFTPING_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"CRAFTPING_GEOIP"`
	Watch   Watch         `group:"Watch Options" env-namespace:"CRAFTPING"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"CRAFTPING_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`

	Args struct {
		Servers []string `positional-arg-name:"host[:port]" description:"Servers to query"`
	} `positional-args:"true"`
}

// Query holds the per-server exchange configuration.
type Query struct {
	// betteralign:ignore

	Timeout  time.Duration `short:"t" long:"timeout" env:"TIMEOUT" description:"Connection and exchange timeout" default:"5s"`
	Debug    bool          `short:"d" long:"debug" env:"DEBUG" description:"Print raw packet IO and the protocol version"`
	NoSRV    bool          `long:"no-srv" env:"NO_SRV" description:"Skip the _minecraft._tcp SRV lookup"`
	SaveIcon bool          `short:"s" long:"save-icon" description:"Save the server icon to <host>.png"`
	Force    bool          `long:"force" description:"Overwrite an existing icon file"`
}

// Storage holds history database configuration.
type Storage struct {
	// betteralign:ignore

	Path    string `long:"path" env:"PATH" description:"Path to the SQLite history database (empty disables history)"`
	History int    `short:"n" long:"history" description:"Print the last N stored results for each server and exit"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables country lookup)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Watch holds repeated-query mode configuration.
type Watch struct {
	// betteralign:ignore

	Enabled  bool          `short:"w" long:"watch" env:"WATCH" description:"Keep querying all given servers on an interval"`
	Interval time.Duration `long:"watch-interval" env:"WATCH_INTERVAL" description:"Delay between query rounds" default:"30s"`
	Workers  int           `long:"watch-workers" env:"WATCH_WORKERS" description:"Concurrent query workers" default:"4"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the
// help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if len(cfg.Args.Servers) == 0 {
		fmt.Fprintln(os.Stderr, "At least one server address is required, see --help")
		os.Exit(1)
	}

	if cfg.Storage.History > 0 && cfg.Storage.Path == "" {
		fmt.Fprintln(os.Stderr, "--db-history requires a history database, set --db-path")
		os.Exit(1)
	}

	return &cfg
}
