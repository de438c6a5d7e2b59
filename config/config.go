// Package config loads the mixvote node configuration from command line
// flags, environment variables (MIXVOTE_ prefix) and an optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/mixvote/log"
	"github.com/vocdoni/mixvote/mixjob"
	"github.com/vocdoni/mixvote/voting"
	"go.vocdoni.io/dvote/db"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "MIXVOTE"

const (
	DefaultAPIHost        = "0.0.0.0"
	DefaultAPIPort        = 9090
	DefaultBlockTime      = 6 * time.Second
	DefaultMixerInterval  = 10 * time.Second
	DefaultMixerParallel  = 4
	DefaultLogLevel       = log.LogLevelInfo
	DefaultLogOutput      = "stdout"
	defaultDatadirDirName = ".mixvote"
)

// Config is the mixvote node configuration.
type Config struct {
	Datadir   string `mapstructure:"datadir"`
	DBType    string `mapstructure:"dbtype"`
	LogLevel  string `mapstructure:"loglevel"`
	LogOutput string `mapstructure:"logoutput"`

	API   APIConfig   `mapstructure:"api"`
	Chain ChainConfig `mapstructure:"chain"`
	Mixer MixerConfig `mapstructure:"mixer"`
}

// APIConfig is the HTTP API listener.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ChainConfig holds the ledger block time and resource limits.
type ChainConfig struct {
	BlockTime         time.Duration `mapstructure:"blocktime"`
	MaxJobs           int           `mapstructure:"maxjobs"`
	MaxCiphertextSize int           `mapstructure:"maxciphertextsize"`
	MaxResultURISize  int           `mapstructure:"maxresulturisize"`
	MaxJobErrorSize   int           `mapstructure:"maxjoberrorsize"`
}

// MixerConfig configures the embedded mix job orchestrator. PrivateKey is the
// hex encoded key of the tally authority account the orchestrator signs with.
type MixerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Parallel   int           `mapstructure:"parallel"`
	PrivateKey string        `mapstructure:"privatekey"`
}

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDatadirDirName
	}
	return filepath.Join(home, defaultDatadirDirName)
}

// Flags returns the flag set understood by Load.
func Flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", "", "optional config file (yaml, json or toml)")
	fs.String("datadir", defaultDatadir(), "data directory for the ledger database")
	fs.String("dbtype", db.TypePebble, "database backend")
	fs.String("loglevel", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("logoutput", DefaultLogOutput, "log output (stdout, stderr or a file path)")

	fs.String("api.host", DefaultAPIHost, "API listen host")
	fs.Int("api.port", DefaultAPIPort, "API listen port")

	fs.Duration("chain.blocktime", DefaultBlockTime, "time between blocks")
	fs.Int("chain.maxjobs", mixjob.DefaultMaxJobs, "maximum number of mix jobs")
	fs.Int("chain.maxciphertextsize", voting.DefaultMaxCiphertextSize, "maximum ballot ciphertext size in bytes")
	fs.Int("chain.maxresulturisize", voting.DefaultMaxResultURISize, "maximum tally result URI size in bytes")
	fs.Int("chain.maxjoberrorsize", mixjob.DefaultMaxErrorMessageSize, "maximum mix job error message size in bytes")

	fs.Bool("mixer.enabled", false, "run the embedded mix job orchestrator")
	fs.Duration("mixer.interval", DefaultMixerInterval, "interval between pending job scans")
	fs.Int("mixer.parallel", DefaultMixerParallel, "number of jobs mixed at the same time")
	fs.String("mixer.privatekey", "", "hex private key of the orchestrator account")
	return fs
}

// Load parses args and merges them with the environment and the config
// file, if any. Flags take precedence over the environment, and the
// environment over the file.
func Load(name string, args []string) (*Config, error) {
	fs := Flags(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("cannot bind flags: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", file, err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Datadir == "" {
		return fmt.Errorf("datadir is required")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", c.API.Port)
	}
	if c.Chain.BlockTime <= 0 {
		return fmt.Errorf("block time must be positive")
	}
	for name, v := range map[string]int{
		"chain.maxjobs":           c.Chain.MaxJobs,
		"chain.maxciphertextsize": c.Chain.MaxCiphertextSize,
		"chain.maxresulturisize":  c.Chain.MaxResultURISize,
		"chain.maxjoberrorsize":   c.Chain.MaxJobErrorSize,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.Mixer.Enabled {
		if c.Mixer.PrivateKey == "" {
			return fmt.Errorf("mixer.privatekey is required when the mixer is enabled")
		}
		if c.Mixer.Interval <= 0 {
			return fmt.Errorf("mixer interval must be positive")
		}
		if c.Mixer.Parallel <= 0 {
			return fmt.Errorf("mixer parallel must be positive")
		}
	}
	return nil
}
