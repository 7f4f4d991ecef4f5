package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/basaltchain/basalt/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file containing the list of
	// known peers
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel       = "debug"
	DefaultBindAddr       = "127.0.0.1:1337"
	DefaultServiceAddr    = "127.0.0.1:8000"
	DefaultMaxPool        = 2
	DefaultTCPTimeout     = 1000 * time.Millisecond
	DefaultStore          = false
	DefaultPruningHorizon = 720
	DefaultHeaderBatch    = 250
	DefaultKernelBatch    = 500
	DefaultOutputBatch    = 500
	DefaultBlockFanout    = 3
	DefaultMaxSyncPeers   = 8
	DefaultFetchTimeout   = 10 * time.Second
	DefaultWaitingBackoff = 30 * time.Second
	DefaultSilenceTimeout = 60 * time.Second
)

// Config contains all the configuration properties of a basalt node.
type Config struct {
	// DataDir is the top-level directory containing basalt configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates all log output to the given file.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node talks to other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// MaxPool controls how many connections are pooled per target in the sync
	// transport.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of transport RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether or not to load the chain from an existing
	// database file. Forces Store, ie. bootstrap only works with a persistant
	// database store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// PruningHorizon is the depth beyond which a height deficit requires a
	// horizon-state transfer before block sync.
	PruningHorizon uint64 `mapstructure:"pruning-horizon"`

	// HeaderBatch is the number of headers requested per fetch during header
	// sync.
	HeaderBatch int `mapstructure:"header-batch"`

	// KernelBatch is the number of kernels requested per fetch during horizon
	// sync.
	KernelBatch int `mapstructure:"kernel-batch"`

	// OutputBatch is the number of outputs requested per fetch during horizon
	// sync.
	OutputBatch int `mapstructure:"output-batch"`

	// BlockFanout is the maximum number of peers a block fetch is raced
	// across during block sync.
	BlockFanout int `mapstructure:"block-fanout"`

	// MaxSyncPeers caps the number of candidates handed to a sync phase.
	MaxSyncPeers int `mapstructure:"max-sync-peers"`

	// FetchTimeout bounds a single peer request during sync.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`

	// WaitingBackoff is the cooldown after a failed sync round.
	WaitingBackoff time.Duration `mapstructure:"waiting-backoff"`

	// SilenceTimeout is how long the node tolerates an empty peer set before
	// declaring network silence.
	SilenceTimeout time.Duration `mapstructure:"silence-timeout"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       DefaultLogLevel,
		BindAddr:       DefaultBindAddr,
		ServiceAddr:    DefaultServiceAddr,
		MaxPool:        DefaultMaxPool,
		TCPTimeout:     DefaultTCPTimeout,
		Store:          DefaultStore,
		DatabaseDir:    DefaultDatabaseDir(),
		PruningHorizon: DefaultPruningHorizon,
		HeaderBatch:    DefaultHeaderBatch,
		KernelBatch:    DefaultKernelBatch,
		OutputBatch:    DefaultOutputBatch,
		BlockFanout:    DefaultBlockFanout,
		MaxSyncPeers:   DefaultMaxSyncPeers,
		FetchTimeout:   DefaultFetchTimeout,
		WaitingBackoff: DefaultWaitingBackoff,
		SilenceTimeout: DefaultSilenceTimeout,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level basalt directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeersFile returns the full path of the file containing the peer list.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "basalt".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			if _, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
				c.logger.Infof("Failed to open %s, using default stderr", c.LogFile)
			} else {
				pathMap := lfshook.PathMap{}
				for _, level := range logrus.AllLevels {
					if level <= c.logger.Level {
						pathMap[level] = c.LogFile
					}
				}
				c.logger.Hooks.Add(lfshook.NewHook(
					pathMap,
					&logrus.TextFormatter{},
				))
			}
		}
	}
	return c.logger.WithField("prefix", "basalt")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level basalt config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Basalt")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Basalt")
		} else {
			return filepath.Join(home, ".basalt")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
