package node

import (
	"testing"
	"time"

	"github.com/basaltchain/basalt/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of the sync state machine.
type Config struct {
	// PruningHorizon is the depth beyond which a height deficit is classified
	// as LaggingBehindHorizon rather than Lagging.
	PruningHorizon uint64 `mapstructure:"pruning-horizon"`

	// HeaderBatchSize is the number of headers requested per fetch.
	HeaderBatchSize int `mapstructure:"header-batch"`

	// KernelBatchSize is the number of kernels requested per fetch during
	// horizon sync.
	KernelBatchSize int `mapstructure:"kernel-batch"`

	// OutputBatchSize is the number of outputs requested per fetch during
	// horizon sync.
	OutputBatchSize int `mapstructure:"output-batch"`

	// BlockFanout is the maximum number of candidates a block fetch is raced
	// across.
	BlockFanout int `mapstructure:"block-fanout"`

	// MaxSyncPeers caps the number of candidates handed to a sync phase.
	MaxSyncPeers int `mapstructure:"max-sync-peers"`

	// FetchTimeout bounds a single peer request.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`

	// WaitingBackoff is the cooldown after a sync failure.
	WaitingBackoff time.Duration `mapstructure:"waiting-backoff"`

	// SilenceTimeout is how long Listening tolerates an empty peer set before
	// declaring network silence.
	SilenceTimeout time.Duration `mapstructure:"silence-timeout"`

	Logger *logrus.Entry
}

// NewConfig instantiates a node Config.
func NewConfig(pruningHorizon uint64,
	headerBatch int,
	kernelBatch int,
	outputBatch int,
	blockFanout int,
	maxSyncPeers int,
	fetchTimeout time.Duration,
	waitingBackoff time.Duration,
	silenceTimeout time.Duration,
	logger *logrus.Entry) *Config {

	return &Config{
		PruningHorizon:  pruningHorizon,
		HeaderBatchSize: headerBatch,
		KernelBatchSize: kernelBatch,
		OutputBatchSize: outputBatch,
		BlockFanout:     blockFanout,
		MaxSyncPeers:    maxSyncPeers,
		FetchTimeout:    fetchTimeout,
		WaitingBackoff:  waitingBackoff,
		SilenceTimeout:  silenceTimeout,
		Logger:          logger,
	}
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		PruningHorizon:  720,
		HeaderBatchSize: 250,
		KernelBatchSize: 500,
		OutputBatchSize: 500,
		BlockFanout:     3,
		MaxSyncPeers:    8,
		FetchTimeout:    10 * time.Second,
		WaitingBackoff:  30 * time.Second,
		SilenceTimeout:  60 * time.Second,
		Logger:          logrus.NewEntry(logger),
	}
}

// TestConfig returns a configuration with short timeouts and a test logger.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.HeaderBatchSize = 16
	config.KernelBatchSize = 8
	config.OutputBatchSize = 8
	config.FetchTimeout = 200 * time.Millisecond
	config.WaitingBackoff = 50 * time.Millisecond
	config.SilenceTimeout = 100 * time.Millisecond
	config.Logger = common.NewTestEntry(t)
	return config
}
