package commands

import (
	"github.com/basaltchain/basalt/src/basalt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Basalt node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runBasalt,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runBasalt(cmd *cobra.Command, args []string) error {
	engine := basalt.NewBasalt(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Duplicate log output to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for basalt node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for basalt node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Do not expose the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load the chain from an existing database")

	// Sync
	cmd.Flags().Uint64("pruning-horizon", _config.PruningHorizon, "Height deficit beyond which sync goes through horizon state")
	cmd.Flags().Int("header-batch", _config.HeaderBatch, "Number of headers per sync request")
	cmd.Flags().Int("kernel-batch", _config.KernelBatch, "Number of kernels per sync request")
	cmd.Flags().Int("output-batch", _config.OutputBatch, "Number of outputs per sync request")
	cmd.Flags().Int("block-fanout", _config.BlockFanout, "Max number of peers a block fetch is raced across")
	cmd.Flags().Int("max-sync-peers", _config.MaxSyncPeers, "Max number of candidates handed to a sync phase")
	cmd.Flags().Duration("fetch-timeout", _config.FetchTimeout, "Timeout of a single sync request")
	cmd.Flags().Duration("waiting-backoff", _config.WaitingBackoff, "Cooldown after a failed sync round")
	cmd.Flags().Duration("silence-timeout", _config.SilenceTimeout, "How long to tolerate an empty peer set")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":        _config.DataDir,
		"BindAddr":       _config.BindAddr,
		"AdvertiseAddr":  _config.AdvertiseAddr,
		"NoService":      _config.NoService,
		"ServiceAddr":    _config.ServiceAddr,
		"MaxPool":        _config.MaxPool,
		"TCPTimeout":     _config.TCPTimeout,
		"Store":          _config.Store,
		"LogLevel":       _config.LogLevel,
		"Moniker":        _config.Moniker,
		"PruningHorizon": _config.PruningHorizon,
		"HeaderBatch":    _config.HeaderBatch,
		"KernelBatch":    _config.KernelBatch,
		"OutputBatch":    _config.OutputBatch,
		"BlockFanout":    _config.BlockFanout,
		"MaxSyncPeers":   _config.MaxSyncPeers,
		"FetchTimeout":   _config.FetchTimeout,
		"WaitingBackoff": _config.WaitingBackoff,
		"SilenceTimeout": _config.SilenceTimeout,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["Bootstrap"] = _config.Bootstrap
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/basalt.toml (.json, .yaml also work)
	viper.SetConfigName("basalt")        // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
