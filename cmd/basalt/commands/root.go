package commands

import (
	"github.com/basaltchain/basalt/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Basalt
var RootCmd = &cobra.Command{
	Use:              "basalt",
	Short:            "basalt chain node",
	TraverseChildren: true,
}
