package main

import (
	"github.com/spf13/cobra"

	"github.com/FulgerX2007/itsm-report-generator/pkg/config"
	"github.com/FulgerX2007/itsm-report-generator/pkg/model"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
}

// load reads the settings named by the --config flag
func (o *RootOptions) load() (*model.Settings, error) {
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "reportgen",
		Short:         "Report generator for the ITSM host application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "settings file (default "+config.DefaultPath+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	return cmd
}
