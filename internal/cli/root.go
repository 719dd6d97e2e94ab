// Package cli implements queuectl, the operator tool for provisioning and
// driving the queue from a shell.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-queue/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds queuectl. open connects the backing store; nil
// means the store named in the configuration.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = OpenStore
	}
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "queuectl",
		Short: "Operate the clinic queue",
		Long:  "Provision clinics, screens and doctors, run migrations and issue calls against the queue store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: config.yml search path)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewClinicCommand(opts))
	cmd.AddCommand(NewScreenCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewResetAllCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.ConfigPath != "" {
		return config.LoadFile(o.ConfigPath)
	}
	return config.LoadConfig()
}

// backend loads the configuration and opens the store.
func (o *RootOptions) backend() (*Backend, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return o.open(cfg)
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
