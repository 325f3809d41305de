/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"flag"

	"github.com/lockd/attestor/internal/client"
	"github.com/lockd/attestor/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	configFile string
}

// viper loads configuration and binds the flags of cmd that share a name
// with a config key.
func (o *rootOptions) viper(cmd *cobra.Command, bindings map[string]string) (*viper.Viper, error) {
	v, err := config.NewViper(o.configFile)
	if err != nil {
		return nil, err
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// focus wires the client workflow for commands that talk to a server.
func (o *rootOptions) focus(cmd *cobra.Command) (*client.Focus, func() error, error) {
	v, err := o.viper(cmd, map[string]string{config.KeyClientServerURL: "server"})
	if err != nil {
		return nil, nil, err
	}
	cfg := config.LoadClient(v)
	cfg.Logger = klog.NewStandardLogger("WARNING")
	return wireFocus(cmd.Context(), cfg)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "lockd",
		Short:         "LockD focus-pledge attestor",
		Long:          "lockd runs the check-in attestation server for the LockD pledge ledger and drives focus sessions from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default $HOME/.lockd/config.toml)")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSessionCmd(opts),
		newAttestCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newDiagnoseCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}
