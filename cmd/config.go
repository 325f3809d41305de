/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cmd

import (
	"fmt"
	"time"

	"github.com/lockd/attestor/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.viper(cmd, map[string]string{config.KeyClientServerURL: "server"})
			if err != nil {
				return err
			}
			settings := normalize(v.AllSettings())
			if signer, ok := settings["signer"].(map[string]any); ok {
				if key, _ := signer["private_key"].(string); key != "" {
					signer["private_key"] = redacted
				}
			}

			out, err := toml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

// normalize turns durations into their string form so the dump can be read
// back as a config file.
func normalize(m map[string]any) map[string]any {
	for k, val := range m {
		switch t := val.(type) {
		case map[string]any:
			m[k] = normalize(t)
		case time.Duration:
			m[k] = t.String()
		}
	}
	return m
}
