// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"github.com/cockroachdb/optcost/pkg/settings"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func makeSettingsCommand(cfg *globalConfig) *cobra.Command {
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		sv, err := loadSettings(cfg.settingsFile)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if cfg.format == displayYAML {
			// A plain mapping, so that the output can be passed back with
			// --settings.
			doc, err := sv.MarshalYAML()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(w)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		}

		header := []string{"setting", "type", "value", "default", "description"}
		var rows [][]string
		for _, k := range settings.Keys() {
			s, desc, _ := settings.Lookup(k)
			rows = append(rows, []string{k, s.Typ(), s.String(sv), s.Default(), desc})
		}
		return render(w, cfg.format, header, rows)
	}
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the cost settings.",
		Long: `Print every cost setting with its current value. With --format=yaml the
output is a settings file that can be edited and passed back with --settings.`,
		Args: cobra.NoArgs,
		RunE: runCmdFunc,
	}
}
