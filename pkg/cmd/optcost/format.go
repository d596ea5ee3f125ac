// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// displayFormat selects how result rows are printed.
type displayFormat int

const (
	displayTable displayFormat = iota
	displayTSV
	displayYAML
)

const displayFormatNames = "table, tsv, yaml"

var _ pflag.Value = (*displayFormat)(nil)

// Type implements the pflag.Value interface.
func (f *displayFormat) Type() string { return "string" }

// String implements the pflag.Value interface.
func (f *displayFormat) String() string {
	switch *f {
	case displayTable:
		return "table"
	case displayTSV:
		return "tsv"
	case displayYAML:
		return "yaml"
	}
	return ""
}

// Set implements the pflag.Value interface.
func (f *displayFormat) Set(s string) error {
	switch strings.ToLower(s) {
	case "table":
		*f = displayTable
	case "tsv":
		*f = displayTSV
	case "yaml":
		*f = displayYAML
	default:
		return errors.Newf("invalid format %q, expected one of %s", s, displayFormatNames)
	}
	return nil
}

// render prints the rows under the given header.
func render(w io.Writer, format displayFormat, header []string, rows [][]string) error {
	switch format {
	case displayTable:
		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader(header)
		table.AppendBulk(rows)
		table.Render()
		return nil

	case displayTSV:
		csvWriter := csv.NewWriter(w)
		csvWriter.Comma = '\t'
		if err := csvWriter.Write(header); err != nil {
			return err
		}
		if err := csvWriter.WriteAll(rows); err != nil {
			return err
		}
		return csvWriter.Error()

	case displayYAML:
		records := make([]*yaml.Node, len(rows))
		for i, row := range rows {
			rec := &yaml.Node{Kind: yaml.MappingNode}
			for j, v := range row {
				rec.Content = append(rec.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: header[j]},
					&yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle},
				)
			}
			records[i] = rec
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&yaml.Node{Kind: yaml.SequenceNode, Content: records}); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.AssertionFailedf("unknown display format %d", format)
}
