// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package optplan loads a YAML description of a catalog and of one physical
// plan, builds the memo and the cost contexts of the plan, and costs it
// bottom-up. It drives the optcost command and the optimizer tests.
//
// A plan looks like:
//
//	catalog:
//	  tables:
//	    - {id: 1, name: t, rows: 1000000}
//	required:
//	  ordering: "+1"
//	plan:
//	  op: filter
//	  cols: [1, 2]
//	  rows: 100
//	  width: 20
//	  private: {cols: [2]}
//	  children:
//	    - op: table-scan
//	      cols: [1, 2]
//	      rows: 1000000
//	      width: 20
//	      private: {table: 1, cols: [1, 2]}
package optplan

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"gopkg.in/yaml.v3"
)

// Plan is the parsed YAML description.
type Plan struct {
	Catalog  CatalogSpec  `yaml:"catalog"`
	Required RequiredSpec `yaml:"required"`
	Root     *Node        `yaml:"plan"`
}

// CatalogSpec lists the relations and indexes of the catalog.
type CatalogSpec struct {
	Tables  []TableSpec `yaml:"tables"`
	Indexes []IndexSpec `yaml:"indexes"`
}

// RequiredSpec are the properties required of the root of the plan.
type RequiredSpec struct {
	Cols     []opt.ColumnID `yaml:"cols"`
	Ordering string         `yaml:"ordering"`
}

// Node is one expression of the plan. Each node becomes its own memo group.
type Node struct {
	Op   string         `yaml:"op"`
	Cols []opt.ColumnID `yaml:"cols"`

	Rows      float64                  `yaml:"rows"`
	Width     float64                  `yaml:"width"`
	Rebinds   float64                  `yaml:"rebinds"`
	Risk      float64                  `yaml:"risk"`
	JoinDepth int                      `yaml:"join_depth"`
	Distinct  map[opt.ColumnID]float64 `yaml:"distinct"`

	// Partitions are dynamic scans consumed by the node in addition to
	// those of its children and of its own dynamic scan private.
	Partitions []PartitionSpec `yaml:"partitions"`

	// Request is the optimization request of the node. RequestCounts
	// optionally overrides the default request counts of the operator, in
	// the order order, distribution, rewindability, partition propagation.
	Request       int   `yaml:"request"`
	RequestCounts []int `yaml:"request_counts"`

	Private  PrivateSpec `yaml:"private"`
	Children []*Node     `yaml:"children"`
}

// PartitionSpec describes a dynamic scan.
type PartitionSpec struct {
	ScanID  opt.ScanID   `yaml:"scan_id"`
	Rel     cat.TableID  `yaml:"rel"`
	PartKey opt.ColumnID `yaml:"part_key"`
}

// Parse parses a YAML plan. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(err, "parsing plan")
	}
	if p.Root == nil {
		return nil, errors.New("plan has no root")
	}
	return &p, nil
}

// NewCatalogFromSpec builds the catalog described by spec.
func NewCatalogFromSpec(spec CatalogSpec) (*Catalog, error) {
	c := NewCatalog()
	for _, t := range spec.Tables {
		if err := c.AddTable(t); err != nil {
			return nil, err
		}
	}
	for _, i := range spec.Indexes {
		if err := c.AddIndex(i); err != nil {
			return nil, err
		}
	}
	return c, nil
}
