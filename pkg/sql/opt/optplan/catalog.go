// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optplan

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
	"github.com/cockroachdb/optcost/pkg/sql/opt/cat"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// TableSpec describes a relation of the catalog.
type TableSpec struct {
	ID              cat.TableID `yaml:"id"`
	Name            string      `yaml:"name"`
	Storage         string      `yaml:"storage,omitempty"`
	Rows            float64     `yaml:"rows"`
	Pages           float64     `yaml:"pages,omitempty"`
	AllVisiblePages float64     `yaml:"all_visible_pages,omitempty"`
}

// IndexSpec describes an index of the catalog.
type IndexSpec struct {
	ID            cat.IndexID    `yaml:"id"`
	Table         cat.TableID    `yaml:"table"`
	Type          string         `yaml:"type,omitempty"`
	KeyCols       []opt.ColumnID `yaml:"key_cols"`
	IncludedWidth float64        `yaml:"included_width,omitempty"`
}

// Catalog is an in-memory catalog. It is immutable once built, so it is
// safe for concurrent use.
type Catalog struct {
	tables  map[cat.TableID]*table
	indexes map[cat.IndexID]*index
}

var _ cat.Catalog = &Catalog{}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:  make(map[cat.TableID]*table),
		indexes: make(map[cat.IndexID]*index),
	}
}

// AddTable adds a relation to the catalog.
func (c *Catalog) AddTable(spec TableSpec) error {
	if _, ok := c.tables[spec.ID]; ok {
		return errors.Newf("duplicate table %d", spec.ID)
	}
	var storage cat.StorageType
	switch spec.Storage {
	case "", "heap":
		storage = cat.HeapStorage
	case "append-only", "ao":
		storage = cat.AppendOnlyStorage
	case "external":
		storage = cat.ExternalStorage
	default:
		return errors.Newf("table %s: unknown storage %q", spec.Name, spec.Storage)
	}
	if spec.AllVisiblePages > spec.Pages {
		return errors.Newf("table %s: %g all-visible pages out of %g", spec.Name, spec.AllVisiblePages, spec.Pages)
	}
	c.tables[spec.ID] = &table{spec: spec, storage: storage}
	return nil
}

// AddIndex adds an index of an existing relation to the catalog.
func (c *Catalog) AddIndex(spec IndexSpec) error {
	if _, ok := c.indexes[spec.ID]; ok {
		return errors.Newf("duplicate index %d", spec.ID)
	}
	if _, ok := c.tables[spec.Table]; !ok {
		return errors.Newf("index %d: unknown table %d", spec.ID, spec.Table)
	}
	var typ cat.IndexType
	switch spec.Type {
	case "", "btree":
		typ = cat.BtreeIndex
	case "bitmap":
		typ = cat.BitmapIndex
	default:
		return errors.Newf("index %d: unknown type %q", spec.ID, spec.Type)
	}
	c.indexes[spec.ID] = &index{spec: spec, typ: typ}
	return nil
}

// Table is part of the cat.Catalog interface.
func (c *Catalog) Table(id cat.TableID) (cat.Table, bool) {
	t, ok := c.tables[id]
	if !ok {
		return nil, false
	}
	return t, true
}

// Index is part of the cat.Catalog interface.
func (c *Catalog) Index(id cat.IndexID) (cat.Index, bool) {
	i, ok := c.indexes[id]
	if !ok {
		return nil, false
	}
	return i, true
}

// TableIDs returns the ids of all relations in ascending order.
func (c *Catalog) TableIDs() []cat.TableID {
	ids := maps.Keys(c.tables)
	slices.Sort(ids)
	return ids
}

type table struct {
	spec    TableSpec
	storage cat.StorageType
}

var _ cat.Table = &table{}

func (t *table) ID() cat.TableID { return t.spec.ID }
func (t *table) Name() string { return t.spec.Name }
func (t *table) Storage() cat.StorageType { return t.storage }
func (t *table) RowCount() float64 { return t.spec.Rows }
func (t *table) Pages() float64 { return t.spec.Pages }
func (t *table) AllVisiblePages() float64 { return t.spec.AllVisiblePages }

type index struct {
	spec IndexSpec
	typ  cat.IndexType
}

var _ cat.Index = &index{}

func (i *index) ID() cat.IndexID { return i.spec.ID }
func (i *index) Table() cat.TableID { return i.spec.Table }
func (i *index) Type() cat.IndexType { return i.typ }
func (i *index) KeyColumnCount() int { return len(i.spec.KeyCols) }
func (i *index) KeyColumn(n int) opt.ColumnID { return i.spec.KeyCols[n] }
func (i *index) IncludedColumnWidth() float64 { return i.spec.IncludedWidth }
