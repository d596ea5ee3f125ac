// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the interfaces through which the cost model reads
// relation and index metadata. The catalog itself is owned by the caller;
// the optimizer only looks descriptors up by id.
package cat

import "github.com/cockroachdb/optcost/pkg/sql/opt"

// TableID uniquely identifies a relation in the catalog.
type TableID int32

// IndexID uniquely identifies an index in the catalog.
type IndexID int32

// StorageType is the physical layout of a relation.
type StorageType uint8

const (
	// HeapStorage is a regular heap table with a visibility map.
	HeapStorage StorageType = iota
	// AppendOnlyStorage is an append-optimized table. It has no visibility
	// map and reaches tuples through a block directory.
	AppendOnlyStorage
	// ExternalStorage is a foreign table.
	ExternalStorage
)

func (s StorageType) String() string {
	switch s {
	case HeapStorage:
		return "heap"
	case AppendOnlyStorage:
		return "append-only"
	case ExternalStorage:
		return "external"
	}
	return "unknown"
}

// IndexType is the access method of an index.
type IndexType uint8

const (
	// BtreeIndex is an ordered index.
	BtreeIndex IndexType = iota
	// BitmapIndex stores one bitmap per distinct key value.
	BitmapIndex
)

func (t IndexType) String() string {
	if t == BitmapIndex {
		return "bitmap"
	}
	return "btree"
}

// Catalog returns descriptors by id. Implementations must be safe for
// concurrent use.
type Catalog interface {
	// Table returns the relation with the given id, or false if there is
	// none.
	Table(id TableID) (Table, bool)
	// Index returns the index with the given id, or false if there is none.
	Index(id IndexID) (Index, bool)
}

// Table describes a relation.
type Table interface {
	ID() TableID
	Name() string
	Storage() StorageType
	// RowCount is the estimated number of rows of the whole relation.
	RowCount() float64
	// Pages is the number of pages of the relation.
	Pages() float64
	// AllVisiblePages is the number of pages marked all-visible in the
	// visibility map. Always zero for append-only relations.
	AllVisiblePages() float64
}

// Index describes an index of a relation.
type Index interface {
	ID() IndexID
	Table() TableID
	Type() IndexType
	// KeyColumnCount is the number of key columns of the index.
	KeyColumnCount() int
	// KeyColumn returns the ith key column, in index order.
	KeyColumn(i int) opt.ColumnID
	// IncludedColumnWidth is the average width of the non-key columns
	// stored in the index leaf pages.
	IncludedColumnWidth() float64
}
