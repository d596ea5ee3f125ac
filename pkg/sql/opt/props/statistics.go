// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/optcost/pkg/sql/opt"
)

// Statistics is the cardinality estimate of a relational subtree. It is
// computed outside of the cost model and consumed as opaque values.
type Statistics interface {
	// RowCount is the estimated number of rows returned per execution.
	RowCount() float64
	// Width is the average width in bytes of a row restricted to the given
	// columns. An empty set means all output columns.
	Width(cols opt.ColSet) float64
	// Rebinds is the number of times the subtree is re-executed because of
	// outer correlation. It is at least 1.
	Rebinds() float64
	// DistinctCount is the estimated number of distinct values of the column.
	DistinctCount(col opt.ColumnID) float64
	// EstimationRisk grows with the number of estimation steps, such as
	// joins, that the row count depends on. It is at least 1.
	EstimationRisk() float64
}

// DefaultColumnWidth is the width assumed for a column whose width is not
// known.
const DefaultColumnWidth = 8

// BasicStatistics is a Statistics implementation backed by plain values.
type BasicStatistics struct {
	Rows float64
	// RowWidth is the width of a full output row.
	RowWidth float64
	// ColWidths optionally gives per-column widths, used when the width of
	// a column subset is requested.
	ColWidths map[opt.ColumnID]float64
	NumRebinds float64
	Distinct   map[opt.ColumnID]float64
	Risk       float64
}

var _ Statistics = &BasicStatistics{}

// RowCount is part of the Statistics interface.
func (s *BasicStatistics) RowCount() float64 { return s.Rows }

// Width is part of the Statistics interface.
func (s *BasicStatistics) Width(cols opt.ColSet) float64 {
	if cols.Empty() || len(s.ColWidths) == 0 {
		return s.RowWidth
	}
	var w float64
	cols.ForEach(func(col opt.ColumnID) {
		if cw, ok := s.ColWidths[col]; ok {
			w += cw
		} else {
			w += DefaultColumnWidth
		}
	})
	return w
}

// Rebinds is part of the Statistics interface.
func (s *BasicStatistics) Rebinds() float64 {
	if s.NumRebinds < 1 {
		return 1
	}
	return s.NumRebinds
}

// DistinctCount is part of the Statistics interface. Without an estimate
// the column is assumed to be a key.
func (s *BasicStatistics) DistinctCount(col opt.ColumnID) float64 {
	if d, ok := s.Distinct[col]; ok {
		return d
	}
	return s.Rows
}

// EstimationRisk is part of the Statistics interface.
func (s *BasicStatistics) EstimationRisk() float64 {
	if s.Risk < 1 {
		return 1
	}
	return s.Risk
}

func (s *BasicStatistics) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[rows=%g, width=%g", s.Rows, s.RowWidth)
	if s.NumRebinds > 1 {
		fmt.Fprintf(&buf, ", rebinds=%g", s.NumRebinds)
	}
	if s.Risk > 1 {
		fmt.Fprintf(&buf, ", risk=%g", s.Risk)
	}
	buf.WriteByte(']')
	return buf.String()
}
