// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcost/pkg/sql/opt"
)

// SortOp identifies the comparison operator used to sort a column. The two
// built-in operators are SortLess and SortGreater; other values name
// type-specific operators.
type SortOp uint32

const (
	// SortLess sorts in ascending order.
	SortLess SortOp = 1
	// SortGreater sorts in descending order.
	SortGreater SortOp = 2
)

// NullsTreatment specifies where NULLs sort relative to other values.
type NullsTreatment uint8

const (
	// NullsLast places NULLs after all other values.
	NullsLast NullsTreatment = iota
	// NullsFirst places NULLs before all other values.
	NullsFirst
)

// OrderElement is one sort key of an OrderSpec.
type OrderElement struct {
	SortOp SortOp
	Col    opt.ColumnID
	Nulls  NullsTreatment
}

// defaultNulls is the null treatment implied by the sort operator.
func (e OrderElement) defaultNulls() NullsTreatment {
	if e.SortOp == SortGreater {
		return NullsFirst
	}
	return NullsLast
}

func (e OrderElement) String() string {
	var buf strings.Builder
	e.format(&buf)
	return buf.String()
}

func (e OrderElement) format(buf *strings.Builder) {
	switch e.SortOp {
	case SortLess:
		buf.WriteByte('+')
	case SortGreater:
		buf.WriteByte('-')
	default:
		buf.WriteString("op")
		buf.WriteString(strconv.FormatUint(uint64(e.SortOp), 10))
		buf.WriteByte(':')
	}
	buf.WriteString(strconv.Itoa(int(e.Col)))
	if e.Nulls != e.defaultNulls() {
		if e.Nulls == NullsFirst {
			buf.WriteString(" nulls first")
		} else {
			buf.WriteString(" nulls last")
		}
	}
}

// OrderSpec is a sequence of sort keys. An empty OrderSpec places no
// requirement on the order of rows.
//
// OrderSpec values are never mutated once built; functions that change an
// OrderSpec return a new slice.
type OrderSpec []OrderElement

// SafeValue implements the redact.SafeValue interface. Orderings refer to
// columns by id only.
func (OrderSpec) SafeValue() {}

// Asc returns an ascending, nulls-last ordering on the given columns.
func Asc(cols ...opt.ColumnID) OrderSpec {
	if len(cols) == 0 {
		return nil
	}
	res := make(OrderSpec, len(cols))
	for i, c := range cols {
		res[i] = OrderElement{SortOp: SortLess, Col: c, Nulls: NullsLast}
	}
	return res
}

// Empty returns true if the ordering places no requirement on rows.
func (o OrderSpec) Empty() bool { return len(o) == 0 }

// Satisfies returns true if rows ordered by o are also ordered by required,
// which is the case when required is a prefix of o.
func (o OrderSpec) Satisfies(required OrderSpec) bool {
	if len(required) > len(o) {
		return false
	}
	for i := range required {
		if o[i] != required[i] {
			return false
		}
	}
	return true
}

// Equals returns true if the two orderings are identical.
func (o OrderSpec) Equals(other OrderSpec) bool {
	return len(o) == len(other) && o.Satisfies(other)
}

// ColSet returns the set of ordering columns.
func (o OrderSpec) ColSet() opt.ColSet {
	var s opt.ColSet
	for i := range o {
		s.Add(o[i].Col)
	}
	return s
}

// Remap returns a copy of the ordering with each column replaced by its
// image under colMap. Every ordering column must be mapped.
func (o OrderSpec) Remap(colMap map[opt.ColumnID]opt.ColumnID) OrderSpec {
	if len(o) == 0 {
		return nil
	}
	res := make(OrderSpec, len(o))
	for i, e := range o {
		to, ok := colMap[e.Col]
		if !ok {
			panic(errors.AssertionFailedf("column %d missing from remap of ordering %s", e.Col, o))
		}
		e.Col = to
		res[i] = e
	}
	return res
}

// String returns the ordering in the form "+1,-2,+3 nulls first".
func (o OrderSpec) String() string {
	var buf strings.Builder
	for i := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		o[i].format(&buf)
	}
	return buf.String()
}

// ParseOrderSpec parses the output of OrderSpec.String.
func ParseOrderSpec(s string) (OrderSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	res := make(OrderSpec, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var e OrderElement
		nulls := -1
		if rest, ok := strings.CutSuffix(p, " nulls first"); ok {
			p, nulls = rest, int(NullsFirst)
		} else if rest, ok := strings.CutSuffix(p, " nulls last"); ok {
			p, nulls = rest, int(NullsLast)
		}
		switch {
		case strings.HasPrefix(p, "+"):
			e.SortOp, p = SortLess, p[1:]
		case strings.HasPrefix(p, "-"):
			e.SortOp, p = SortGreater, p[1:]
		case strings.HasPrefix(p, "op"):
			opStr, col, ok := strings.Cut(p[2:], ":")
			if !ok {
				return nil, errors.Newf("invalid ordering element %q", p)
			}
			op, err := strconv.ParseUint(opStr, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid sort operator in %q", p)
			}
			e.SortOp, p = SortOp(op), col
		default:
			return nil, errors.Newf("ordering element %q must start with +, - or op", p)
		}
		col, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil || col < 0 {
			return nil, errors.Newf("invalid ordering column in %q", s)
		}
		e.Col = opt.ColumnID(col)
		if nulls >= 0 {
			e.Nulls = NullsTreatment(nulls)
		} else {
			e.Nulls = e.defaultNulls()
		}
		res = append(res, e)
	}
	return res, nil
}
