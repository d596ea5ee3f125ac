// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package floatcmp provides functions for determining float values to be
// equal if they are within a tolerance. It is designed to be used in tests.
package floatcmp

import (
	"math"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const (
	// CloseFraction can be used to set a "close" tolerance for the fraction
	// argument of functions in this package.
	CloseFraction float64 = 1e-14

	// CloseMargin can be used to set a "close" tolerance for the margin
	// argument of functions in this package.
	CloseMargin float64 = CloseFraction * math.SmallestNonzeroFloat64
)

// EqualApprox reports whether expected and actual are deeply equal with the
// following modifications for float64 and float32 types:
//
// • If both expected and actual are not NaN or infinite, they are equal within
// the larger of the relative fraction or absolute margin, calculated
// as |x-y| <= max(fraction*min(|x|, |y|), margin).
//
// • If both expected and actual are NaN, they are equal.
func EqualApprox(expected interface{}, actual interface{}, fraction float64, margin float64) bool {
	return cmp.Equal(expected, actual, cmpopts.EquateApprox(fraction, margin), cmpopts.EquateNaNs())
}

// DiffApprox returns a human readable diff of expected and actual using the
// same tolerance as EqualApprox.
func DiffApprox(expected interface{}, actual interface{}, fraction float64, margin float64) string {
	return cmp.Diff(expected, actual, cmpopts.EquateApprox(fraction, margin), cmpopts.EquateNaNs())
}
