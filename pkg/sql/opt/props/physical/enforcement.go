// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package physical

// EnforcementType is the decision of whether an enforcer must be placed on
// top of an expression to deliver a required property.
type EnforcementType uint8

const (
	// EnforcementUnnecessary means the expression already delivers the
	// property.
	EnforcementUnnecessary EnforcementType = iota
	// EnforcementRequired means an enforcer must be added above the
	// expression.
	EnforcementRequired
	// EnforcementProhibited means no enforcer may be added above the
	// expression; the alternative cannot deliver the property.
	EnforcementProhibited
	// EnforcementOptional means an enforcer may be added either above the
	// expression or below it.
	EnforcementOptional
)

func (e EnforcementType) String() string {
	switch e {
	case EnforcementUnnecessary:
		return "unnecessary"
	case EnforcementRequired:
		return "required"
	case EnforcementProhibited:
		return "prohibited"
	case EnforcementOptional:
		return "optional"
	}
	return "unknown"
}

// SafeValue implements the redact.SafeValue interface.
func (EnforcementType) SafeValue() {}

// Combine merges the decisions of two properties of the same expression.
// A prohibited property makes the whole alternative unusable, and a
// required enforcer takes precedence over an optional one.
func (e EnforcementType) Combine(other EnforcementType) EnforcementType {
	if e == EnforcementProhibited || other == EnforcementProhibited {
		return EnforcementProhibited
	}
	if e == EnforcementRequired || other == EnforcementRequired {
		return EnforcementRequired
	}
	if e == EnforcementOptional || other == EnforcementOptional {
		return EnforcementOptional
	}
	return EnforcementUnnecessary
}
