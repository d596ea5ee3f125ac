// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// FloatSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "float" is updated.
type FloatSetting struct {
	key          string
	defaultValue float64
	validateFn   func(float64) error
}

var _ Setting = &FloatSetting{}

// Key is part of the Setting interface.
func (f *FloatSetting) Key() string { return f.key }

// Typ is part of the Setting interface.
func (*FloatSetting) Typ() string { return "f" }

// Default is part of the Setting interface.
func (f *FloatSetting) Default() string { return formatFloat(f.defaultValue) }

// String is part of the Setting interface.
func (f *FloatSetting) String(sv *Values) string { return formatFloat(f.Get(sv)) }

// Get retrieves the float value in the setting.
func (f *FloatSetting) Get(sv *Values) float64 {
	if v, ok := sv.get(f.key); ok {
		return v.(float64)
	}
	return f.defaultValue
}

// Validate that a value conforms with the validation function.
func (f *FloatSetting) Validate(v float64) error {
	if f.validateFn != nil {
		if err := f.validateFn(v); err != nil {
			return errors.Wrapf(err, "invalid value for %s", f.key)
		}
	}
	return nil
}

// Set validates and stores the value in the container.
func (f *FloatSetting) Set(sv *Values, v float64) error {
	if err := f.Validate(v); err != nil {
		return err
	}
	sv.set(f.key, v)
	return nil
}

// Override stores the value without validation. Only tests should use it.
func (f *FloatSetting) Override(sv *Values, v float64) {
	sv.set(f.key, v)
}

func (f *FloatSetting) decodeYAML(sv *Values, node *yaml.Node) error {
	var v float64
	if err := node.Decode(&v); err != nil {
		return errors.Wrapf(err, "setting %s", f.key)
	}
	return f.Set(sv, v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// PositiveFloat can be passed to RegisterFloatSetting.
func PositiveFloat(v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return errors.Errorf("cannot set to a non-positive value: %f", v)
	}
	return nil
}

// NonNegativeFloat can be passed to RegisterFloatSetting.
func NonNegativeFloat(v float64) error {
	if v < 0 || math.IsNaN(v) {
		return errors.Errorf("cannot set to a negative value: %f", v)
	}
	return nil
}

// RegisterFloatSetting defines a new setting with type float.
func RegisterFloatSetting(
	key, desc string, defaultValue float64, validateFn func(float64) error,
) *FloatSetting {
	if validateFn != nil {
		if err := validateFn(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	setting := &FloatSetting{
		key:          key,
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}
	register(key, desc, setting)
	return setting
}
