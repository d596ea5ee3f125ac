// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// BoolSetting is the interface of a setting variable of type "bool".
type BoolSetting struct {
	key          string
	defaultValue bool
}

var _ Setting = &BoolSetting{}

// Key is part of the Setting interface.
func (b *BoolSetting) Key() string { return b.key }

// Typ is part of the Setting interface.
func (*BoolSetting) Typ() string { return "b" }

// Default is part of the Setting interface.
func (b *BoolSetting) Default() string { return strconv.FormatBool(b.defaultValue) }

// String is part of the Setting interface.
func (b *BoolSetting) String(sv *Values) string { return strconv.FormatBool(b.Get(sv)) }

// Get retrieves the bool value in the setting.
func (b *BoolSetting) Get(sv *Values) bool {
	if v, ok := sv.get(b.key); ok {
		return v.(bool)
	}
	return b.defaultValue
}

// Override stores the value in the container.
func (b *BoolSetting) Override(sv *Values, v bool) {
	sv.set(b.key, v)
}

func (b *BoolSetting) decodeYAML(sv *Values, node *yaml.Node) error {
	var v bool
	if err := node.Decode(&v); err != nil {
		return errors.Wrapf(err, "setting %s", b.key)
	}
	b.Override(sv, v)
	return nil
}

// RegisterBoolSetting defines a new setting with type bool.
func RegisterBoolSetting(key, desc string, defaultValue bool) *BoolSetting {
	setting := &BoolSetting{key: key, defaultValue: defaultValue}
	register(key, desc, setting)
	return setting
}
