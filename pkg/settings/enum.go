// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// EnumSetting is a setting whose value is one of a fixed set of named
// integers.
type EnumSetting struct {
	key          string
	defaultValue int64
	enumValues   map[int64]string
}

var _ Setting = &EnumSetting{}

// Key is part of the Setting interface.
func (e *EnumSetting) Key() string { return e.key }

// Typ is part of the Setting interface.
func (*EnumSetting) Typ() string { return "e" }

// Default is part of the Setting interface.
func (e *EnumSetting) Default() string { return e.enumValues[e.defaultValue] }

// String is part of the Setting interface.
func (e *EnumSetting) String(sv *Values) string { return e.enumValues[e.Get(sv)] }

// Get retrieves the int value in the setting.
func (e *EnumSetting) Get(sv *Values) int64 {
	if v, ok := sv.get(e.key); ok {
		return v.(int64)
	}
	return e.defaultValue
}

// ParseEnum returns the enum value for the given name, ignoring case.
func (e *EnumSetting) ParseEnum(raw string) (int64, bool) {
	for k, v := range e.enumValues {
		if strings.EqualFold(v, raw) {
			return k, true
		}
	}
	return 0, false
}

// Set stores the named value in the container.
func (e *EnumSetting) Set(sv *Values, raw string) error {
	v, ok := e.ParseEnum(raw)
	if !ok {
		return errors.Errorf("invalid value %q for %s: expected one of %s",
			raw, e.key, e.validValues())
	}
	sv.set(e.key, v)
	return nil
}

// Override stores the value without validation. Only tests should use it.
func (e *EnumSetting) Override(sv *Values, v int64) {
	sv.set(e.key, v)
}

func (e *EnumSetting) validValues() string {
	keys := maps.Keys(e.enumValues)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var buf strings.Builder
	buf.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s = %d", strings.ToLower(e.enumValues[k]), k)
	}
	buf.WriteByte(']')
	return buf.String()
}

func (e *EnumSetting) decodeYAML(sv *Values, node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return errors.Wrapf(err, "setting %s", e.key)
	}
	return e.Set(sv, raw)
}

// RegisterEnumSetting defines a new setting with type int.
func RegisterEnumSetting(
	key, desc string, defaultValue string, enumValues map[int64]string,
) *EnumSetting {
	enumValuesLower := make(map[int64]string, len(enumValues))
	var i int64
	var found bool
	for k, v := range enumValues {
		enumValuesLower[k] = strings.ToLower(v)
		if v == defaultValue {
			i = k
			found = true
		}
	}
	if !found {
		panic(errors.AssertionFailedf("enum registered with default value %s not in map %v",
			defaultValue, enumValuesLower))
	}
	setting := &EnumSetting{
		key:          key,
		defaultValue: i,
		enumValues:   enumValuesLower,
	}
	register(key, desc, setting)
	return setting
}
