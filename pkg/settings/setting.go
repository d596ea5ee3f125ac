// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package settings holds the typed, registered configuration knobs of the
// optimizer. Settings are declared at init time and their values are kept
// in a Values container so that several independent configurations can
// coexist in one process.
package settings

import (
	"github.com/cockroachdb/optcost/pkg/util/syncutil"
	"gopkg.in/yaml.v3"
)

// Setting is the interface exposing the metadata for a setting.
type Setting interface {
	// Key returns the name of the setting.
	Key() string
	// Typ returns the short (1 char) string denoting the type of setting.
	Typ() string
	// String returns the string representation of the setting's current
	// value in the given container.
	String(sv *Values) string
	// Default returns the string representation of the default value.
	Default() string

	decodeYAML(sv *Values, node *yaml.Node) error
}

// Values is a container that stores values for all registered settings.
// Settings without an explicit value report their default.
type Values struct {
	mu struct {
		syncutil.RWMutex
		vals map[string]interface{}
	}
}

// MakeValues returns an empty container, in which every setting reports its
// default value.
func MakeValues() *Values {
	sv := &Values{}
	sv.mu.vals = make(map[string]interface{})
	return sv
}

func (sv *Values) get(key string) (interface{}, bool) {
	if sv == nil {
		return nil, false
	}
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	v, ok := sv.mu.vals[key]
	return v, ok
}

func (sv *Values) set(key string, v interface{}) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.mu.vals == nil {
		sv.mu.vals = make(map[string]interface{})
	}
	sv.mu.vals[key] = v
}

// IsSet returns whether the container holds an explicit value for the key.
func (sv *Values) IsSet(key string) bool {
	_, ok := sv.get(key)
	return ok
}

// Reset drops the explicit value of the key, if any.
func (sv *Values) Reset(key string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	delete(sv.mu.vals, key)
}
