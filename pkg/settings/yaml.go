// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LoadYAML applies the overrides of a YAML document to the container. The
// document is a mapping from setting key to value, for example:
//
//	sql.opt.cost.sort_tup_width_cost_unit: 1e-5
//	sql.opt.cost.model: calibrated
//
// Unknown keys and invalid values are rejected. The container is left
// untouched when an error is returned.
func (sv *Values) LoadYAML(data []byte) error {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "parsing settings")
	}
	staged := MakeValues()
	for key, node := range doc {
		s, _, ok := Lookup(key)
		if !ok {
			return errors.Errorf("unknown setting: %s", key)
		}
		node := node
		if err := s.decodeYAML(staged, &node); err != nil {
			return err
		}
	}
	staged.mu.RLock()
	defer staged.mu.RUnlock()
	for k, v := range staged.mu.vals {
		sv.set(k, v)
	}
	return nil
}

// MarshalYAML renders the current value of every registered setting.
func (sv *Values) MarshalYAML() (interface{}, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range Keys() {
		s, desc, _ := Lookup(k)
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: k, HeadComment: desc}
		val := &yaml.Node{Kind: yaml.ScalarNode, Value: s.String(sv)}
		out.Content = append(out.Content, key, val)
	}
	return out, nil
}
