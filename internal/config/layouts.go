package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Layouts holds per-layout section and field rules.
type Layouts struct {
	Defaults LayoutRule            `yaml:"defaults"`
	Layouts  map[string]LayoutRule `yaml:"layouts"`
}

// LayoutRule configures how a layout's sections are diffed and counted.
// A nil list falls back to the defaults.
type LayoutRule struct {
	MultiRowSections []string `yaml:"multi_row_sections"`
	FieldNotCount    []string `yaml:"field_not_count"`
}

// LoadLayouts reads layout rules from a YAML file.
func LoadLayouts(path string) (*Layouts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read layouts %s", path)
	}

	// The YAML has a top-level "layouts" key
	var wrapper struct {
		Layouts Layouts `yaml:"layouts"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "config: parse layouts")
	}

	l := &wrapper.Layouts
	for name, rule := range l.Layouts {
		if rule.MultiRowSections == nil {
			rule.MultiRowSections = l.Defaults.MultiRowSections
		}
		if rule.FieldNotCount == nil {
			rule.FieldNotCount = l.Defaults.FieldNotCount
		}
		l.Layouts[name] = rule
	}

	return l, nil
}

// RulesFor returns the rules for a layout, falling back to the file's
// defaults. ok is false when neither the layout nor the defaults set anything.
func (l *Layouts) RulesFor(layoutName string) (multiRowSections, fieldNotCount []string, ok bool) {
	if l == nil {
		return nil, nil, false
	}
	if rule, found := l.Layouts[layoutName]; found {
		return rule.MultiRowSections, rule.FieldNotCount, true
	}
	d := l.Defaults
	if d.MultiRowSections == nil && d.FieldNotCount == nil {
		return nil, nil, false
	}
	return d.MultiRowSections, d.FieldNotCount, true
}
