// Package roster holds the configurable expansion policy applied when a user
// asks to address "all parties". Which targets count as major is a per-
// election editorial decision, so it lives in a policy file rather than code.
package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy maps elections to their major-target short names.
type Policy struct {
	// Elections keys are election ids; values list major-target short names.
	Elections map[string]electionPolicy `yaml:"elections"`
	// Default applies when an election has no entry.
	Default electionPolicy `yaml:"default"`
}

type electionPolicy struct {
	Major []string `yaml:"major"`
}

// Load reads a policy file. An empty path yields the zero policy, under which
// "all" expands to every available target.
func Load(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("roster: parse policy: %w", err)
	}
	return &p, nil
}

func (p *Policy) majors(electionID string) []string {
	if p == nil {
		return nil
	}
	if ep, ok := p.Elections[electionID]; ok && len(ep.Major) > 0 {
		return ep.Major
	}
	return p.Default.Major
}

// Expand resolves an "all parties" request. Major targets (intersected with
// the available roster) are included; minor targets survive only if already
// selected or explicitly named. With no majors configured, every available
// target is major.
func (p *Policy) Expand(electionID string, available, selected, named []string) []string {
	majors := p.majors(electionID)
	if len(majors) == 0 {
		majors = available
	}

	availSet := make(map[string]struct{}, len(available))
	for _, s := range available {
		availSet[s] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := availSet[name]; !ok {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, s := range majors {
		add(s)
	}
	for _, s := range selected {
		add(s)
	}
	for _, s := range named {
		add(s)
	}
	return out
}
