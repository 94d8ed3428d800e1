package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DoorPolicy maps plan tiers to the extra doors they open, globally and per
// branch.  It is loaded from a YAML file such as:
//
//	tiers:
//	  premium: [door-spa, door-pool]
//	branches:
//	  branch-main:
//	    premium: [door-sauna]
type DoorPolicy struct {
	Tiers    map[string][]string            `yaml:"tiers"`
	Branches map[string]map[string][]string `yaml:"branches"`
}

// LoadDoorPolicy reads the policy at path.  An empty path or a missing file
// yields an empty policy, so members get the branch standard doors only.
func LoadDoorPolicy(path string) (*DoorPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return &DoorPolicy{}, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &DoorPolicy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read door policy: %w", err)
	}
	return ParseDoorPolicy(b)
}

func ParseDoorPolicy(b []byte) (*DoorPolicy, error) {
	var raw DoorPolicy
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse door policy: %w", err)
	}

	// Tier names are matched case-insensitively.
	p := &DoorPolicy{
		Tiers:    make(map[string][]string, len(raw.Tiers)),
		Branches: make(map[string]map[string][]string, len(raw.Branches)),
	}
	for tier, doors := range raw.Tiers {
		p.Tiers[normTier(tier)] = doors
	}
	for branch, tiers := range raw.Branches {
		m := make(map[string][]string, len(tiers))
		for tier, doors := range tiers {
			m[normTier(tier)] = doors
		}
		p.Branches[branch] = m
	}
	return p, nil
}

// Doors returns the full target door set of an active member: the branch
// standard doors plus whatever the tier adds, deduplicated and sorted.
func (p *DoorPolicy) Doors(branchID, tier string, standard []string) []string {
	set := make(map[string]struct{})
	add := func(doors []string) {
		for _, d := range doors {
			if d = strings.TrimSpace(d); d != "" {
				set[d] = struct{}{}
			}
		}
	}

	add(standard)
	if p != nil && tier != "" {
		t := normTier(tier)
		add(p.Tiers[t])
		add(p.Branches[branchID][t])
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func normTier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
