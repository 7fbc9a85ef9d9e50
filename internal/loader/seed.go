// Package loader reads a YAML seed file describing the hierarchy and applies
// it through the mutation service.
//
// The seed names one network and its buildings. Routers, switches and
// devices may be nested beneath them. Applying a seed is idempotent: nodes
// that already exist (matched by building name or external id) are reused
// and never modified.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"netpulse/internal/domain"
)

// SeedYAML represents the seed file structure
type SeedYAML struct {
	Network   string         `yaml:"network"`
	Buildings []BuildingYAML `yaml:"buildings"`
}

// BuildingYAML represents a building and its routers
type BuildingYAML struct {
	Name    string       `yaml:"name"`
	Routers []RouterYAML `yaml:"routers,omitempty"`
}

// RouterYAML represents a router and its switches
type RouterYAML struct {
	domain.Attributes `yaml:",inline"`
	Switches          []SwitchYAML `yaml:"switches,omitempty"`
}

// SwitchYAML represents a switch and its devices
type SwitchYAML struct {
	domain.Attributes `yaml:",inline"`
	Devices           []domain.Attributes `yaml:"devices,omitempty"`
}

// Mutator is the part of the mutation service a seed needs
type Mutator interface {
	EnsureNetwork(ctx context.Context, name string) (*domain.Node, error)
	EnsureBuilding(ctx context.Context, name string) (*domain.Node, error)
	AddNode(ctx context.Context, kind domain.NodeKind, parentID string, attrs domain.Attributes) (string, error)
	FindNode(kind domain.NodeKind, key string) (*domain.Node, bool)
}

// Result summarizes an Apply call
type Result struct {
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Skipped  []string `json:"skipped,omitempty"`
}

// LoadFile reads and parses a seed file
func LoadFile(path string) (*SeedYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates seed YAML
func Parse(data []byte) (*SeedYAML, error) {
	var seed SeedYAML
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	seed.Network = strings.TrimSpace(seed.Network)
	if seed.Network == "" {
		return nil, fmt.Errorf("seed: %w: network name required", domain.ErrInvalidNode)
	}

	names := make(map[string]bool)
	for i, b := range seed.Buildings {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return nil, fmt.Errorf("seed: %w: building %d has no name", domain.ErrInvalidNode, i)
		}
		if names[name] {
			return nil, fmt.Errorf("seed: %w: building %q listed twice", domain.ErrDuplicateID, name)
		}
		names[name] = true
		seed.Buildings[i].Name = name
	}
	return &seed, nil
}

// Apply creates whatever the seed describes that does not exist yet.
// A node that cannot be created is recorded in Result.Skipped along with its
// subtree; the rest of the seed is still applied. Store failures abort.
func Apply(ctx context.Context, m Mutator, seed *SeedYAML) (*Result, error) {
	res := &Result{}

	if _, err := m.EnsureNetwork(ctx, seed.Network); err != nil {
		return res, fmt.Errorf("seed network: %w", err)
	}

	for _, b := range seed.Buildings {
		building, err := m.EnsureBuilding(ctx, b.Name)
		if err != nil {
			return res, fmt.Errorf("seed building %q: %w", b.Name, err)
		}

		for _, r := range b.Routers {
			routerID, err := res.ensure(ctx, m, domain.KindRouter, building.ID, r.Attributes)
			if err != nil {
				return res, err
			}
			if routerID == "" {
				continue
			}

			for _, s := range r.Switches {
				switchID, err := res.ensure(ctx, m, domain.KindSwitch, routerID, s.Attributes)
				if err != nil {
					return res, err
				}
				if switchID == "" {
					continue
				}

				for _, d := range s.Devices {
					if _, err := res.ensure(ctx, m, domain.KindEndDevice, switchID, d); err != nil {
						return res, err
					}
				}
			}
		}
	}

	return res, nil
}

// ensure returns the id of the existing or newly created node, or "" if it
// was skipped. Only store failures are returned as errors.
func (r *Result) ensure(ctx context.Context, m Mutator, kind domain.NodeKind, parentID string, attrs domain.Attributes) (string, error) {
	if existing, ok := m.FindNode(kind, strings.TrimSpace(attrs.ExternalID)); ok {
		if existing.ParentID != parentID {
			r.skip(kind, attrs.ExternalID, "exists under a different parent")
			return "", nil
		}
		r.Existing++
		return existing.ID, nil
	}

	id, err := m.AddNode(ctx, kind, parentID, attrs)
	switch {
	case err == nil:
		r.Created++
		return id, nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "", fmt.Errorf("seed %s %q: %w", kind, attrs.ExternalID, err)
	default:
		r.skip(kind, attrs.ExternalID, err.Error())
		return "", nil
	}
}

func (r *Result) skip(kind domain.NodeKind, key, reason string) {
	r.Skipped = append(r.Skipped, fmt.Sprintf("%s %q: %s", kind, key, reason))
}
