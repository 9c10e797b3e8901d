package types

import "fmt"

// DeclarationConfig is the on-disk form of condition declarations. It maps test
// names onto ordered lists of registered condition names.
type DeclarationConfig struct {
	Sets  []ConditionSet    `yaml:"sets,omitempty" toml:"sets,omitempty"`
	Tests []TestDeclaration `yaml:"tests" toml:"tests"`
}

// TestDeclaration gates one test. Its own Ignore entries come first, followed by
// the conditions of each referenced set in order.
type TestDeclaration struct {
	Name   string   `yaml:"name" toml:"name"`
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	Sets   []string `yaml:"sets,omitempty" toml:"sets,omitempty"`
}

// ConditionSet is a reusable, named list of conditions
type ConditionSet struct {
	ID          string   `yaml:"id" toml:"id"`
	Description string   `yaml:"description,omitempty" toml:"description,omitempty"`
	Inherits    []string `yaml:"inherits,omitempty" toml:"inherits,omitempty"`
	Conditions  []string `yaml:"conditions,omitempty" toml:"conditions,omitempty"`
}

// ResolveInherited merges the conditions of the sets named in Inherits into s.
//
// The set's own conditions keep their position at the front; inherited
// conditions follow in Inherits order, depth-first, and a condition already
// present is not added twice. Declaration order matters to the gate because
// the first condition voting to skip supplies the reason.
func (s *ConditionSet) ResolveInherited(sets map[string]ConditionSet) error {
	processed := make(map[string]bool)
	return s.resolveInheritedRecursive(sets, processed)
}

func (s *ConditionSet) resolveInheritedRecursive(sets map[string]ConditionSet, processed map[string]bool) error {
	if len(s.Inherits) == 0 {
		return nil
	}

	var merged []string
	seen := make(map[string]bool)
	for _, name := range s.Conditions {
		if !seen[name] {
			merged = append(merged, name)
			seen[name] = true
		}
	}

	for _, inheritFrom := range s.Inherits {
		if processed[inheritFrom] {
			return fmt.Errorf("circular inheritance detected for set %q", inheritFrom)
		}

		parent, ok := sets[inheritFrom]
		if !ok {
			return fmt.Errorf("set %q inherits from non-existent set %q", s.ID, inheritFrom)
		}

		processed[inheritFrom] = true
		if err := parent.resolveInheritedRecursive(sets, processed); err != nil {
			return fmt.Errorf("resolving inheritance for parent set %q: %w", inheritFrom, err)
		}

		for _, name := range parent.Conditions {
			if !seen[name] {
				merged = append(merged, name)
				seen[name] = true
			}
		}
		processed[inheritFrom] = false
	}

	s.Conditions = merged
	return nil
}
