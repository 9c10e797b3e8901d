package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-skipgate/condition"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

// Registry manages named condition types and the declarations binding them to tests
type Registry struct {
	config       Config
	resolver     *Resolver
	conditions   map[string]condition.Type
	declarations map[string][]string
	mu           sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log             log.Logger
	DeclarationFile string // optional YAML or TOML file, picked by extension
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config:       cfg,
		resolver:     NewResolver(cfg.Log),
		conditions:   make(map[string]condition.Type),
		declarations: make(map[string][]string),
	}

	if cfg.DeclarationFile != "" {
		if err := r.LoadDeclarations(cfg.DeclarationFile); err != nil {
			return nil, fmt.Errorf("failed to load declarations: %w", err)
		}
	}

	return r, nil
}

// Register binds name to a condition type
func (r *Registry) Register(name string, t condition.Type) error {
	if name == "" {
		return fmt.Errorf("condition name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.conditions[name]; ok {
		return fmt.Errorf("condition %q already registered as %s", name, existing.Name())
	}
	r.conditions[name] = t
	r.config.Log.Debug("Registered condition", "name", name, "type", t.Name(), "standalone", t.Standalone())
	return nil
}

// MustRegister is Register for package initialisation; it panics on error
func (r *Registry) MustRegister(name string, t condition.Type) {
	if err := r.Register(name, t); err != nil {
		panic(err)
	}
}

// Lookup returns the condition type registered under name
func (r *Registry) Lookup(name string) (condition.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.conditions[name]
	return t, ok
}

// Names returns the registered condition names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conditions))
	for name := range r.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the condition types declared for a test, in declaration
// order. A test without declarations gets an empty list.
func (r *Registry) Declarations(test string) ([]condition.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.declarations[test]
	decls := make([]condition.Type, 0, len(names))
	for _, name := range names {
		t, ok := r.conditions[name]
		if !ok {
			return nil, fmt.Errorf("test %s: %w %q", test, ErrUnknownCondition, name)
		}
		decls = append(decls, t)
	}
	return decls, nil
}

// Resolver returns the resolver used for this registry's conditions
func (r *Registry) Resolver() *Resolver {
	return r.resolver
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// LoadDeclarations reads a declaration file, replacing any previously loaded declarations
func (r *Registry) LoadDeclarations(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sets, err := resolveSets(cfg.Sets)
	if err != nil {
		return fmt.Errorf("failed to resolve set inheritance: %w", err)
	}

	declarations := make(map[string][]string, len(cfg.Tests))
	for _, test := range cfg.Tests {
		if test.Name == "" {
			return fmt.Errorf("declaration without test name in %s", path)
		}
		if _, dup := declarations[test.Name]; dup {
			return fmt.Errorf("test %s declared more than once in %s", test.Name, path)
		}

		names := append([]string(nil), test.Ignore...)
		for _, setID := range test.Sets {
			set, ok := sets[setID]
			if !ok {
				return fmt.Errorf("test %s references non-existent set %q", test.Name, setID)
			}
			names = append(names, set.Conditions...)
		}
		declarations[test.Name] = names
	}

	r.mu.Lock()
	r.declarations = declarations
	r.mu.Unlock()

	r.config.Log.Debug("Declarations loaded", "path", path, "len(tests)", len(declarations))
	return nil
}

// resolveSets checks for circular inheritance and flattens every set
func resolveSets(list []types.ConditionSet) (map[string]types.ConditionSet, error) {
	sets := make(map[string]types.ConditionSet, len(list))
	for _, set := range list {
		if _, dup := sets[set.ID]; dup {
			return nil, fmt.Errorf("set %q defined more than once", set.ID)
		}
		sets[set.ID] = set
	}

	for _, set := range list {
		if err := checkCircularInheritance(set.ID, set.Inherits, sets, make(map[string]bool)); err != nil {
			return nil, fmt.Errorf("circular inheritance detected: %w", err)
		}
	}

	resolved := make(map[string]types.ConditionSet, len(sets))
	for id, set := range sets {
		if err := set.ResolveInherited(sets); err != nil {
			return nil, fmt.Errorf("invalid set inheritance: %w", err)
		}
		resolved[id] = set
	}
	return resolved, nil
}

func checkCircularInheritance(currentID string, inherits []string, sets map[string]types.ConditionSet, visited map[string]bool) error {
	if visited[currentID] {
		return fmt.Errorf("circular inheritance detected at set %s", currentID)
	}

	visited[currentID] = true
	defer delete(visited, currentID)

	for _, inheritedID := range inherits {
		inherited, exists := sets[inheritedID]
		if !exists {
			return fmt.Errorf("set %s inherits from non-existent set %s", currentID, inheritedID)
		}
		if err := checkCircularInheritance(inheritedID, inherited.Inherits, sets, visited); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig loads a declaration config from a YAML or TOML file
func loadConfig(path string) (*types.DeclarationConfig, error) {
	log.Debug("Reading declaration file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg types.DeclarationConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported declaration file extension %q", filepath.Ext(path))
	}

	return &cfg, nil
}
