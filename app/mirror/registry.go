package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry maps each category to its ordered mirror base URLs.
// It is immutable once built and safe for concurrent reads.
type Registry struct {
	mirrors map[Category][]string
}

func NewRegistry(mirrors map[Category][]string) (*Registry, error) {
	r := &Registry{mirrors: make(map[Category][]string, len(mirrors))}

	for category, bases := range mirrors {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category '%s'", category)
		}

		cleaned := make([]string, 0, len(bases))
		for i, base := range bases {
			normalized, err := validateBase(base)
			if err != nil {
				return nil, fmt.Errorf("invalid mirror at %s[%d]: %w", category, i, err)
			}
			cleaned = append(cleaned, normalized)
		}
		r.mirrors[category] = cleaned
	}

	return r, nil
}

// Load reads the mirrors YAML file. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Mirrors file not found, every category starts empty", "path", path)
		return NewRegistry(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	registry, err := NewRegistry(file)
	if err != nil {
		return nil, fmt.Errorf("invalid mirrors file %s: %w", path, err)
	}

	for _, category := range AllCategories {
		slog.Debug("Mirrors loaded", "category", category, "count", len(registry.mirrors[category]))
	}

	return registry, nil
}

// MirrorsFor returns a copy of the configured bases for category.
// An empty result means no providers are configured.
func (r *Registry) MirrorsFor(category Category) []string {
	if r == nil {
		return []string{}
	}
	return append([]string{}, r.mirrors[category]...)
}

// Categories returns the categories that have at least one mirror
func (r *Registry) Categories() []Category {
	var categories []Category
	for _, category := range AllCategories {
		if r != nil && len(r.mirrors[category]) > 0 {
			categories = append(categories, category)
		}
	}
	return categories
}

// Bases returns every distinct base across all categories, sorted
func (r *Registry) Bases() []string {
	if r == nil {
		return nil
	}

	var bases []string
	for _, list := range r.mirrors {
		bases = append(bases, list...)
	}
	slices.Sort(bases)
	return slices.Compact(bases)
}

// Hosts returns the hostname of every distinct base, without port
func (r *Registry) Hosts() []string {
	var hosts []string
	for _, base := range r.Bases() {
		if u, err := url.Parse(base); err == nil {
			hosts = append(hosts, u.Hostname())
		}
	}
	slices.Sort(hosts)
	return slices.Compact(hosts)
}

// Counts reports how many mirrors each category has
func (r *Registry) Counts() map[Category]int {
	counts := make(map[Category]int, len(AllCategories))
	for _, category := range AllCategories {
		counts[category] = len(r.MirrorsFor(category))
	}
	return counts
}

func validateBase(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("base URL is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("host is required")
	}

	return base, nil
}
