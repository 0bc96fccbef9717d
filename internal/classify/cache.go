// Package classify keeps the persisted repository classifications that let a run skip
// repositories without repeating network calls.
package classify

import (
	"fmt"
	"strings"
)

// Kind is the reason a repository is excluded from scanning
type Kind string

const (
	KindFork        Kind = "fork"
	KindAbandoned   Kind = "abandoned"
	KindNoManifest  Kind = "no-manifest"
	KindBlocklisted Kind = "blocklisted"
)

// PersistedKinds are the kinds backed by a set store; blocklisted comes from config
var PersistedKinds = []Kind{KindFork, KindAbandoned, KindNoManifest}

// ParseKind converts a command-line value into a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFork, "forks":
		return KindFork, nil
	case KindAbandoned:
		return KindAbandoned, nil
	case KindNoManifest:
		return KindNoManifest, nil
	case KindBlocklisted:
		return KindBlocklisted, nil
	default:
		return "", fmt.Errorf("unknown classification %q (valid: fork, abandoned, no-manifest)", s)
	}
}

// SetStore persists named sets of repository full names
type SetStore interface {
	Contains(set, repo string) (bool, error)
	Add(set, repo string) error
	Members(set string) ([]string, error)
	Clear(set string) error
}

// Cache maps classification kinds onto store sets. Fork and abandoned sets are shared by
// every check; the no-manifest set is scoped to the manifest path.
type Cache struct {
	store    SetStore
	manifest string
}

// NewCache creates a cache; manifest may be empty for checks that need none
func NewCache(store SetStore, manifest string) *Cache {
	return &Cache{store: store, manifest: manifest}
}

// SetName returns the store set backing kind for the given manifest
func SetName(kind Kind, manifest string) (string, error) {
	switch kind {
	case KindFork:
		return "forks", nil
	case KindAbandoned:
		return "abandoned", nil
	case KindNoManifest:
		if manifest == "" {
			return "", fmt.Errorf("no-manifest classification requires a manifest")
		}
		return "no-manifest-" + strings.ReplaceAll(manifest, "/", "_"), nil
	default:
		return "", fmt.Errorf("classification %q is not persisted", kind)
	}
}

// IsClassified reports whether repo is recorded under kind
func (c *Cache) IsClassified(repo string, kind Kind) (bool, error) {
	set, err := SetName(kind, c.manifest)
	if err != nil {
		return false, err
	}
	return c.store.Contains(set, repo)
}

// Record adds repo under kind. Recording twice leaves a single entry.
func (c *Cache) Record(repo string, kind Kind) error {
	set, err := SetName(kind, c.manifest)
	if err != nil {
		return err
	}
	return c.store.Add(set, repo)
}

// Members lists the repositories recorded under kind, sorted
func (c *Cache) Members(kind Kind) ([]string, error) {
	set, err := SetName(kind, c.manifest)
	if err != nil {
		return nil, err
	}
	return c.store.Members(set)
}

// Clear removes every persisted classification visible to this cache
func (c *Cache) Clear() error {
	for _, kind := range PersistedKinds {
		if kind == KindNoManifest && c.manifest == "" {
			continue
		}
		set, err := SetName(kind, c.manifest)
		if err != nil {
			return err
		}
		if err := c.store.Clear(set); err != nil {
			return fmt.Errorf("failed to clear %s: %w", set, err)
		}
	}
	return nil
}
