// Package results caches per-check scan findings for a limited time so repeated runs do
// not rescan every repository.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alan/repo-auditor/internal/scanner"
)

// DefaultTTL is how long a results document stays valid
const DefaultTTL = 6 * time.Hour

var errCorrupt = errors.New("corrupt results document")

// DocumentStore persists named JSON documents. Load returns nil data for a missing document.
type DocumentStore interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
	Delete(name string) error
}

// Entry is the cached outcome for one repository
type Entry struct {
	Findings    []scanner.Finding `json:"findings"`
	LastChecked time.Time         `json:"last_checked"`
	Branch      string            `json:"branch"`
	Language    string            `json:"language"`
}

// Document is the persisted form of a check's results
type Document struct {
	Timestamp    time.Time        `json:"timestamp"`
	Repositories map[string]Entry `json:"repositories"`
}

// Cache is one check's results document, loaded once per run
type Cache struct {
	store DocumentStore
	name  string
	now   time.Time
	valid bool

	mu  sync.Mutex
	doc Document
}

// Open loads the document called name. It is valid when younger than ttl and force is
// false; an invalid document is replaced by an empty one stamped now, so every repository
// is rescanned and overwritten.
func Open(store DocumentStore, name string, ttl time.Duration, force bool, now time.Time) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	doc, err := Read(store, name)
	if err != nil && !errors.Is(err, errCorrupt) {
		return nil, err
	}
	if err != nil {
		slog.Warn("Ignoring corrupt results cache", "name", name, "error", err)
	}

	c := &Cache{store: store, name: name, now: now}
	if doc != nil && !force && now.Sub(doc.Timestamp) < ttl {
		c.doc = *doc
		c.valid = true
	}

	if !c.valid {
		c.doc = Document{Timestamp: now}
	}
	if c.doc.Repositories == nil {
		c.doc.Repositories = make(map[string]Entry)
	}

	slog.Debug("Opened results cache", "name", name, "valid", c.valid, "entries", len(c.doc.Repositories))
	return c, nil
}

// Read returns the stored document without applying any expiry, or nil when there is none
func Read(store DocumentStore, name string) (*Document, error) {
	data, err := store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load results %s: %w", name, err)
	}
	if data == nil {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errCorrupt, name, err)
	}
	return &doc, nil
}

// IsValid reports whether the loaded document was fresh when opened
func (c *Cache) IsValid() bool {
	return c.valid
}

// Get returns the cached findings for repo
func (c *Cache) Get(repo string) ([]scanner.Finding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.doc.Repositories[repo]
	if !ok {
		return nil, false
	}
	return entry.Findings, true
}

// Put stores the findings for repo; an empty slice records a clean scan
func (c *Cache) Put(repo string, findings []scanner.Finding, branch, language string) {
	if findings == nil {
		findings = []scanner.Finding{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Repositories[repo] = Entry{
		Findings:    findings,
		LastChecked: c.now,
		Branch:      branch,
		Language:    language,
	}
}

// Save writes the whole document
func (c *Cache) Save() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.doc, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := c.store.Save(c.name, data); err != nil {
		return fmt.Errorf("failed to save results %s: %w", c.name, err)
	}
	return nil
}

// Clear deletes the persisted document and empties the in-memory one
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.doc = Document{Timestamp: c.now, Repositories: make(map[string]Entry)}
	c.valid = false
	c.mu.Unlock()

	if err := c.store.Delete(c.name); err != nil {
		return fmt.Errorf("failed to delete results %s: %w", c.name, err)
	}
	return nil
}
