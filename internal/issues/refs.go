package issues

import (
	"maps"
	"sync"
)

// RefStore remembers the issue number managed for a key
type RefStore interface {
	IssueNumber(key string) (int, bool)
	SetIssueNumber(key string, number int)
	ForgetIssueNumber(key string)
}

// RefKey identifies the issue of a check in a repository
func RefKey(repo, checkKey string) string {
	return repo + "#" + checkKey
}

// Refs is an in-memory RefStore safe for concurrent use
type Refs struct {
	mu   sync.Mutex
	refs map[string]int
}

// NewRefs copies initial into a new store
func NewRefs(initial map[string]int) *Refs {
	refs := make(map[string]int, len(initial))
	maps.Copy(refs, initial)
	return &Refs{refs: refs}
}

// IssueNumber implements RefStore
func (r *Refs) IssueNumber(key string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.refs[key]
	return n, ok && n > 0
}

// SetIssueNumber implements RefStore
func (r *Refs) SetIssueNumber(key string, number int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[key] = number
}

// ForgetIssueNumber implements RefStore
func (r *Refs) ForgetIssueNumber(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refs, key)
}

// Snapshot returns a copy of every stored reference
func (r *Refs) Snapshot() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.refs)
}
