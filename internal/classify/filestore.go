package classify

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/alan/repo-auditor/internal/store"
)

// FileStore keeps each set as a sorted text file with one full name per line
type FileStore struct {
	dir  string
	mu   sync.Mutex
	sets map[string]map[string]bool
}

// NewFileStore creates a store rooted at dir (usually <cache_dir>/classify)
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, sets: make(map[string]map[string]bool)}
}

func (s *FileStore) path(set string) string {
	return filepath.Join(s.dir, set+".txt")
}

// load returns the in-memory copy of a set, reading it on first use. Caller holds mu.
func (s *FileStore) load(set string) (map[string]bool, error) {
	if members, ok := s.sets[set]; ok {
		return members, nil
	}

	members := make(map[string]bool)
	data, err := os.ReadFile(s.path(set))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", set, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			members[line] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", set, err)
	}

	s.sets[set] = members
	return members, nil
}

// Contains implements SetStore
func (s *FileStore) Contains(set, repo string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(set)
	if err != nil {
		return false, err
	}
	return members[repo], nil
}

// Add implements SetStore
func (s *FileStore) Add(set, repo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(set)
	if err != nil {
		return err
	}
	if members[repo] {
		return nil
	}
	members[repo] = true
	if err := s.flush(set, members); err != nil {
		delete(members, repo)
		return err
	}
	return nil
}

// Members implements SetStore
func (s *FileStore) Members(set string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.load(set)
	if err != nil {
		return nil, err
	}
	return sorted(members), nil
}

// Clear implements SetStore
func (s *FileStore) Clear(set string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets, set)
	if err := os.Remove(s.path(set)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", set, err)
	}
	return nil
}

func (s *FileStore) flush(set string, members map[string]bool) error {
	var buf bytes.Buffer
	for _, repo := range sorted(members) {
		buf.WriteString(repo)
		buf.WriteByte('\n')
	}
	return store.WriteFileAtomic(s.path(set), buf.Bytes())
}

func sorted(members map[string]bool) []string {
	repos := make([]string, 0, len(members))
	for repo := range members {
		repos = append(repos, repo)
	}
	slices.Sort(repos)
	return repos
}
