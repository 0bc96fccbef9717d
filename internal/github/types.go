package github

import "time"

// Repository is an enumerated organization repository
type Repository struct {
	FullName      string
	Owner         string
	Name          string
	DefaultBranch string
	Language      string
	Fork          bool
	Archived      bool
	PushedAt      time.Time
}

// Issue represents a GitHub issue
type Issue struct {
	Number int
	Title  string
	Body   string
	URL    string
	State  string // "open" or "closed"
}

// Comment represents a comment on an issue
type Comment struct {
	ID        int64
	Body      string
	User      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
