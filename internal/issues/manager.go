package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alan/repo-auditor/internal/github"
)

// OverrideComment keeps a closed issue closed when posted as a comment
const OverrideComment = "closed"

// DefaultResolutionNote is posted before an issue is closed automatically
const DefaultResolutionNote = "All findings for this check are resolved as of the latest scan. Closing automatically."

// API is the slice of the GitHub client the manager needs
type API interface {
	GetIssue(ctx context.Context, fullName string, number int) (*github.Issue, error)
	FindIssueByTitle(ctx context.Context, fullName, title string) (*github.Issue, error)
	CreateIssue(ctx context.Context, fullName, title, body string) (*github.Issue, error)
	EditIssue(ctx context.Context, fullName string, number int, body *string, state string) (*github.Issue, error)
	ListIssueComments(ctx context.Context, fullName string, issueNumber int) ([]github.Comment, error)
	CreateIssueComment(ctx context.Context, fullName string, issueNumber int, body string) (*github.Comment, error)
}

// Outcome reports what a sync did
type Outcome struct {
	Action Action
	Number int
	URL    string
	// Changed is false when an update found the body already current
	Changed bool
}

// Manager applies the lifecycle table against GitHub
type Manager struct {
	api            API
	refs           RefStore
	ResolutionNote string
}

// NewManager creates a manager; refs may be nil to always look issues up by title
func NewManager(api API, refs RefStore) *Manager {
	if refs == nil {
		refs = NewRefs(nil)
	}
	return &Manager{api: api, refs: refs, ResolutionNote: DefaultResolutionNote}
}

// Sync brings the issue titled title in repo to the desired state with body.
// The stored issue number is tried first; an exact title search is the fallback.
func (m *Manager) Sync(ctx context.Context, repo, checkKey, title string, desired Desired, body string) (Outcome, error) {
	key := RefKey(repo, checkKey)

	existing, err := m.lookup(ctx, repo, key, title)
	if err != nil {
		return Outcome{}, err
	}

	state := StateNone
	if existing != nil {
		state = ParseState(existing.State)
	}

	overridden := false
	if state == StateClosed && desired == ShouldExist {
		overridden, err = m.overridden(ctx, repo, existing.Number)
		if err != nil {
			return Outcome{}, err
		}
	}

	action, err := Transition(state, desired, overridden)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Action: action}
	if existing != nil {
		out.Number, out.URL = existing.Number, existing.URL
	}

	switch action {
	case ActionCreate:
		issue, err := m.api.CreateIssue(ctx, repo, title, body)
		if err != nil {
			return Outcome{}, err
		}
		m.refs.SetIssueNumber(key, issue.Number)
		out.Number, out.URL, out.Changed = issue.Number, issue.URL, true

	case ActionUpdate, ActionUpdateKeepClosed:
		if existing.Body != body {
			if _, err := m.api.EditIssue(ctx, repo, existing.Number, &body, ""); err != nil {
				return Outcome{}, err
			}
			out.Changed = true
		}

	case ActionUpdateReopen:
		var newBody *string
		if existing.Body != body {
			newBody = &body
		}
		if _, err := m.api.EditIssue(ctx, repo, existing.Number, newBody, "open"); err != nil {
			return Outcome{}, err
		}
		out.Changed = true

	case ActionCommentClose:
		if _, err := m.api.CreateIssueComment(ctx, repo, existing.Number, m.ResolutionNote); err != nil {
			return Outcome{}, err
		}
		if _, err := m.api.EditIssue(ctx, repo, existing.Number, nil, "closed"); err != nil {
			return Outcome{}, err
		}
		out.Changed = true
	}

	slog.Debug("Synced issue", "repo", repo, "check", checkKey, "state", state, "desired", desired, "action", action, "issue", out.Number)
	return out, nil
}

// lookup resolves the managed issue, or nil when there is none
func (m *Manager) lookup(ctx context.Context, repo, key, title string) (*github.Issue, error) {
	if number, ok := m.refs.IssueNumber(key); ok {
		issue, err := m.api.GetIssue(ctx, repo, number)
		switch {
		case err == nil && issue.Title == title:
			return issue, nil
		case err == nil:
			slog.Info("Stored issue was retitled, searching by title", "repo", repo, "issue", number)
		case errors.Is(err, github.ErrIssueNotFound):
			slog.Info("Stored issue no longer exists, searching by title", "repo", repo, "issue", number)
		default:
			return nil, err
		}
		m.refs.ForgetIssueNumber(key)
	}

	issue, err := m.api.FindIssueByTitle(ctx, repo, title)
	if errors.Is(err, github.ErrIssueNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up issue %q: %w", title, err)
	}

	m.refs.SetIssueNumber(key, issue.Number)
	return issue, nil
}

// overridden reports whether any comment asks to keep the issue closed
func (m *Manager) overridden(ctx context.Context, repo string, number int) (bool, error) {
	comments, err := m.api.ListIssueComments(ctx, repo, number)
	if err != nil {
		return false, err
	}
	for _, c := range comments {
		if strings.EqualFold(strings.TrimSpace(c.Body), OverrideComment) {
			return true, nil
		}
	}
	return false, nil
}
