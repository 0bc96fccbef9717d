// Package cmd defines core data structures for repo-auditor configuration and state.
package cmd

import "time"

// Mode selects how repository content is read
type Mode string

const (
	// ModeAPI scans through code search and raw file downloads
	ModeAPI Mode = "api"
	// ModeClone scans shallow clones under the cache directory
	ModeClone Mode = "clone"
)

// ParseMode converts a string to Mode
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "api":
		return ModeAPI, true
	case "clone":
		return ModeClone, true
	default:
		return "", false
	}
}

// CacheBackend selects where classification sets and results documents live
type CacheBackend string

const (
	// CacheBackendFile keeps one text file per set and one JSON file per results document
	CacheBackendFile CacheBackend = "file"
	// CacheBackendSQLite keeps everything in a single SQLite database
	CacheBackendSQLite CacheBackend = "sqlite"
)

// ParseCacheBackend converts a string to CacheBackend
func ParseCacheBackend(s string) (CacheBackend, bool) {
	switch s {
	case "", "file":
		return CacheBackendFile, true
	case "sqlite":
		return CacheBackendSQLite, true
	default:
		return "", false
	}
}

// Config represents the structure of repo-auditor.yaml
type Config struct {
	Orgs                []string             `yaml:"orgs"`
	TrackingRepo        string               `yaml:"tracking_repo,omitempty"`
	CacheDir            string               `yaml:"cache_dir,omitempty"`
	CacheBackend        CacheBackend         `yaml:"cache_backend,omitempty"`
	ReportDir           string               `yaml:"report_dir,omitempty"`
	ResultsTTL          time.Duration        `yaml:"results_ttl,omitempty"`
	AbandonedDays       int                  `yaml:"abandoned_days,omitempty"`
	Blocklist           []string             `yaml:"blocklist,omitempty"`
	Allowlist           []string             `yaml:"allowlist,omitempty"`
	Parallel            int                  `yaml:"parallel,omitempty"`
	CodeSearchPerMinute int                  `yaml:"code_search_per_minute,omitempty"`
	Mode                Mode                 `yaml:"mode,omitempty"`
	RawBaseURL          string               `yaml:"raw_base_url,omitempty"`
	GoFeedURL           string               `yaml:"go_feed_url,omitempty"`
	ModuleProxyURL      string               `yaml:"module_proxy_url,omitempty"`
	TLS                 TLSConfig            `yaml:"tls,omitempty"`
	TrackedIssues       map[string]int       `yaml:"tracked_issues,omitempty"` // repo#check -> issue number
	LastRun             map[string]time.Time `yaml:"last_run,omitempty"`       // check -> completion time
}

// TLSConfig holds TLS check settings
type TLSConfig struct {
	CentralizedSymbols string `yaml:"centralized_symbols,omitempty"`
}
