package checks

import (
	"regexp"

	"github.com/alan/repo-auditor/internal/scanner"
)

// DefaultCentralizedSymbols matches references to a shared TLS profile package
const DefaultCentralizedSymbols = `(?i)\b(tlsprofile|tls_profile|tlsconfig|tls_config)\b`

var (
	goTestGlobs     = []string{"*_test.go"}
	pythonTestGlobs = []string{"test_*.py", "*_test.py"}
	jsTestGlobs     = []string{"*.test.js", "*.test.ts", "*.test.jsx", "*.test.tsx", "*.spec.js", "*.spec.ts"}
	cppTestGlobs    = []string{"*_test.cc", "*_unittest.cc", "*_test.cpp"}
)

// TLSSet returns the TLS pattern set for a GitHub primary language, or false when the
// language is not covered
func TLSSet(language string, centralized *regexp.Regexp) (scanner.PatternSet, bool) {
	switch language {
	case "Go":
		return goTLSSet(centralized), true
	case "Python":
		return pythonTLSSet(centralized), true
	case "JavaScript", "TypeScript":
		return jsTLSSet(centralized), true
	case "C++", "C":
		return cppTLSSet(centralized), true
	default:
		return scanner.PatternSet{}, false
	}
}

func goTLSSet(centralized *regexp.Regexp) scanner.PatternSet {
	return scanner.PatternSet{
		Name:         "tls-go",
		Language:     "Go",
		Extensions:   []string{".go"},
		ExcludeGlobs: goTestGlobs,
		Patterns: []scanner.Pattern{
			{
				Severity:    scanner.SeverityCritical,
				Label:       "insecure-skip-verify",
				Description: "TLS certificate verification disabled (InsecureSkipVerify: true)",
				Regex:       regexp.MustCompile(`InsecureSkipVerify:\s*true`),
				Queries:     []string{"InsecureSkipVerify"},
			},
			{
				Severity:    scanner.SeverityHigh,
				Label:       "legacy-tls-version",
				Description: "TLS 1.0/1.1 or SSLv3 referenced",
				Regex:       regexp.MustCompile(`tls\.Version(TLS10|TLS11|SSL30)\b`),
				Queries:     []string{"tls.VersionTLS10", "tls.VersionTLS11", "tls.VersionSSL30"},
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "hardcoded-tls-version",
				Description: "TLS minimum or maximum version hardcoded instead of using the central TLS profile",
				Regex:       regexp.MustCompile(`(MinVersion|MaxVersion):\s*tls\.VersionTLS1[0-3]`),
				Queries:     []string{"MinVersion", "MaxVersion"},
				SuppressIf:  centralized,
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "custom-cipher-suites",
				Description: "Custom cipher suite list configured",
				Regex:       regexp.MustCompile(`CipherSuites:\s*\[\]uint16`),
				Queries:     []string{"CipherSuites"},
				SuppressIf:  centralized,
			},
		},
	}
}

func pythonTLSSet(centralized *regexp.Regexp) scanner.PatternSet {
	return scanner.PatternSet{
		Name:         "tls-python",
		Language:     "Python",
		Extensions:   []string{".py"},
		ExcludeGlobs: pythonTestGlobs,
		Patterns: []scanner.Pattern{
			{
				Severity:    scanner.SeverityCritical,
				Label:       "verify-false",
				Description: "HTTP client certificate verification disabled (verify=False)",
				Regex:       regexp.MustCompile(`verify\s*=\s*False\b`),
				Queries:     []string{"verify"},
			},
			{
				Severity:    scanner.SeverityCritical,
				Label:       "cert-none",
				Description: "SSL context accepts any certificate (CERT_NONE or check_hostname=False)",
				Regex:       regexp.MustCompile(`ssl\.CERT_NONE|check_hostname\s*=\s*False`),
				Queries:     []string{"CERT_NONE", "check_hostname"},
			},
			{
				Severity:    scanner.SeverityHigh,
				Label:       "unverified-context",
				Description: "Unverified SSL context created",
				Regex:       regexp.MustCompile(`ssl\._create_unverified_context\s*\(`),
				Queries:     []string{"_create_unverified_context"},
			},
			{
				Severity:    scanner.SeverityHigh,
				Label:       "legacy-tls-version",
				Description: "Legacy SSL/TLS protocol constant referenced",
				Regex:       regexp.MustCompile(`PROTOCOL_(SSLv2|SSLv3|TLSv1|TLSv1_1)\b|TLSVersion\.(TLSv1|TLSv1_1)\b`),
				Queries:     []string{"PROTOCOL_SSLv2", "PROTOCOL_SSLv3", "PROTOCOL_TLSv1", "TLSVersion.TLSv1"},
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "hardcoded-tls-version",
				Description: "TLS minimum version hardcoded instead of using the central TLS profile",
				Regex:       regexp.MustCompile(`(minimum|maximum)_version\s*=\s*ssl\.TLSVersion\.`),
				Queries:     []string{"minimum_version", "maximum_version"},
				SuppressIf:  centralized,
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "custom-cipher-suites",
				Description: "Custom cipher string configured",
				Regex:       regexp.MustCompile(`\.set_ciphers\s*\(`),
				Queries:     []string{"set_ciphers"},
				SuppressIf:  centralized,
			},
		},
	}
}

func jsTLSSet(centralized *regexp.Regexp) scanner.PatternSet {
	return scanner.PatternSet{
		Name:         "tls-js",
		Language:     "JavaScript",
		Extensions:   []string{".js", ".mjs", ".cjs", ".ts", ".jsx", ".tsx"},
		ExcludeGlobs: jsTestGlobs,
		ExcludeDirs:  []string{"dist", "__tests__"},
		Patterns: []scanner.Pattern{
			{
				Severity:    scanner.SeverityCritical,
				Label:       "reject-unauthorized-false",
				Description: "TLS certificate verification disabled (rejectUnauthorized: false)",
				Regex:       regexp.MustCompile(`rejectUnauthorized\s*:\s*false`),
				Queries:     []string{"rejectUnauthorized"},
			},
			{
				Severity:    scanner.SeverityCritical,
				Label:       "node-tls-reject-unauthorized",
				Description: "NODE_TLS_REJECT_UNAUTHORIZED set to 0",
				Regex:       regexp.MustCompile(`NODE_TLS_REJECT_UNAUTHORIZED\s*=\s*['"]?0`),
				Queries:     []string{"NODE_TLS_REJECT_UNAUTHORIZED"},
			},
			{
				Severity:    scanner.SeverityHigh,
				Label:       "legacy-tls-version",
				Description: "Legacy TLS protocol method referenced",
				Regex:       regexp.MustCompile(`(SSLv3|TLSv1|TLSv1_1)_method\b`),
				Queries:     []string{"SSLv3_method", "TLSv1_method", "TLSv1_1_method"},
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "hardcoded-tls-version",
				Description: "TLS minimum or maximum version hardcoded instead of using the central TLS profile",
				Regex:       regexp.MustCompile(`(minVersion|maxVersion)\s*:\s*['"]TLSv1(\.[0-3])?['"]`),
				Queries:     []string{"minVersion", "maxVersion"},
				SuppressIf:  centralized,
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "custom-cipher-suites",
				Description: "Custom cipher string configured",
				Regex:       regexp.MustCompile(`\bciphers\s*:\s*['"]`),
				Queries:     []string{"ciphers"},
				SuppressIf:  centralized,
			},
		},
	}
}

func cppTLSSet(centralized *regexp.Regexp) scanner.PatternSet {
	return scanner.PatternSet{
		Name:         "tls-cpp",
		Language:     "C++",
		Extensions:   []string{".cc", ".cpp", ".cxx", ".c", ".h", ".hpp"},
		ExcludeGlobs: cppTestGlobs,
		Patterns: []scanner.Pattern{
			{
				Severity:    scanner.SeverityCritical,
				Label:       "ssl-verify-none",
				Description: "OpenSSL peer verification disabled (SSL_VERIFY_NONE)",
				Regex:       regexp.MustCompile(`\bSSL_VERIFY_NONE\b`),
				Queries:     []string{"SSL_VERIFY_NONE"},
			},
			{
				Severity:    scanner.SeverityHigh,
				Label:       "legacy-tls-version",
				Description: "Legacy SSL/TLS method or protocol constant referenced",
				Regex:       regexp.MustCompile(`\b(SSLv3|TLSv1|TLSv1_1)_(client_|server_)?method\s*\(|\b(SSL3|TLS1|TLS1_1)_VERSION\b`),
				Queries:     []string{"SSLv3_", "TLSv1_", "SSL3_VERSION", "TLS1_VERSION", "TLS1_1_VERSION"},
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "hardcoded-tls-version",
				Description: "TLS protocol version bounds hardcoded instead of using the central TLS profile",
				Regex:       regexp.MustCompile(`SSL_CTX_set_(min|max)_proto_version\s*\(`),
				Queries:     []string{"SSL_CTX_set_min_proto_version", "SSL_CTX_set_max_proto_version"},
				SuppressIf:  centralized,
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "custom-cipher-suites",
				Description: "Custom cipher list configured",
				Regex:       regexp.MustCompile(`SSL_CTX_set_(cipher_list|ciphersuites)\s*\(`),
				Queries:     []string{"SSL_CTX_set_cipher_list", "SSL_CTX_set_ciphersuites"},
				SuppressIf:  centralized,
			},
		},
	}
}

// UBISet matches Red Hat Universal Base Image references in container build files
func UBISet() scanner.PatternSet {
	return scanner.PatternSet{
		Name:      "ubi",
		Language:  "Dockerfile",
		Filenames: []string{"Dockerfile", "Containerfile"},
		Patterns: []scanner.Pattern{
			{
				Severity:    scanner.SeverityCritical,
				Label:       "ubi7-base-image",
				Description: "UBI 7 base image is past end of maintenance; move to UBI 9",
				Regex:       regexp.MustCompile(`(?mi)^\s*FROM\s+(--platform=\S+\s+)?\S*ubi7\b`),
			},
			{
				Severity:    scanner.SeverityMedium,
				Label:       "ubi8-base-image",
				Description: "UBI 8 base image; plan the move to UBI 9",
				Regex:       regexp.MustCompile(`(?mi)^\s*FROM\s+(--platform=\S+\s+)?\S*ubi8\b`),
			},
			{
				Severity:    scanner.SeverityInfo,
				Label:       "ubi-latest-tag",
				Description: "UBI base image pinned to the mutable latest tag",
				Regex:       regexp.MustCompile(`(?mi)^\s*FROM\s+(--platform=\S+\s+)?\S*ubi\d*(/[\w.-]+)?:latest\b`),
			},
		},
	}
}
