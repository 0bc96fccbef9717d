package checks

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alan/repo-auditor/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// substringSearch answers code search with every file containing the quoted literal
type substringSearch map[string]string

func (s substringSearch) SearchCode(_ context.Context, query string) ([]string, error) {
	_, quoted, ok := strings.Cut(query, " ")
	if !ok {
		return nil, errors.New("query has no literal")
	}
	literal, err := strconv.Unquote(quoted)
	if err != nil {
		return nil, err
	}

	var paths []string
	for path, content := range s {
		if strings.Contains(content, literal) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func (s substringSearch) FetchRawFile(_ context.Context, _, _, path string) ([]byte, error) {
	content, ok := s[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(content), nil
}

func (s substringSearch) ListTree(context.Context, string, string) ([]string, error) {
	return nil, nil
}

var tlsSamples = map[string]substringSearch{
	"Go": {
		"pkg/skip.go":      "c := &tls.Config{InsecureSkipVerify: true}",
		"pkg/tls10.go":     "v := tls.VersionTLS10",
		"pkg/tls11.go":     "v := tls.VersionTLS11",
		"pkg/ssl30.go":     "c := &tls.Config{MinVersion: tls.VersionSSL30}",
		"pkg/min.go":       "c := &tls.Config{MinVersion: tls.VersionTLS12}",
		"pkg/max.go":       "c := &tls.Config{MaxVersion: tls.VersionTLS13}",
		"pkg/ciphers.go":   "c := &tls.Config{CipherSuites: []uint16{tls.TLS_AES_128_GCM_SHA256}}",
		"pkg/profile.go":   "c := tlsprofile.Apply(&tls.Config{MinVersion: tls.VersionTLS12})",
		"pkg/comment.go":   "// InsecureSkipVerify is never enabled here",
		"pkg/skip_test.go": "c := &tls.Config{InsecureSkipVerify: true}",
		"vendor/x/tls.go":  "c := &tls.Config{InsecureSkipVerify: true}",
	},
	"Python": {
		"app/verify.py":      "requests.get(url, verify = False)",
		"app/certnone.py":    "ctx.verify_mode = ssl.CERT_NONE",
		"app/hostname.py":    "ctx.check_hostname = False",
		"app/unverified.py":  "ctx = ssl._create_unverified_context()",
		"app/sslv2.py":       "ctx = ssl.SSLContext(ssl.PROTOCOL_SSLv2)",
		"app/sslv3.py":       "ctx = ssl.SSLContext(ssl.PROTOCOL_SSLv3)",
		"app/tlsv11.py":      "ctx = ssl.SSLContext(ssl.PROTOCOL_TLSv1_1)",
		"app/tlsversion.py":  "ctx.minimum_version = ssl.TLSVersion.TLSv1_1",
		"app/maxversion.py":  "ctx.maximum_version = ssl.TLSVersion.TLSv1_3",
		"app/ciphers.py":     "ctx.set_ciphers('ECDHE+AESGCM')",
		"app/test_client.py": "requests.get(url, verify=False)",
		"tests/helpers.py":   "requests.get(url, verify=False)",
	},
	"JavaScript": {
		"src/reject.js":    "https.request({ rejectUnauthorized: false })",
		"src/env.ts":       "process.env.NODE_TLS_REJECT_UNAUTHORIZED = '0'",
		"src/sslv3.js":     "tls.createSecureContext({ secureProtocol: 'SSLv3_method' })",
		"src/tlsv1.js":     "tls.createSecureContext({ secureProtocol: 'TLSv1_method' })",
		"src/tlsv11.ts":    "tls.createSecureContext({ secureProtocol: 'TLSv1_1_method' })",
		"src/min.ts":       "tls.connect({ minVersion: 'TLSv1.2' })",
		"src/max.js":       "tls.connect({ maxVersion: 'TLSv1.3' })",
		"src/ciphers.js":   "tls.connect({ ciphers: 'ECDHE-RSA-AES128-GCM-SHA256' })",
		"src/a.test.js":    "https.request({ rejectUnauthorized: false })",
		"dist/bundle.js":   "https.request({ rejectUnauthorized: false })",
		"docs/readme.md":   "rejectUnauthorized: false",
		"src/safe.js":      "https.request({ rejectUnauthorized: true })",
		"src/nociphers.js": "// ciphers are left to the runtime",
	},
	"C++": {
		"src/verify.cc":      "SSL_CTX_set_verify(ctx, SSL_VERIFY_NONE, nullptr);",
		"src/sslv3.cc":       "SSL_CTX *ctx = SSL_CTX_new(SSLv3_client_method());",
		"src/tlsv1.cpp":      "SSL_CTX *ctx = SSL_CTX_new(TLSv1_method());",
		"src/tlsv11.cc":      "SSL_CTX *ctx = SSL_CTX_new(TLSv1_1_server_method());",
		"src/tls1.h":         "int v = TLS1_VERSION;",
		"src/ssl3.c":         "int v = SSL3_VERSION;",
		"src/tls11.hpp":      "int v = TLS1_1_VERSION;",
		"src/min.cc":         "SSL_CTX_set_min_proto_version(ctx, TLS1_2_VERSION);",
		"src/max.cc":         "SSL_CTX_set_max_proto_version(ctx, TLS1_3_VERSION);",
		"src/suites.cc":      "SSL_CTX_set_ciphersuites(ctx, \"TLS_AES_128_GCM_SHA256\");",
		"src/list.cc":        "SSL_CTX_set_cipher_list(ctx, \"HIGH:!aNULL\");",
		"src/client_test.cc": "SSL_CTX_set_verify(ctx, SSL_VERIFY_NONE, nullptr);",
		"third_party/x.cc":   "SSL_CTX_set_verify(ctx, SSL_VERIFY_NONE, nullptr);",
	},
}

func TestTLSSets_RemoteMatchesLocal(t *testing.T) {
	centralized := regexp.MustCompile(DefaultCentralizedSymbols)

	for language, files := range tlsSamples {
		t.Run(language, func(t *testing.T) {
			set, ok := TLSSet(language, centralized)
			require.True(t, ok)

			contents := make(map[string][]byte, len(files))
			for path, content := range files {
				contents[path] = []byte(content)
			}
			local, err := scanner.ScanFiles(contents, set, "main")
			require.NoError(t, err)

			remote, err := scanner.NewRemoteScanner(files).WithLimit(time.Nanosecond).
				Scan(context.Background(), scanner.Target{FullName: "acme/svc", Branch: "main"}, set)
			require.NoError(t, err)

			assert.Equal(t, local, remote)

			fired := make(map[string]bool, len(local))
			for _, f := range local {
				fired[f.Pattern] = true
			}
			for _, p := range set.Patterns {
				assert.True(t, fired[p.Label], "samples exercise %s", p.Label)
			}
		})
	}
}

func TestTLSSets_QueriesCoverEveryPattern(t *testing.T) {
	for language := range tlsSamples {
		set, _ := TLSSet(language, nil)
		for _, p := range set.Patterns {
			assert.NotEmpty(t, p.Queries, "%s %s", language, p.Label)
		}
	}
}
