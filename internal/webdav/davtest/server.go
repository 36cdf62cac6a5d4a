// Package davtest runs an in-memory WebDAV server for tests.
//
// The server is backed by golang.org/x/net/webdav with an in-memory file system
// and lock system. Lock tokens use the opaquelocktoken scheme, every request is
// recorded in order, and LOCK can be refused per resource to simulate a denied
// lock.
package davtest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/webdav"
)

// LockBody is a LOCK request body template accepted by the server
const LockBody = `<?xml version="1.0" encoding="utf-8"?>` +
	`<D:lockinfo xmlns:D="DAV:">` +
	`<D:lockscope><D:exclusive/></D:lockscope>` +
	`<D:locktype><D:write/></D:locktype>` +
	`<D:owner><D:href>{username}</D:href></D:owner>` +
	`</D:lockinfo>`

const tokenScheme = "opaquelocktoken:"

// Request is a recorded request
type Request struct {
	Method string
	Path   string
	Header http.Header
}

// Server is an in-memory WebDAV server
type Server struct {
	*httptest.Server

	fs webdav.FileSystem

	mu       sync.Mutex
	requests []Request
	denied   map[string]bool
}

// NewServer starts a server holding files, keyed by resource path
func NewServer(tb testing.TB, files map[string]string) *Server {
	tb.Helper()

	s := &Server{
		fs:     webdav.NewMemFS(),
		denied: make(map[string]bool),
	}
	handler := &webdav.Handler{
		FileSystem: s.fs,
		LockSystem: &opaqueLockSystem{LockSystem: webdav.NewMemLS()},
	}
	s.Server = httptest.NewServer(s.record(handler))
	s.Config.SetKeepAlivesEnabled(false)
	tb.Cleanup(s.Close)

	for name, content := range files {
		s.Write(tb, name, content)
	}
	return s
}

// DenyLock makes every LOCK on resource fail with 423 Locked
func (s *Server) DenyLock(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[clean(resource)] = true
}

// Requests returns the recorded requests in arrival order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Methods returns "METHOD /path" for every recorded request in arrival order
func (s *Server) Methods() []string {
	requests := s.Requests()
	out := make([]string, 0, len(requests))
	for _, r := range requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

// ResetRequests clears the recorded requests
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Write stores content at resource, creating parent collections
func (s *Server) Write(tb testing.TB, resource, content string) {
	tb.Helper()

	ctx := context.Background()
	name := clean(resource)
	dir := path.Dir(name)
	if dir != "/" {
		var parent string
		for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
			parent += "/" + part
			if err := s.fs.Mkdir(ctx, parent, 0o755); err != nil && !os.IsExist(err) {
				tb.Fatalf("failed to create collection %s: %v", parent, err)
			}
		}
	}

	f, err := s.fs.OpenFile(ctx, name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		tb.Fatalf("failed to open %s: %v", name, err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		tb.Fatalf("failed to write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		tb.Fatalf("failed to close %s: %v", name, err)
	}
}

// Read returns the content stored at resource
func (s *Server) Read(tb testing.TB, resource string) string {
	tb.Helper()

	f, err := s.fs.OpenFile(context.Background(), clean(resource), os.O_RDONLY, 0)
	if err != nil {
		tb.Fatalf("failed to open %s: %v", resource, err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		tb.Fatalf("failed to read %s: %v", resource, err)
	}
	return string(data)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		denied := r.Method == "LOCK" && s.denied[clean(r.URL.Path)]
		s.mu.Unlock()

		if denied {
			w.Header().Set("Content-Type", "application/xml; charset=utf-8")
			w.WriteHeader(http.StatusLocked)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>`+
				`<D:error xmlns:D="DAV:"><D:lock-token-submitted/></D:error>`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clean(resource string) string {
	return path.Clean("/" + strings.TrimPrefix(resource, "/"))
}

// opaqueLockSystem issues tokens in the opaquelocktoken URI scheme on top of a
// lock system whose tokens carry no scheme.
type opaqueLockSystem struct {
	webdav.LockSystem
}

func (l *opaqueLockSystem) Confirm(
	now time.Time, name0, name1 string, conditions ...webdav.Condition,
) (func(), error) {
	stripped := make([]webdav.Condition, len(conditions))
	for i, c := range conditions {
		c.Token = strings.TrimPrefix(c.Token, tokenScheme)
		stripped[i] = c
	}
	return l.LockSystem.Confirm(now, name0, name1, stripped...)
}

func (l *opaqueLockSystem) Create(now time.Time, details webdav.LockDetails) (string, error) {
	token, err := l.LockSystem.Create(now, details)
	if err != nil {
		return "", err
	}
	return tokenScheme + token, nil
}

func (l *opaqueLockSystem) Refresh(now time.Time, token string, duration time.Duration) (webdav.LockDetails, error) {
	return l.LockSystem.Refresh(now, strings.TrimPrefix(token, tokenScheme), duration)
}

func (l *opaqueLockSystem) Unlock(now time.Time, token string) error {
	return l.LockSystem.Unlock(now, strings.TrimPrefix(token, tokenScheme))
}
