package webdav

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

const (
	// ProbeGet reads ETags from the headers of a GET response
	ProbeGet = "get"

	// ProbePropfind reads ETags from the getetag property of a PROPFIND response
	ProbePropfind = "propfind"
)

// Prober reports the raw, uncleaned ETag of a resource
//
//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks github.com/stacklok/davsync/internal/webdav Prober
type Prober interface {
	ETag(ctx context.Context, resource string) (string, error)
}

// GetProber reads the ETag header of a GET through a Client
type GetProber struct {
	client Client
}

// NewGetProber creates a GetProber
func NewGetProber(client Client) *GetProber {
	return &GetProber{client: client}
}

// ETag returns the ETag header of the resource. A missing header is an error.
func (p *GetProber) ETag(ctx context.Context, resource string) (string, error) {
	resp, err := p.client.Get(ctx, resource)
	if err != nil {
		return "", err
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("no ETag header in response for %s", resource)
	}
	return etag, nil
}

// PropfindProber reads ETags with a Depth 0 PROPFIND so bodies are not transferred
type PropfindProber struct {
	client *gowebdav.Client
}

// NewPropfindProber creates a PropfindProber for the origin at baseURL
func NewPropfindProber(baseURL, username, password string, timeout time.Duration) *PropfindProber {
	client := gowebdav.NewClient(strings.TrimSuffix(baseURL, "/"), username, password)
	client.SetHeader("User-Agent", UserAgent)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &PropfindProber{client: client}
}

// ETag returns the quoted getetag property of the resource
func (p *PropfindProber) ETag(ctx context.Context, resource string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := p.client.Stat(strings.TrimPrefix(resource, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", resource, err)
	}
	file, ok := info.(*gowebdav.File)
	if !ok {
		return "", fmt.Errorf("unexpected stat result %T for %s", info, resource)
	}

	etag := file.ETag()
	if etag == "" {
		return "", fmt.Errorf("no getetag property for %s", resource)
	}
	// Servers disagree on whether getetag carries the quotes of the entity tag.
	if !strings.HasSuffix(etag, `"`) {
		etag = `"` + etag + `"`
	}
	return etag, nil
}

// NewProber returns the Prober selected by kind. An empty kind selects ProbeGet.
func NewProber(kind string, client *DefaultClient, username, password string, timeout time.Duration) (Prober, error) {
	switch kind {
	case "", ProbeGet:
		return NewGetProber(client), nil
	case ProbePropfind:
		return NewPropfindProber(client.BaseURL(), username, password, timeout), nil
	default:
		return nil, fmt.Errorf("unknown ETag probe %q", kind)
	}
}
