package webdav_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/davsync/internal/webdav"
	"github.com/stacklok/davsync/internal/webdav/davtest"
	"github.com/stacklok/davsync/internal/webdav/mocks"
)

func TestGetProber_ETag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		response      *webdav.Response
		responseErr   error
		expected      string
		errorContains string
	}{
		{
			name:     "returns the raw header",
			response: &webdav.Response{Header: http.Header{"Etag": []string{`W/"abc123"`}}},
			expected: `W/"abc123"`,
		},
		{
			name:          "missing header is an error",
			response:      &webdav.Response{Header: http.Header{}},
			errorContains: "no ETag header",
		},
		{
			name:          "client error is propagated",
			responseErr:   errors.New("connection refused"),
			errorContains: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			client.EXPECT().Get(gomock.Any(), "main.xml").Return(tt.response, tt.responseErr)

			etag, err := webdav.NewGetProber(client).ETag(context.Background(), "main.xml")
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, etag)
		})
	}
}

func TestPropfindProber_MatchesGetHeader(t *testing.T) {
	t.Parallel()

	server := davtest.NewServer(t, map[string]string{
		"folder/tasks.xml": "<root><tasks/></root>",
	})

	client, err := webdav.NewClient(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := client.Get(ctx, "folder/tasks.xml")
	require.NoError(t, err)

	prober := webdav.NewPropfindProber(server.URL+"/", "", "", 0)
	etag, err := prober.ETag(ctx, "/folder/tasks.xml")
	require.NoError(t, err)
	assert.Equal(t, resp.Header.Get("ETag"), etag)

	_, err = prober.ETag(ctx, "folder/missing.xml")
	require.Error(t, err)
}

func TestNewProber(t *testing.T) {
	t.Parallel()

	client, err := webdav.NewClient("http://dav.example.com")
	require.NoError(t, err)

	prober, err := webdav.NewProber("", client, "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &webdav.GetProber{}, prober)

	prober, err = webdav.NewProber(webdav.ProbePropfind, client, "alice", "secret", 0)
	require.NoError(t, err)
	assert.IsType(t, &webdav.PropfindProber{}, prober)

	_, err = webdav.NewProber("head", client, "", "", 0)
	require.Error(t, err)
}
