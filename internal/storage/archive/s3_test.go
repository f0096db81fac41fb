package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/fxmc/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Config_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.csv", "file.csv"},
		{"fxmc", "file.csv", "fxmc/file.csv"},
		{"fxmc/", "file.csv", "fxmc/file.csv"},
		{"/fxmc/", "/results/x.csv", "fxmc/results/x.csv"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.Trim(tt.prefix, "/")}
		assert.Equal(t, tt.want, s.key(tt.path), "prefix %q path %q", tt.prefix, tt.path)
	}
}

// fakeS3 serves GET and HEAD for a single object under path-style addressing
func fakeS3(t *testing.T, objects map[string]string) *S3Storage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:    "bars",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "fxmc",
	})
	require.NoError(t, err)
	return s
}

func TestS3Storage_Open(t *testing.T) {
	s := fakeS3(t, map[string]string{"/bars/fxmc/EURUSD.csv": "Date,Close\n"})

	got, err := ReadAll(context.Background(), s, "EURUSD.csv")
	require.NoError(t, err)
	assert.Equal(t, "Date,Close\n", string(got))
}

func TestS3Storage_Exists(t *testing.T) {
	s := fakeS3(t, map[string]string{"/bars/fxmc/EURUSD.csv": "x"})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "EURUSD.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "GBPUSD.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3Storage_OpenMissing(t *testing.T) {
	s := fakeS3(t, nil)
	_, err := s.Open(context.Background(), "missing.csv")
	assert.ErrorIs(t, err, core.ErrNoData)
}
