package metadata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-library/library/internal/errs"
	"github.com/Astemirdum/book-library/library/internal/model"
	"github.com/Astemirdum/book-library/library/internal/service/metadata"
	cb "github.com/Astemirdum/book-library/pkg/circuit_breaker"
)

func newService(t *testing.T, h http.HandlerFunc, cfg metadata.Config) *metadata.Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.URL = srv.URL + "/books/v1/volumes"
	return metadata.NewService(zap.NewNop(), cfg)
}

func TestService_Lookup(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		status  int
		body    string
		want    model.BookMetadata
		wantErr error
	}{
		{
			name:   "ok",
			status: http.StatusOK,
			body:   `{"totalItems":1,"items":[{"volumeInfo":{"title":"Example","authors":["A. Writer","B. Writer"],"description":"About"}}]}`,
			want:   model.BookMetadata{Title: "Example", Author: "A. Writer, B. Writer", Description: "About"},
		},
		{
			name:   "no authors",
			status: http.StatusOK,
			body:   `{"totalItems":1,"items":[{"volumeInfo":{"title":"Example"}}]}`,
			want:   model.BookMetadata{Title: "Example", Author: "Unknown"},
		},
		{
			name:    "no items",
			status:  http.StatusOK,
			body:    `{"kind":"books#volumes","totalItems":0}`,
			wantErr: errs.ErrLookupNotFound,
		},
		{
			name:    "provider error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"code":500}}`,
			wantErr: errs.ErrUpstreamUnavailable,
		},
		{
			name:    "broken json",
			status:  http.StatusOK,
			body:    `{"items":[`,
			wantErr: errs.ErrUpstreamUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/books/v1/volumes", r.URL.Path)
				require.Equal(t, "isbn:9780143424888", r.URL.Query().Get("q"))
				require.Equal(t, "k", r.URL.Query().Get("key"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, metadata.Config{APIKey: "k"})

			got, err := svc.Lookup(context.Background(), "9780143424888")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_Lookup_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, metadata.Config{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := svc.Lookup(context.Background(), "9780143424888")
	require.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
}

func TestService_Lookup_OpenBreaker(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, metadata.Config{Breaker: cb.Config{Window: 2, FailureRatio: 0.5, Cooldown: time.Hour, Recovery: 1}})

	_, err := svc.Lookup(context.Background(), "9780143424888")
	require.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
	require.Equal(t, cb.Open, svc.CB().State())

	_, err = svc.Lookup(context.Background(), "9780143424888")
	require.ErrorIs(t, err, errs.ErrUpstreamUnavailable)
	require.Equal(t, int32(1), calls.Load(), "open breaker must not reach the provider")
}
