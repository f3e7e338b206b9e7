package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenCageProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenCageProvider(config.GeocodingConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		CountryCode:    "il",
		Language:       "en",
		TimeoutSeconds: 2,
	}, nil)
	p.retry.InitialBackoff = time.Millisecond
	p.retry.EnableJitter = false
	return p
}

func TestOpenCageProvider_Geocode(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Tel Aviv", q.Get("q"))
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "il", q.Get("countrycode"))
		assert.Equal(t, "en", q.Get("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"geometry":{"lat":32.0853,"lng":34.7818}}],"status":{"code":200,"message":"OK"}}`))
	})

	coords, err := provider.Geocode(context.Background(), "Tel Aviv")

	require.NoError(t, err)
	assert.Equal(t, 32.0853, coords.Latitude)
	assert.Equal(t, 34.7818, coords.Longitude)
}

func TestOpenCageProvider_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		noResult bool
	}{
		{name: "empty results", status: http.StatusOK, body: `{"results":[],"status":{"code":200}}`, noResult: true},
		{name: "quota exceeded", status: http.StatusPaymentRequired, body: `{"status":{"code":402}}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "malformed body", status: http.StatusOK, body: `{"results":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			coords, err := provider.Geocode(context.Background(), "Nowhere")

			require.Error(t, err)
			assert.Nil(t, coords)
			assert.Equal(t, tt.noResult, errors.Is(err, ErrNoResult))
		})
	}
}

func TestOpenCageProvider_RetriesTransientStatus(t *testing.T) {
	tests := []struct {
		name      string
		first     int
		wantCalls int32
		wantErr   bool
	}{
		{name: "unavailable then ok", first: http.StatusServiceUnavailable, wantCalls: 2},
		{name: "rate limited then ok", first: http.StatusTooManyRequests, wantCalls: 2},
		{name: "quota exceeded is final", first: http.StatusPaymentRequired, wantCalls: 1, wantErr: true},
		{name: "bad key is final", first: http.StatusUnauthorized, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) == 1 {
					w.WriteHeader(tt.first)
					return
				}
				_, _ = w.Write([]byte(`{"results":[{"geometry":{"lat":31.7683,"lng":35.2137}}]}`))
			})

			coords, err := provider.Geocode(context.Background(), "Jerusalem")

			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, coords)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 31.7683, coords.Latitude)
		})
	}
}

func TestIsGeocodeRetryable(t *testing.T) {
	assert.True(t, isGeocodeRetryable(errors.New("connection reset by peer")))
	assert.True(t, isGeocodeRetryable(&statusError{code: http.StatusBadGateway}))
	assert.False(t, isGeocodeRetryable(&statusError{code: http.StatusForbidden}))
}
