package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/courtmate/tennis-platform/pkg/config"
	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/courtmate/tennis-platform/pkg/tracing"
)

// ErrNoResult is returned when the provider knows nothing about the text.
var ErrNoResult = errors.New("geocoder returned no result")

// Provider turns free text into a raw, un-jittered coordinate.
type Provider interface {
	Geocode(ctx context.Context, text string) (*Coordinates, error)
}

// OpenCageProvider calls the OpenCage forward geocoding API, restricted to
// the configured country.
type OpenCageProvider struct {
	baseURL    string
	apiKey     string
	country    string
	language   string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// statusError is a non-200 reply from the provider.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("geocoding provider returned status %d", e.code)
}

// isGeocodeRetryable retries transport failures and transient statuses.
// Quota and key errors stay failed.
func isGeocodeRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return resilience.IsRetryableHTTPStatus(se.code)
	}
	return true
}

// NewOpenCageProvider builds a provider from config. The breaker may be nil.
func NewOpenCageProvider(cfg config.GeocodingConfig, breaker *resilience.CircuitBreaker) *OpenCageProvider {
	policy := resilience.DefaultRetryConfig()
	policy.MaxAttempts = 2
	policy.InitialBackoff = 250 * time.Millisecond
	policy.RetryableChecker = isGeocodeRetryable

	return &OpenCageProvider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		country:    cfg.CountryCode,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		breaker:    breaker,
		retry:      policy,
	}
}

type openCageResponse struct {
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// Geocode returns the first result for text.
func (p *OpenCageProvider) Geocode(ctx context.Context, text string) (*Coordinates, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("key", p.apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")
	if p.country != "" {
		params.Set("countrycode", p.country)
	}
	if p.language != "" {
		params.Set("language", p.language)
	}
	reqURL := p.baseURL + "?" + params.Encode()

	var body []byte
	err := tracing.TraceExternalAPI(ctx, "geo", "opencage", "geocode", func(ctx context.Context) error {
		result, err := resilience.RetryWithBreaker(ctx, p.retry, p.breaker, func(ctx context.Context) (interface{}, error) {
			return p.fetch(ctx, reqURL)
		})
		if err != nil {
			return err
		}
		body = result.([]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp openCageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, ErrNoResult
	}

	g := resp.Results[0].Geometry
	return &Coordinates{Latitude: g.Lat, Longitude: g.Lng}, nil
}

func (p *OpenCageProvider) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}
