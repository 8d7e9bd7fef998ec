package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// External collaborators the lookup service calls through narrow interfaces.
// Implementations must respect context cancellation; every call site wraps
// the context with a bounded timeout.
type (
	CarrierDirectory interface {
		LookupCarriers(ctx context.Context, location string) ([]Carrier, error)
	}
	PricingSource interface {
		LookupPricing(ctx context.Context, location string) ([]PricingPlan, error)
	}
	IspDirectory interface {
		FetchIsp(ctx context.Context, ip string) (*IspInfo, error)
	}
	VoiceSynthesizer interface {
		Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	}
)

var (
	// ErrUpstreamTimeout marks a collaborator call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamFailure marks any other collaborator failure.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// ProviderConfig configures the shared HTTP provider client.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Requests per second allowed against the provider; providers meter us,
	// so we meter ourselves first.
	RPS   float64
	Burst int
}

// HTTPProvider implements all collaborator interfaces against a single
// upstream inference/data provider. Calls share one throttled client.
type HTTPProvider struct {
	cfg     ProviderConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPProvider(cfg ProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

func (p *HTTPProvider) LookupCarriers(ctx context.Context, location string) ([]Carrier, error) {
	var out struct {
		Carriers []Carrier `json:"carriers"`
	}
	q := url.Values{"location": {location}}
	if err := p.get(ctx, "/v1/carriers", q, &out); err != nil {
		return nil, err
	}
	return out.Carriers, nil
}

func (p *HTTPProvider) LookupPricing(ctx context.Context, location string) ([]PricingPlan, error) {
	var out struct {
		Plans []PricingPlan `json:"plans"`
	}
	q := url.Values{"location": {location}}
	if err := p.get(ctx, "/v1/pricing", q, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

func (p *HTTPProvider) FetchIsp(ctx context.Context, ip string) (*IspInfo, error) {
	var out IspInfo
	q := url.Values{"ip": {ip}}
	if err := p.get(ctx, "/v1/isp", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text, "voice": voice})
	if err != nil {
		return nil, err
	}
	return p.post(ctx, "/v1/voice", body)
}

func (p *HTTPProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstreamFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamFailure, err)
	}
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// classify maps transport errors onto the upstream error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
}
