package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Digital-Creators-Team/reward-roulette-module/errors"
	"github.com/Digital-Creators-Team/reward-roulette-module/httpclient"
	"github.com/Digital-Creators-Team/reward-roulette-module/pkg/providers"
)

// DefaultCatalogCacheTTL bounds how stale the cached catalog may get when
// no invalidation event arrives
const DefaultCatalogCacheTTL = time.Minute

// CatalogProvider talks to the prize catalog service over HTTP and keeps a
// short-lived local cache of the full prize list. Writes go straight
// through and drop the cache.
type CatalogProvider struct {
	client *httpclient.Client
	logger zerolog.Logger
	ttl    time.Duration

	mu        sync.Mutex
	cached    []providers.PrizeRecord
	fetchedAt time.Time
}

var _ providers.CatalogProvider = (*CatalogProvider)(nil)

// CatalogProviderConfig configures the catalog provider
type CatalogProviderConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Logger   zerolog.Logger
}

// NewCatalogProvider creates a catalog provider
func NewCatalogProvider(cfg CatalogProviderConfig) *CatalogProvider {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCatalogCacheTTL
	}
	return &CatalogProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		}),
		logger: cfg.Logger.With().Str("component", "catalog-provider").Logger(),
		ttl:    ttl,
	}
}

type prizeListEnvelope struct {
	Data []providers.PrizeRecord `json:"data"`
}

type prizeEnvelope struct {
	Data providers.PrizeRecord `json:"data"`
}

// ListPrizes returns all catalog entries, serving from cache while fresh
func (p *CatalogProvider) ListPrizes(ctx context.Context) ([]providers.PrizeRecord, error) {
	p.mu.Lock()
	if p.cached != nil && time.Since(p.fetchedAt) < p.ttl {
		cached := p.cached
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	resp, err := p.client.Get(ctx, "/prizes")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCatalogError, "catalog service unreachable")
	}
	if !resp.IsSuccess() {
		return nil, apperrors.NewWithDebug(
			apperrors.ErrCatalogError,
			"catalog service error",
			fmt.Sprintf("GET /prizes returned %d", resp.StatusCode),
		)
	}

	var envelope prizeListEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCatalogError, "invalid catalog response")
	}

	p.mu.Lock()
	p.cached = envelope.Data
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	return envelope.Data, nil
}

// CreatePrize adds a catalog entry
func (p *CatalogProvider) CreatePrize(ctx context.Context, input *providers.PrizeInput) (*providers.PrizeRecord, error) {
	resp, err := p.client.Post(ctx, "/prizes", input)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCatalogError, "catalog service unreachable")
	}
	return p.decodePrize(resp, "POST /prizes")
}

// UpdatePrize replaces the entry with the given ID
func (p *CatalogProvider) UpdatePrize(ctx context.Context, id string, input *providers.PrizeInput) (*providers.PrizeRecord, error) {
	resp, err := p.client.Put(ctx, "/prizes/"+id, input)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCatalogError, "catalog service unreachable")
	}
	return p.decodePrize(resp, "PUT /prizes/"+id)
}

// DeletePrize removes the entry with the given ID
func (p *CatalogProvider) DeletePrize(ctx context.Context, id string) error {
	resp, err := p.client.Delete(ctx, "/prizes/"+id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCatalogError, "catalog service unreachable")
	}
	if !resp.IsSuccess() {
		return apperrors.NewWithDebug(
			apperrors.ErrCatalogError,
			"catalog service error",
			fmt.Sprintf("DELETE /prizes/%s returned %d", id, resp.StatusCode),
		)
	}
	p.Invalidate()
	return nil
}

// Invalidate drops the cached prize list
func (p *CatalogProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.fetchedAt = time.Time{}
	p.mu.Unlock()
	p.logger.Debug().Msg("catalog cache invalidated")
}

func (p *CatalogProvider) decodePrize(resp *httpclient.Response, op string) (*providers.PrizeRecord, error) {
	if !resp.IsSuccess() {
		return nil, apperrors.NewWithDebug(
			apperrors.ErrCatalogError,
			"catalog service error",
			fmt.Sprintf("%s returned %d", op, resp.StatusCode),
		)
	}

	var envelope prizeEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCatalogError, "invalid catalog response")
	}

	p.Invalidate()
	return &envelope.Data, nil
}
