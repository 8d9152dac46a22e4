package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YouuSer/certified/internal/engine"
)

// Client fetches listings from both upstream sources. Each source splits its
// catalogue across category/filter partitions; FetchAll fans one request out
// per partition and fans all results back in before returning, because the
// dedup stage needs the complete candidate set at once.
type Client struct {
	httpClient      *http.Client
	achahadaBaseURL string
	avsBaseURL      string
	logger          zerolog.Logger
}

type Options struct {
	AchahadaBaseURL string
	AVSBaseURL      string
	Timeout         time.Duration
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		achahadaBaseURL: strings.TrimRight(strings.TrimSpace(opts.AchahadaBaseURL), "/"),
		avsBaseURL:      strings.TrimRight(strings.TrimSpace(opts.AVSBaseURL), "/"),
		logger:          logger,
	}
}

// FetchAll retrieves every partition of both sources concurrently and returns
// the combined pre-canonical batch. Any failed sub-request fails the whole
// fetch: the engine must never see partial input, or missing partitions would
// be misread as removals.
func (c *Client) FetchAll(ctx context.Context, syncTimestamp string) ([]engine.RawEntity, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("source client is not initialized")
	}

	type partition struct {
		fetch func(context.Context) ([]engine.RawEntity, error)
	}

	partitions := make([]partition, 0, len(achahadaQueries)+len(avsQueries))
	for _, q := range achahadaQueries {
		query := q
		partitions = append(partitions, partition{
			fetch: func(ctx context.Context) ([]engine.RawEntity, error) {
				return c.fetchAchahada(ctx, query, syncTimestamp)
			},
		})
	}
	for _, q := range avsQueries {
		query := q
		partitions = append(partitions, partition{
			fetch: func(ctx context.Context) ([]engine.RawEntity, error) {
				return c.fetchAVS(ctx, query, syncTimestamp)
			},
		})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		batches = make([][]engine.RawEntity, len(partitions))
		errs    []error
	)

	for i, p := range partitions {
		wg.Add(1)
		go func(i int, p partition) {
			defer wg.Done()
			entities, err := p.fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			batches[i] = entities
		}(i, p)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var combined []engine.RawEntity
	for _, batch := range batches {
		combined = append(combined, batch...)
	}
	return combined, nil
}

func (c *Client) fetchAchahada(ctx context.Context, q Query, syncTimestamp string) ([]engine.RawEntity, error) {
	url := fmt.Sprintf("%s/stores?filter=%d", c.achahadaBaseURL, q.Filter)

	var records []AchahadaRecord
	if err := c.getJSON(ctx, url, &records); err != nil {
		return nil, fmt.Errorf("fetch achahada %s filter=%d: %w", q.Category, q.Filter, err)
	}

	entities := make([]engine.RawEntity, 0, len(records))
	for _, rec := range records {
		entities = append(entities, AdaptAchahada(rec, q.Category, q.Filter, syncTimestamp))
	}

	c.logger.Debug().
		Str("source", SourceAchahada).
		Str("category", q.Category).
		Int("filter", q.Filter).
		Int("records", len(records)).
		Msg("fetched source partition")
	return entities, nil
}

func (c *Client) fetchAVS(ctx context.Context, q Query, syncTimestamp string) ([]engine.RawEntity, error) {
	url := fmt.Sprintf("%s/establishments?type=%d", c.avsBaseURL, q.Filter)

	var records []AVSRecord
	if err := c.getJSON(ctx, url, &records); err != nil {
		return nil, fmt.Errorf("fetch avs %s type=%d: %w", q.Category, q.Filter, err)
	}

	entities := make([]engine.RawEntity, 0, len(records))
	for _, rec := range records {
		entities = append(entities, AdaptAVS(rec, q.Category, q.Filter, syncTimestamp))
	}

	c.logger.Debug().
		Str("source", SourceAVS).
		Str("category", q.Category).
		Int("filter", q.Filter).
		Int("records", len(records)).
		Msg("fetched source partition")
	return entities, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
