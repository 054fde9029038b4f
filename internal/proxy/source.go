package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tanq16/swarm/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Source scrapes candidate relays out of plain-text feeds.
type Source struct {
	Feeds       []string
	Timeout     time.Duration
	Concurrency int // feeds fetched at once
	HTTP        utils.HTTPClientConfig
}

func NewSource(feeds []string, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = utils.DefaultFeedTimeout
	}
	return &Source{Feeds: feeds, Timeout: timeout, Concurrency: utils.DefaultFeedConcurrency}
}

// Fetch pulls the feeds in parallel, at most Concurrency at a time, and returns
// the union of the endpoints found. A feed that fails contributes nothing and
// never cancels its siblings; Fetch itself only fails if ctx is done.
func (s *Source) Fetch(ctx context.Context) ([]Endpoint, error) {
	log := utils.GetLogger("source")
	cfg := s.HTTP
	cfg.ProxyAddr = ""
	cfg.Timeout = s.Timeout
	client, err := utils.NewSwarmHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()

	var mu sync.Mutex
	seen := make(map[Endpoint]struct{})
	var all []Endpoint
	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for _, feed := range s.Feeds {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			found, err := fetchFeed(ctx, client, feed)
			if err != nil {
				log.Warn().Err(err).Str("feed", feed).Msg("Feed fetch failed")
				return nil
			}
			log.Debug().Str("feed", feed).Int("count", len(found)).Msg("Fetched candidates")
			mu.Lock()
			defer mu.Unlock()
			for _, e := range found {
				if _, ok := seen[e]; !ok {
					seen[e] = struct{}{}
					all = append(all, e)
				}
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Info().Int("feeds", len(s.Feeds)).Int("unique", len(all)).Msg("Candidate scraping complete")
	return all, nil
}

func fetchFeed(ctx context.Context, client utils.HTTPDoer, feed string) ([]Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading feed body: %w", err)
	}
	return ExtractEndpoints(string(body)), nil
}
