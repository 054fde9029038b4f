package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tanq16/swarm/internal/utils"
	"golang.org/x/sync/semaphore"
)

// Validator keeps the candidates that relay a request to the echo endpoint correctly.
type Validator struct {
	EchoURL     string
	Timeout     time.Duration
	Concurrency int
	HTTP        utils.HTTPClientConfig
}

func NewValidator(echoURL string, timeout time.Duration, concurrency int) *Validator {
	if echoURL == "" {
		echoURL = utils.DefaultEchoURL
	}
	if timeout <= 0 {
		timeout = utils.DefaultValidationTimeout
	}
	if concurrency <= 0 {
		concurrency = utils.DefaultValidationConcurrency
	}
	return &Validator{EchoURL: echoURL, Timeout: timeout, Concurrency: concurrency}
}

// Validate probes all candidates with at most Concurrency probes in flight.
// Failing candidates are dropped; the result may be empty but is never nil.
func (v *Validator) Validate(ctx context.Context, candidates []Endpoint) *Set {
	log := utils.GetLogger("validator")
	concurrency := max(v.Concurrency, 1)
	sem := semaphore.NewWeighted(int64(concurrency))
	log.Info().Int("candidates", len(candidates)).Int("concurrency", concurrency).Msg("Validating proxies")

	var mu sync.Mutex
	var wg sync.WaitGroup
	working := make([]Endpoint, 0)
	for _, candidate := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(e Endpoint) {
			defer wg.Done()
			defer sem.Release(1)
			if err := v.Probe(ctx, e); err != nil {
				log.Debug().Str("proxy", e.String()).Err(err).Msg("Proxy rejected")
				return
			}
			log.Debug().Str("proxy", e.String()).Msg("Proxy working")
			mu.Lock()
			working = append(working, e)
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()
	log.Info().Int("working", len(working)).Msg("Validation complete")
	return NewSet(working)
}

// Probe issues one GET to the echo endpoint through e. The body must be JSON with an origin or ip key.
func (v *Validator) Probe(ctx context.Context, e Endpoint) error {
	cfg := v.HTTP
	cfg.ProxyAddr = e.String()
	cfg.Timeout = v.Timeout
	cfg.ConnectTimeout = v.Timeout
	client, err := utils.NewSwarmHTTPClient(cfg)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.EchoURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var echo map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&echo); err != nil {
		return fmt.Errorf("malformed echo body: %w", err)
	}
	_, hasOrigin := echo["origin"]
	_, hasIP := echo["ip"]
	if !hasOrigin && !hasIP {
		return fmt.Errorf("echo body has neither origin nor ip")
	}
	return nil
}
