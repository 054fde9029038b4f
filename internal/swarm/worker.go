package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tanq16/swarm/internal/chunk"
	"github.com/tanq16/swarm/internal/lease"
	"github.com/tanq16/swarm/internal/outfile"
	"github.com/tanq16/swarm/internal/utils"
)

func (o *Orchestrator) worker(ctx context.Context, id int, q *chunk.Queue, out outfile.Writer, progressCh chan<- int64) {
	log := utils.GetLogger("worker").With().Int("worker", id).Logger()
	for {
		c, ok := q.Get()
		if !ok {
			return
		}
		res := o.attempt(ctx, c, out)
		switch res.outcome {
		case outcomeSuccess:
			q.Done(c)
			progressCh <- c.Size()
			log.Debug().Int("chunk", c.Index).Int("attempt", q.Attempts(c)).Msg("Chunk complete")
		case outcomeRetry:
			o.failures.Add(1)
			attempts := q.Attempts(c)
			log.Warn().Err(res.err).Int("chunk", c.Index).Int("attempt", attempts).Msg("Chunk attempt failed, retrying")
			if o.cfg.MaxAttempts > 0 && attempts >= o.cfg.MaxAttempts {
				o.abort(fmt.Errorf("%w: chunk %d failed %d times: %v", ErrRetriesExhausted, c.Index, attempts, res.err))
				q.Close()
				return
			}
			o.pause(ctx)
			q.Retry(c)
		}
	}
}

// attempt runs one lease + range download + write cycle. It is detached from
// ctx cancellation; the per-attempt timeout is what bounds it.
func (o *Orchestrator) attempt(ctx context.Context, c chunk.Chunk, out outfile.Writer) attemptResult {
	o.attempts.Add(1)
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.HTTP.Timeout)
	defer cancel()

	p := o.proxies.Random()
	l, err := o.leases.Acquire(actx, o.cfg.TargetURL, p)
	if err != nil {
		return retryable(fmt.Errorf("%w via %s: %v", ErrLeaseAcquisitionFailed, p, err))
	}
	data, err := o.fetchChunk(actx, l, c)
	if err != nil {
		return retryable(fmt.Errorf("%w via %s: %v", ErrChunkTransportFailed, p, err))
	}
	if err := out.WriteChunk(c, data); err != nil {
		return retryable(err)
	}
	return attemptResult{outcome: outcomeSuccess}
}

func (o *Orchestrator) fetchChunk(ctx context.Context, l *lease.Lease, c chunk.Chunk) ([]byte, error) {
	client, err := o.clientFor(l)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.DownloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", c.RangeHeader())
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
			start, end, _, err := parseContentRange(contentRange)
			if err != nil && !errors.Is(err, errUnknownTotal) {
				return nil, err
			}
			if start != c.Start || end != c.End {
				return nil, fmt.Errorf("server returned range %d-%d, requested %d-%d", start, end, c.Start, c.End)
			}
		}
		return readChunk(resp.Body, c.Size(), true)
	case http.StatusOK:
		// range ignored, the body is the whole file
		if _, err := io.CopyN(io.Discard, resp.Body, c.Start); err != nil {
			return nil, fmt.Errorf("error skipping to offset %d: %w", c.Start, err)
		}
		return readChunk(resp.Body, c.Size(), false)
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func readChunk(r io.Reader, size int64, exact bool) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("error reading chunk body: %w", err)
	}
	if exact {
		var extra [1]byte
		if n, _ := io.ReadFull(r, extra[:]); n > 0 {
			return nil, errors.New("body longer than requested range")
		}
	}
	return buf, nil
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.cfg.RetryDelay <= 0 {
		return
	}
	timer := time.NewTimer(o.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
