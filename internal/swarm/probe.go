package swarm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tanq16/swarm/internal/utils"
)

var errUnknownTotal = errors.New("content range total is unknown")

// ProbeSize asks for the first byte of url and reads the total size off the response.
func ProbeSize(ctx context.Context, client utils.HTTPDoer, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
		_, _, total, err := parseContentRange(contentRange)
		if err != nil {
			return 0, err
		}
		if total <= 0 {
			return 0, fmt.Errorf("invalid file size %d reported by server", total)
		}
		return total, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.New("partial response without Content-Range header")
	}
	contentLength := resp.Header.Get("Content-Length")
	if contentLength == "" {
		return 0, errors.New("server didn't provide Content-Length header")
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, errors.New("invalid file size reported by server")
	}
	return size, nil
}

// parseContentRange reads "bytes start-end/total"; an unsatisfied "bytes */total" yields start = end = -1.
func parseContentRange(h string) (start, end, total int64, err error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(h), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", h)
	}
	rng, totalStr, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", h)
	}
	start, end = -1, -1
	if rng != "*" {
		startStr, endStr, ok := strings.Cut(rng, "-")
		if !ok {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", h)
		}
		if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range start %q", h)
		}
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range end %q", h)
		}
	}
	// the range is still returned when only the total is unknown
	if totalStr == "*" {
		return start, end, -1, errUnknownTotal
	}
	total, err = strconv.ParseInt(totalStr, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range total %q", h)
	}
	return start, end, total, nil
}
