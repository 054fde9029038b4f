package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/swarm/internal/lease"
	"github.com/tanq16/swarm/internal/output"
	"github.com/tanq16/swarm/internal/proxy"
	"github.com/tanq16/swarm/internal/swarm"
	"github.com/tanq16/swarm/internal/utils"
)

func fileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)
	return server
}

func runConfig() utils.RunConfig {
	return utils.RunConfig{
		Workers:   3,
		ChunkSize: 1000,
		HTTP: utils.HTTPClientConfig{
			Dialer:  utils.DirectDialer,
			Timeout: 5 * time.Second,
		},
	}
}

func TestRunJobs(t *testing.T) {
	files := map[string][]byte{
		"/a.bin": bytes.Repeat([]byte("a"), 4500),
		"/b.bin": bytes.Repeat([]byte("b"), 1200),
	}
	server := fileServer(t, files)
	dir := t.TempDir()

	var progressCalls atomic.Int64
	jobs := []utils.SwarmJob{
		{URL: server.URL + "/a.bin", OutputPath: filepath.Join(dir, "a.bin"), ProgressFunc: func(downloaded, total int64) {
			progressCalls.Add(1)
		}},
		{URL: server.URL + "/b.bin", OutputPath: filepath.Join(dir, "b.bin")},
		{URL: server.URL + "/missing.bin", OutputPath: filepath.Join(dir, "missing.bin")},
	}
	mgr := output.NewManager(&bytes.Buffer{})
	proxies := proxy.NewSet([]proxy.Endpoint{"192.0.2.1:1080", "192.0.2.2:1080"})

	results, err := Run(context.Background(), jobs, 2, Options{Proxies: proxies, Config: runConfig(), Output: mgr})
	if !errors.Is(err, swarm.ErrSizingFailed) {
		t.Fatalf("expected the missing file to fail sizing, got %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results[:2] {
		if r.Err != nil {
			t.Errorf("%s failed: %v", r.Job.URL, r.Err)
			continue
		}
		if r.Job.ID == "" {
			t.Errorf("%s has no job id", r.Job.URL)
		}
		got, err := os.ReadFile(r.Job.OutputPath)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if want := files["/"+filepath.Base(r.Job.OutputPath)]; !bytes.Equal(got, want) {
			t.Errorf("%s content mismatch", r.Job.OutputPath)
		}
	}
	if results[0].Result.Chunks != 5 {
		t.Errorf("expected 5 chunks for a.bin, got %d", results[0].Result.Chunks)
	}
	if progressCalls.Load() == 0 {
		t.Error("job progress callback never called")
	}
	succeeded, failed := mgr.Counts()
	if succeeded != 2 || failed != 1 {
		t.Errorf("manager counts = %d, %d", succeeded, failed)
	}
}

func TestRunWithoutProxies(t *testing.T) {
	var calls atomic.Int64
	leases := lease.ProviderFunc(func(ctx context.Context, targetURL string, p proxy.Endpoint) (*lease.Lease, error) {
		calls.Add(1)
		return nil, errors.New("unexpected")
	})
	jobs := []utils.SwarmJob{{URL: "http://example.invalid/x", OutputPath: filepath.Join(t.TempDir(), "x")}}
	_, err := Run(context.Background(), jobs, 1, Options{
		Proxies: proxy.NewSet(nil),
		Config:  runConfig(),
		Leases:  leases,
		Output:  output.NewManager(&bytes.Buffer{}),
	})
	if !errors.Is(err, swarm.ErrNoProxiesAvailable) {
		t.Fatalf("expected ErrNoProxiesAvailable, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("lease provider called %d times", calls.Load())
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var jobs []utils.SwarmJob
	for i := range 3 {
		jobs = append(jobs, utils.SwarmJob{URL: fmt.Sprintf("http://example.invalid/%d", i), OutputPath: filepath.Join(t.TempDir(), "out")})
	}
	results, err := Run(ctx, jobs, 2, Options{
		Proxies: proxy.NewSet([]proxy.Endpoint{"192.0.2.1:1080"}),
		Config:  runConfig(),
		Output:  output.NewManager(&bytes.Buffer{}),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s: expected cancellation, got %v", r.Job.URL, r.Err)
		}
	}
}

func TestRunLeaseRate(t *testing.T) {
	server := fileServer(t, map[string][]byte{"/f": bytes.Repeat([]byte("f"), 3000)})
	cfg := runConfig()
	cfg.LeaseRate = 20
	jobs := []utils.SwarmJob{{URL: server.URL + "/f", OutputPath: filepath.Join(t.TempDir(), "f")}}
	start := time.Now()
	_, err := Run(context.Background(), jobs, 1, Options{
		Proxies: proxy.NewSet([]proxy.Endpoint{"192.0.2.1:1080"}),
		Config:  cfg,
		Output:  output.NewManager(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// one sizing lease and three chunk leases at 20/s with a burst of one
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("leases were not throttled, run took %v", elapsed)
	}
}
