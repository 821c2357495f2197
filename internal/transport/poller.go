// Package transport polls the compose server for composition snapshots.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/score"
)

const (
	DefaultURL      = "http://localhost:42700"
	DefaultInterval = time.Second
	DefaultTimeout  = 5 * time.Second
)

// ErrTransport marks failures to fetch or decode a snapshot. They never stop
// polling.
var ErrTransport = errors.New("transport fault")

// Poller fetches the published snapshot once per interval. Each request runs
// on its own goroutine; a slow request never delays the next one. Requests
// are numbered as they are issued, and a response that arrives after a later
// request's response is dropped.
type Poller struct {
	URL        string
	Interval   time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger

	mu           sync.Mutex
	lastRevision string
	issued       uint64
	newest       uint64 // sequence of the latest response handled
}

func NewPoller(url string, interval time.Duration, logger *slog.Logger) *Poller {
	if url == "" {
		url = DefaultURL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		URL:        url,
		Interval:   interval,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Logger:     logger.With("component", "poller"),
	}
}

// Run polls until ctx is done. deliver is called from request goroutines,
// one at a time, and must not block for long.
func (p *Poller) Run(ctx context.Context, deliver func(score.Snapshot)) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	poll := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.PollOnce(ctx, deliver); err != nil && ctx.Err() == nil {
				p.Logger.Warn("poll failed", "url", p.URL, "err", err)
			}
		}()
	}

	poll()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			poll()
		}
	}
}

// PollOnce fetches one snapshot and delivers it when it is deployable and
// its revision differs from the last one delivered. Snapshots without a
// revision are always delivered. A response overtaken by a later request's
// response is stale and never delivered.
func (p *Poller) PollOnce(ctx context.Context, deliver func(score.Snapshot)) (delivered bool, err error) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	s, err := p.fetch(ctx)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.newest {
		p.Logger.Debug("dropped stale response", "revision", s.Revision, "request", seq, "newest", p.newest)
		return false, nil
	}
	p.newest = seq
	if !s.Deploy {
		return false, nil
	}
	if s.Revision != "" {
		if s.Revision == p.lastRevision {
			return false, nil
		}
		p.lastRevision = s.Revision
	}
	deliver(s)
	return true, nil
}

// Forget clears the remembered revision so the next poll delivers again.
func (p *Poller) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRevision = ""
}

func (p *Poller) fetch(ctx context.Context) (score.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return score.Snapshot{}, errors.Wrap(ErrTransport, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return score.Snapshot{}, errors.Wrapf(ErrTransport, "get %s: %v", p.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return score.Snapshot{}, errors.Wrap(ErrTransport, fmt.Sprintf("get %s: status %s", p.URL, resp.Status))
	}
	s, err := score.Decode(resp.Body)
	if err != nil {
		return score.Snapshot{}, errors.Wrap(ErrTransport, err.Error())
	}
	return s, nil
}
