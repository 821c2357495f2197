package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbegin/bayz-go/internal/score"
)

func serveSnapshot(t *testing.T, s *score.Snapshot, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollOnceDeduplicatesRevisions(t *testing.T) {
	var mu sync.Mutex
	snap := score.Snapshot{Deploy: true, CycleLength: 2, Revision: "r1",
		Sound: []score.Tag{{Instrument: "sine", Notes: []int{60}, Rhythm: []float64{1}}}}
	srv := serveSnapshot(t, &snap, &mu)
	p := NewPoller(srv.URL, time.Second, nil)

	var got []score.Snapshot
	deliver := func(s score.Snapshot) { got = append(got, s) }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.PollOnce(ctx, deliver); err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
	}
	if len(got) != 1 || got[0].Revision != "r1" || got[0].Sound[0].Notes[0] != 60 {
		t.Fatalf("delivered %+v, want a single r1 snapshot", got)
	}

	mu.Lock()
	snap.Revision = "r2"
	mu.Unlock()
	if ok, err := p.PollOnce(ctx, deliver); err != nil || !ok {
		t.Fatalf("new revision not delivered: %v %v", ok, err)
	}

	p.Forget()
	if ok, _ := p.PollOnce(ctx, deliver); !ok {
		t.Fatalf("forget did not reset revision tracking")
	}
}

func TestSlowOlderResponseDoesNotRollBack(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rev := "r2"
		if atomic.AddInt32(&requests, 1) == 1 {
			close(arrived)
			<-release
			rev = "r1"
		}
		_ = json.NewEncoder(w).Encode(score.Snapshot{Deploy: true, CycleLength: 1, Revision: rev,
			Sound: []score.Tag{{Instrument: "sine", Notes: []int{60}, Rhythm: []float64{1}}}})
	}))
	t.Cleanup(srv.Close)
	p := NewPoller(srv.URL, time.Second, nil)

	var mu sync.Mutex
	var got []string
	deliver := func(s score.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s.Revision)
	}
	ctx := context.Background()

	type result struct {
		ok  bool
		err error
	}
	slow := make(chan result, 1)
	go func() {
		ok, err := p.PollOnce(ctx, deliver)
		slow <- result{ok, err}
	}()
	<-arrived

	if ok, err := p.PollOnce(ctx, deliver); err != nil || !ok {
		t.Fatalf("newer response not delivered: %v %v", ok, err)
	}
	close(release)
	if r := <-slow; r.err != nil || r.ok {
		t.Fatalf("stale response delivered: %v %v", r.ok, r.err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "r2" {
		t.Fatalf("delivered %v, want only r2", got)
	}
}

func TestPollOnceAlwaysDeliversUnrevisionedSnapshots(t *testing.T) {
	var mu sync.Mutex
	snap := score.Snapshot{Deploy: true, CycleLength: 1}
	srv := serveSnapshot(t, &snap, &mu)
	p := NewPoller(srv.URL, time.Second, nil)
	n := 0
	for i := 0; i < 2; i++ {
		if _, err := p.PollOnce(context.Background(), func(score.Snapshot) { n++ }); err != nil {
			t.Fatalf("poll: %v", err)
		}
	}
	if n != 2 {
		t.Fatalf("delivered %d, want 2", n)
	}
}

func TestPollOnceSkipsUndeployed(t *testing.T) {
	var mu sync.Mutex
	snap := score.Snapshot{Deploy: false, CycleLength: 1}
	srv := serveSnapshot(t, &snap, &mu)
	p := NewPoller(srv.URL, time.Second, nil)
	ok, err := p.PollOnce(context.Background(), func(score.Snapshot) { t.Fatalf("undeployed snapshot delivered") })
	if err != nil || ok {
		t.Fatalf("poll = %v, %v", ok, err)
	}
}

func TestPollOnceReportsTransportFaults(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	for name, url := range map[string]string{"status": bad.URL, "decode": garbage.URL, "refused": downURL} {
		t.Run(name, func(t *testing.T) {
			p := NewPoller(url, time.Second, nil)
			_, err := p.PollOnce(context.Background(), func(score.Snapshot) {})
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("err = %v, want ErrTransport", err)
			}
		})
	}
}

func TestRunKeepsPollingThroughFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1)%2 == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(score.Snapshot{Deploy: true, CycleLength: 1})
	}))
	defer srv.Close()

	p := NewPoller(srv.URL, 5*time.Millisecond, nil)
	var delivered atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, func(score.Snapshot) { delivered.Add(1) }) }()

	deadline := time.After(2 * time.Second)
	for delivered.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d deliveries after %d requests", delivered.Load(), hits.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller("", 0, nil)
	if p.URL != DefaultURL || p.Interval != DefaultInterval || p.HTTPClient == nil {
		t.Fatalf("defaults not applied: %+v", p)
	}
}
