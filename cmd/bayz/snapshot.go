package main

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/score"
	"github.com/cbegin/bayz-go/internal/transport"
)

// loadSnapshot reads a snapshot from path, or fetches the one currently
// published on serverURL when path is empty.
func loadSnapshot(ctx context.Context, path, serverURL string) (score.Snapshot, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return score.Snapshot{}, err
		}
		defer f.Close()
		s, err := score.Decode(f)
		if err != nil {
			return score.Snapshot{}, errors.Wrap(err, path)
		}
		s.Deploy = true
		return s, nil
	}

	var (
		got   score.Snapshot
		found bool
	)
	p := transport.NewPoller(serverURL, 0, nil)
	if _, err := p.PollOnce(ctx, func(s score.Snapshot) {
		got, found = s, true
	}); err != nil {
		return score.Snapshot{}, err
	}
	if !found {
		return score.Snapshot{}, errors.Errorf("%s has not published a composition yet", serverURL)
	}
	return got, nil
}
