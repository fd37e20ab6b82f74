package fuser

import (
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// defaultPausedTimeout mirrors the process-wide default staleness window
// that config.Load supplies; stale() does not fall back to it, so a
// candidate whose snapshot carries a zero PausedTimeout is sticky forever.
const defaultPausedTimeout = 10 * time.Second

// candidate is the most recent snapshot held per source_id; stale() derives
// its eligibility deadline from the snapshot's SampledAt and PausedTimeout.
type candidate struct {
	snapshot model.PlaybackSnapshot
}

func (c candidate) stale(now time.Time) bool {
	timeout := c.snapshot.PausedTimeout
	if timeout <= 0 {
		return false
	}
	return now.Sub(c.snapshot.SampledAt) > timeout
}

// pickWinner implements spec §4.2's selection algorithm: playing beats
// paused, then highest priority, then most recent sampled_at.
func pickWinner(now time.Time, candidates map[trackkey.SourceID]candidate) (model.PlaybackSnapshot, bool) {
	var (
		winner model.PlaybackSnapshot
		found  bool
	)

	for _, c := range candidates {
		if c.stale(now) {
			continue
		}
		s := c.snapshot
		if !found {
			winner, found = s, true
			continue
		}
		if better(s, winner) {
			winner = s
		}
	}
	return winner, found
}

// better reports whether a should replace b as the current winner, per the
// play > priority > recency rule order.
func better(a, b model.PlaybackSnapshot) bool {
	if a.IsPlaying != b.IsPlaying {
		return a.IsPlaying
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.SampledAt.After(b.SampledAt)
}
