package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// LyricsVariant tags which shape of lyrics document is carried.
type LyricsVariant string

const (
	VariantSynced       LyricsVariant = "synced"
	VariantWordSynced   LyricsVariant = "word_synced"
	VariantUnsynced     LyricsVariant = "unsynced"
	VariantInstrumental LyricsVariant = "instrumental"
	VariantNotFound     LyricsVariant = "not_found"
)

// Rank orders variants for tier-preference comparisons: WordSynced >
// Synced > Unsynced > Instrumental > NotFound.
func (v LyricsVariant) Rank() int {
	switch v {
	case VariantWordSynced:
		return 4
	case VariantSynced:
		return 3
	case VariantUnsynced:
		return 2
	case VariantInstrumental:
		return 1
	default:
		return 0
	}
}

// SyncedLine is one timestamped line of a Synced document.
type SyncedLine struct {
	TMs  int64  `json:"t_ms"`
	Text string `json:"text"`
}

// WordSyncedWord is one timestamped word within a WordSynced line.
type WordSyncedWord struct {
	TMs  int64  `json:"t_ms"`
	Word string `json:"word"`
}

// WordSyncedLine groups the words of one line with per-word timestamps.
// Words may legitimately be empty (a line with no parsed word timings yet
// falls back to line-level display) — the round-trip invariant (spec §8.4)
// specifically requires this to survive JSON encoding cleanly.
type WordSyncedLine struct {
	Words []WordSyncedWord `json:"words"`
}

// LyricsDoc is the tagged union of lyrics variants for one track. Exactly
// one of the payload fields is populated, selected by Variant.
type LyricsDoc struct {
	Variant LyricsVariant `json:"variant"`

	SyncedLines     []SyncedLine     `json:"synced_lines,omitempty"`
	WordSyncedLines []WordSyncedLine `json:"word_synced_lines,omitempty"`
	UnsyncedLines   []string         `json:"unsynced_lines,omitempty"`

	ProviderID trackkey.ProviderID `json:"provider_id"`
	FetchedAt  time.Time           `json:"fetched_at"`
	SourceURL  string              `json:"source_url,omitempty"`
}

// NotFoundDoc builds the NotFound variant for the given provider (an empty
// providerID means "no provider produced this", used for the all-providers-
// failed case cached with a short TTL).
func NotFoundDoc(provider trackkey.ProviderID) LyricsDoc {
	return LyricsDoc{Variant: VariantNotFound, ProviderID: provider, FetchedAt: time.Now()}
}

// InstrumentalDoc builds the Instrumental variant: no text, flag only.
func InstrumentalDoc(provider trackkey.ProviderID) LyricsDoc {
	return LyricsDoc{Variant: VariantInstrumental, ProviderID: provider, FetchedAt: time.Now()}
}

// CacheNegative reports whether d should be treated as a negative cache
// entry (short TTL) rather than a permanent one, satisfying
// cache.IsNegative for Cache[trackkey.Key, LyricsDoc].
func (d LyricsDoc) CacheNegative() bool {
	return d.Variant == VariantNotFound
}

// HasText reports whether the document carries any lyric text at all.
func (d LyricsDoc) HasText() bool {
	switch d.Variant {
	case VariantSynced:
		return len(d.SyncedLines) > 0
	case VariantWordSynced:
		return len(d.WordSyncedLines) > 0
	case VariantUnsynced:
		return len(d.UnsyncedLines) > 0
	default:
		return false
	}
}

// MonotonicTMs reports whether a Synced document's timestamps are
// monotonic non-decreasing, per the invariant in spec §3.
func (d LyricsDoc) MonotonicTMs() bool {
	if d.Variant != VariantSynced {
		return true
	}
	last := int64(-1)
	for _, l := range d.SyncedLines {
		if l.TMs < last {
			return false
		}
		last = l.TMs
	}
	return true
}

// ExceedsDuration reports whether the largest timestamp in a Synced
// document exceeds durationMs by more than the given slack. Per spec §8
// boundary behavior, a Synced reply whose largest t_ms exceeds duration by
// more than 5s should be treated as Unsynced by the caller.
func (d LyricsDoc) ExceedsDuration(durationMs int64, slackMs int64) bool {
	if d.Variant != VariantSynced || len(d.SyncedLines) == 0 {
		return false
	}
	max := d.SyncedLines[len(d.SyncedLines)-1].TMs
	for _, l := range d.SyncedLines {
		if l.TMs > max {
			max = l.TMs
		}
	}
	return max > durationMs+slackMs
}

// Downgraded returns a copy of d reinterpreted as Unsynced, dropping
// timestamps but keeping line text in order. Used when ExceedsDuration
// trips.
func (d LyricsDoc) Downgraded() LyricsDoc {
	lines := make([]string, 0, len(d.SyncedLines))
	for _, l := range d.SyncedLines {
		lines = append(lines, l.Text)
	}
	return LyricsDoc{
		Variant:       VariantUnsynced,
		UnsyncedLines: lines,
		ProviderID:    d.ProviderID,
		FetchedAt:     d.FetchedAt,
		SourceURL:     d.SourceURL,
	}
}

// Validate returns an error describing the first invariant violation found,
// or nil if the document is well-formed.
func (d LyricsDoc) Validate() error {
	switch d.Variant {
	case VariantSynced, VariantWordSynced, VariantUnsynced, VariantInstrumental, VariantNotFound:
	default:
		return fmt.Errorf("lyrics: unknown variant %q", d.Variant)
	}
	if d.Variant == VariantSynced && !d.MonotonicTMs() {
		return fmt.Errorf("lyrics: synced timestamps are not monotonic non-decreasing")
	}
	return nil
}

// MarshalJSON is the default struct marshaling (kept explicit so the
// round-trip behavior documented above is obviously intentional rather than
// accidental reflection behavior); json.Marshal(d) is equivalent.
func (d LyricsDoc) MarshalJSON() ([]byte, error) {
	type alias LyricsDoc
	return json.Marshal(alias(d))
}
