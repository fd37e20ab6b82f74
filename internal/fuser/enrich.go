package fuser

import (
	"log/slog"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// durationDisagreementSlack is the divergence threshold past which two
// sources' duration_ms for the same track_key is logged rather than
// silently overwritten. On each recomputation the winner's own duration_ms
// is kept when it has one, and only a missing one is filled from another
// candidate with the same track_key; a disagreement beyond this slack is a
// diagnostic, not a correction. No duration is remembered across
// recomputations, so when a different source wins, its duration is used.
const durationDisagreementSlack = 250 * time.Millisecond

// enrich applies spec §4.2 step 4 (hybrid enrichment): for every
// non-winning candidate sharing the winner's track_key, copy richer fields
// across without disturbing the winner's position_ms or is_playing.
func enrich(logger *slog.Logger, winner model.PlaybackSnapshot, candidates map[trackkey.SourceID]candidate) model.PlaybackSnapshot {
	for _, c := range candidates {
		other := c.snapshot
		if other.SourceID == winner.SourceID {
			continue
		}
		if other.TrackKey != winner.TrackKey {
			continue
		}
		winner = enrichFrom(logger, winner, other)
	}
	return winner
}

func enrichFrom(logger *slog.Logger, winner, other model.PlaybackSnapshot) model.PlaybackSnapshot {
	if winner.AlbumArtURI == "" && other.AlbumArtURI != "" {
		winner.AlbumArtURI = other.AlbumArtURI
	}

	switch {
	case winner.DurationMs == nil && other.DurationMs != nil:
		d := *other.DurationMs
		winner.DurationMs = &d
	case winner.DurationMs != nil && other.DurationMs != nil:
		diff := *winner.DurationMs - *other.DurationMs
		if diff < 0 {
			diff = -diff
		}
		if time.Duration(diff)*time.Millisecond > durationDisagreementSlack {
			logger.Warn("duration_ms disagreement between fused candidates",
				"track_key", winner.TrackKey,
				"winner_source", winner.SourceID, "winner_duration_ms", *winner.DurationMs,
				"other_source", other.SourceID, "other_duration_ms", *other.DurationMs,
			)
		}
	}

	if other.Provenance != nil {
		if _, ok := other.Provenance["native_id"]; ok {
			if winner.Provenance == nil {
				winner.Provenance = map[string]string{}
			}
			if _, already := winner.Provenance["native_id"]; !already {
				winner.Provenance["native_id"] = other.Provenance["native_id"]
			}
		}
	}

	if winner.Album == "" && other.Album != "" {
		winner.Album = other.Album
	}
	if len(winner.Artists) == 0 && len(other.Artists) > 0 {
		winner.Artists = other.Artists
	}

	return winner
}
