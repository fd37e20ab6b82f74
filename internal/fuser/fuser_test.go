package fuser

import (
	"context"
	"testing"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/source"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

func TestPickWinnerPrefersPlayingOverPaused(t *testing.T) {
	now := time.Now()
	candidates := map[trackkey.SourceID]candidate{
		"paused": {snapshot: model.PlaybackSnapshot{SourceID: "paused", IsPlaying: false, Priority: 100, SampledAt: now}},
		"playing": {snapshot: model.PlaybackSnapshot{SourceID: "playing", IsPlaying: true, Priority: 0, SampledAt: now}},
	}
	winner, ok := pickWinner(now, candidates)
	if !ok || winner.SourceID != "playing" {
		t.Fatalf("expected playing source to win regardless of priority, got %+v ok=%v", winner, ok)
	}
}

func TestPickWinnerPrefersHigherPriorityAmongPlaying(t *testing.T) {
	now := time.Now()
	candidates := map[trackkey.SourceID]candidate{
		"low":  {snapshot: model.PlaybackSnapshot{SourceID: "low", IsPlaying: true, Priority: 1, SampledAt: now}},
		"high": {snapshot: model.PlaybackSnapshot{SourceID: "high", IsPlaying: true, Priority: 5, SampledAt: now}},
	}
	winner, ok := pickWinner(now, candidates)
	if !ok || winner.SourceID != "high" {
		t.Fatalf("expected higher priority source to win, got %+v ok=%v", winner, ok)
	}
}

func TestPickWinnerIgnoresStaleCandidates(t *testing.T) {
	now := time.Now()
	candidates := map[trackkey.SourceID]candidate{
		"stale": {snapshot: model.PlaybackSnapshot{
			SourceID: "stale", IsPlaying: false, SampledAt: now.Add(-20 * time.Second),
			PausedTimeout: 10 * time.Second,
		}},
	}
	_, ok := pickWinner(now, candidates)
	if ok {
		t.Fatal("expected a candidate past its paused_timeout to be excluded")
	}
}

func TestPickWinnerStickyForeverWhenTimeoutZero(t *testing.T) {
	now := time.Now()
	candidates := map[trackkey.SourceID]candidate{
		"sticky": {snapshot: model.PlaybackSnapshot{
			SourceID: "sticky", IsPlaying: false, SampledAt: now.Add(-time.Hour),
			PausedTimeout: 0,
		}},
	}
	winner, ok := pickWinner(now, candidates)
	if !ok || winner.SourceID != "sticky" {
		t.Fatal("expected a paused_timeout=0 candidate to remain eligible indefinitely")
	}
}

func TestEnrichCopiesRicherFieldsWithoutChangingWinnerPosition(t *testing.T) {
	dur := int64(200000)
	pos := int64(1000)
	winnerPos := int64(5000)
	now := time.Now()

	candidates := map[trackkey.SourceID]candidate{
		"winner": {snapshot: model.PlaybackSnapshot{
			SourceID: "winner", TrackKey: "a", IsPlaying: true, PositionMs: &winnerPos, SampledAt: now,
		}},
		"other": {snapshot: model.PlaybackSnapshot{
			SourceID: "other", TrackKey: "a", AlbumArtURI: "https://example.com/art.jpg",
			DurationMs: &dur, PositionMs: &pos, SampledAt: now,
		}},
	}

	winner := candidates["winner"].snapshot
	result := enrich(nil, winner, candidates)

	if result.AlbumArtURI == "" {
		t.Fatal("expected album art to be enriched from the non-winning candidate")
	}
	if result.DurationMs == nil || *result.DurationMs != dur {
		t.Fatal("expected duration to be enriched from the non-winning candidate")
	}
	if result.PositionMs == nil || *result.PositionMs != winnerPos {
		t.Fatal("expected winner's position_ms to be unchanged by enrichment")
	}
}

func TestFuserPublishesIdleWithNoCandidates(t *testing.T) {
	reg := source.NewRegistry(4, nil)
	b := NewBroadcaster()
	f := New(reg, b, nil, nil)

	sub, unsub := b.Subscribe(4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case np := <-sub:
		if !np.IsIdle() {
			t.Fatalf("expected initial publish to be idle, got %+v", np)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial idle publish")
	}
}

func TestFuserPublishesOnNewSnapshotAndFiresTrackChange(t *testing.T) {
	reg := source.NewRegistry(4, nil)
	b := NewBroadcaster()

	var changedTo trackkey.Key
	changed := make(chan struct{}, 1)
	onChange := func(ctx context.Context, key trackkey.Key) {
		changedTo = key
		changed <- struct{}{}
	}
	f := New(reg, b, nil, onChange)

	sub, unsub := b.Subscribe(4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	<-sub // initial idle publish

	key := trackkey.FromTitleArtist("Artist", "Title")
	reg.Events <- source.SnapshotEvent{Snapshot: model.PlaybackSnapshot{
		SourceID: "fake", TrackKey: key, Title: "Title", Artist: "Artist", IsPlaying: true, SampledAt: time.Now(),
	}}

	select {
	case np := <-sub:
		if np.TrackKey != key {
			t.Fatalf("expected published track key %q, got %q", key, np.TrackKey)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish after new snapshot")
	}

	select {
	case <-changed:
		if changedTo != key {
			t.Fatalf("expected track change callback with key %q, got %q", key, changedTo)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for track change callback")
	}
}
