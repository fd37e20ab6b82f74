package source

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

type fakeSource struct {
	id      trackkey.SourceID
	caps    []Capability
	snap    func() (*model.PlaybackSnapshot, error)
	control func(cmd Command) error
}

func (f *fakeSource) Name() trackkey.SourceID  { return f.id }
func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Stop()                             {}
func (f *fakeSource) Capabilities() []Capability        { return f.caps }

func (f *fakeSource) Snapshot(ctx context.Context) (*model.PlaybackSnapshot, error) {
	if f.snap == nil {
		return nil, nil
	}
	return f.snap()
}

func (f *fakeSource) Control(ctx context.Context, cmd Command) error {
	if f.control == nil {
		return nil
	}
	return f.control(cmd)
}

func TestRegistryEmitsValidSnapshots(t *testing.T) {
	title := "Song"
	src := &fakeSource{
		id: "fake",
		snap: func() (*model.PlaybackSnapshot, error) {
			return &model.PlaybackSnapshot{Title: title, IsPlaying: true}, nil
		},
	}
	r := NewRegistry(8, nil)
	r.Register(src, Config{ID: "fake", Enabled: true, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	select {
	case ev := <-r.Events:
		if ev.Snapshot.Title != title {
			t.Fatalf("expected title %q, got %q", title, ev.Snapshot.Title)
		}
		if ev.Snapshot.SourceID != "fake" {
			t.Fatalf("expected source id to be stamped, got %q", ev.Snapshot.SourceID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot event")
	}
}

func TestRegistryRejectsInvalidSnapshot(t *testing.T) {
	src := &fakeSource{
		id: "fake",
		snap: func() (*model.PlaybackSnapshot, error) {
			return &model.PlaybackSnapshot{Title: ""}, nil
		},
	}
	r := NewRegistry(8, nil)
	r.Register(src, Config{ID: "fake", Enabled: true, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	select {
	case ev := <-r.Events:
		t.Fatalf("expected no event for invalid snapshot, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistryEntersCoolingAfterRepeatedFailures(t *testing.T) {
	var calls int32
	src := &fakeSource{
		id: "fake",
		snap: func() (*model.PlaybackSnapshot, error) {
			atomic.AddInt32(&calls, 1)
			return nil, context.DeadlineExceeded
		},
	}
	r := NewRegistry(8, nil)
	r.Register(src, Config{ID: "fake", Enabled: true, PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	time.Sleep(100 * time.Millisecond)
	afterCooling := atomic.LoadInt32(&calls)

	time.Sleep(200 * time.Millisecond)
	stillCooling := atomic.LoadInt32(&calls)

	if stillCooling > afterCooling+2 {
		t.Fatalf("expected the source to stop being polled while cooling, calls went from %d to %d", afterCooling, stillCooling)
	}
}

func TestRegistryAppliesBlocklist(t *testing.T) {
	src := &fakeSource{
		id: "fake",
		snap: func() (*model.PlaybackSnapshot, error) {
			return &model.PlaybackSnapshot{
				Title:     "Song",
				IsPlaying: true,
				Extra:     map[string]any{"app_id": "com.blocked.app"},
			}, nil
		},
	}
	r := NewRegistry(8, nil)
	r.Register(src, Config{
		ID: "fake", Enabled: true, PollInterval: 5 * time.Millisecond,
		Blocklist: []string{"com.blocked.app"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	select {
	case ev := <-r.Events:
		t.Fatalf("expected blocked entity to be filtered, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchRejectsUnsupportedCapability(t *testing.T) {
	src := &fakeSource{id: "fake", caps: []Capability{CapPlayPause}}
	r := NewRegistry(8, nil)
	r.Register(src, Config{ID: "fake", Enabled: false})

	err := r.Dispatch(context.Background(), "fake", Command{Action: CapSeek})
	if err == nil {
		t.Fatal("expected an error for an unsupported capability")
	}
}
