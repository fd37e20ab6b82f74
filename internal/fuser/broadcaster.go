package fuser

import (
	"sync"

	"github.com/kitsune-lab/syncstage/internal/model"
)

// subscription is one listener's buffered delivery channel. Buffered so the
// fuser's publish loop never blocks on a slow subscriber; a full buffer
// drops its oldest queued update rather than stalling every other subscriber,
// matching the teacher's MP3 chunk fan-out.
type subscription struct {
	ch chan model.NowPlaying
	id uint64
}

// Broadcaster fans out NowPlaying publications to every subscriber, each on
// its own buffered channel, dropping the oldest queued update on a full
// buffer rather than blocking, so the latest publication always gets in.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*subscription)}
}

// Subscribe registers a new listener and returns a channel of its
// publications plus an unsubscribe function. The channel carries
// publications in submission order (spec §5: "totally ordered per
// subscriber (FIFO)"); when its buffer is full the oldest queued one is
// dropped in favour of the newest.
func (b *Broadcaster) Subscribe(bufferSize int) (<-chan model.NowPlaying, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscription{ch: make(chan model.NowPlaying, bufferSize), id: id}
	b.subs[id] = sub
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, unsub
}

// Publish delivers np to every current subscriber. For a subscriber whose
// buffer is full, its oldest queued publication is dropped to make room
// for np.
func (b *Broadcaster) Publish(np model.NowPlaying) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- np:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- np:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of active subscriptions, for
// diagnostics.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
