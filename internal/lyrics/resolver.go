package lyrics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kitsune-lab/syncstage/internal/cache"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// raceDeadline bounds the provider race per spec §4.4's default.
const raceDeadline = 8 * time.Second

// PreferenceLookup resolves a per-track provider override, read from C8's
// TrackPreferences store.
type PreferenceLookup func(key trackkey.Key) (trackkey.ProviderID, bool)

// Resolver implements C4: it checks the primary single-flight cache first,
// otherwise races every provider with a hard deadline, ranks replies by
// tier then priority then arrival order, and caches both the winner and
// every other non-error reply for manual selection.
type Resolver struct {
	providers []Provider
	primary   *cache.Cache[trackkey.Key, model.LyricsDoc]
	alternate *cache.Cache[string, model.LyricsDoc]
	preferred PreferenceLookup
	logger    *slog.Logger
}

// NewResolver constructs a Resolver over providers, persisting the primary
// winner cache under dataDir/lyrics and the per-provider alternates cache
// under dataDir/lyrics-alt.
func NewResolver(providers []Provider, dataDir string, preferred PreferenceLookup, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	primary, err := cache.New[trackkey.Key, model.LyricsDoc](
		joinDir(dataDir, "lyrics"),
		func(k trackkey.Key) string { return string(k) },
		cache.WithNegativeTTL[trackkey.Key, model.LyricsDoc](24*time.Hour),
		cache.WithLogger[trackkey.Key, model.LyricsDoc](logger),
	)
	if err != nil {
		return nil, err
	}
	alternate, err := cache.New[string, model.LyricsDoc](
		joinDir(dataDir, "lyrics-alt"),
		func(k string) string { return k },
		cache.WithNegativeTTL[string, model.LyricsDoc](24*time.Hour),
		cache.WithLogger[string, model.LyricsDoc](logger),
	)
	if err != nil {
		return nil, err
	}
	return &Resolver{providers: providers, primary: primary, alternate: alternate, preferred: preferred, logger: logger}, nil
}

// Providers returns the configured provider set in configuration order, for the
// "/api/providers/available" listing.
func (r *Resolver) Providers() []Provider {
	return append([]Provider(nil), r.providers...)
}

// ProviderStatus summarizes one provider's standing for a given track, for
// the "/api/providers/available" response (spec §4.7: "ordered list with
// is_current, cached flags").
type ProviderStatus struct {
	ID       trackkey.ProviderID
	Priority int
	Cached   bool
	Current  bool
}

// ProviderStatuses reports, for every configured provider, whether it won
// the last race for key (Current) and whether a usable reply is already
// cached for manual selection (Cached).
func (r *Resolver) ProviderStatuses(key trackkey.Key) []ProviderStatus {
	var currentID trackkey.ProviderID
	if doc, ok := r.primary.Get(key); ok {
		currentID = doc.ProviderID
	}
	out := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		_, cached := r.alternate.Get(altKey(key, p.ID()))
		current := p.ID() == currentID
		out = append(out, ProviderStatus{ID: p.ID(), Priority: p.Priority(), Cached: cached || current, Current: current})
	}
	return out
}

func joinDir(base, sub string) string {
	if base == "" {
		return ""
	}
	return base + "/" + sub
}

func altKey(key trackkey.Key, provider trackkey.ProviderID) string {
	return string(key) + "|" + string(provider)
}

// Resolve returns the lyrics document for key, honoring any user override,
// otherwise the tiered race result. The second return is the provider_id
// of the returned document's source.
func (r *Resolver) Resolve(ctx context.Context, key trackkey.Key, q Query) (model.LyricsDoc, trackkey.ProviderID, error) {
	if r.preferred != nil {
		if provider, ok := r.preferred(key); ok {
			if doc, ok := r.alternate.Get(altKey(key, provider)); ok && doc.Variant != model.VariantNotFound {
				return doc, doc.ProviderID, nil
			}
		}
	}

	doc, err := r.primary.GetOrFetch(ctx, key, func(fetchCtx context.Context) (model.LyricsDoc, error) {
		return r.race(fetchCtx, key, q)
	})
	if err != nil {
		return model.LyricsDoc{}, "", err
	}
	return doc, doc.ProviderID, nil
}

// Alternates returns up to n cached replies from providers other than
// primary, for the manual-selection UI (spec §4.4 step 1: "up to two
// alternates ... if already cached").
func (r *Resolver) Alternates(key trackkey.Key, primary trackkey.ProviderID, n int) []model.LyricsDoc {
	var out []model.LyricsDoc
	for _, p := range r.providers {
		if p.ID() == primary {
			continue
		}
		if doc, ok := r.alternate.Get(altKey(key, p.ID())); ok && doc.Variant != model.VariantNotFound {
			out = append(out, doc)
			if len(out) >= n {
				break
			}
		}
	}
	return out
}

// raceResult pairs a provider's reply with its arrival order for tie
// breaking.
type raceResult struct {
	doc      model.LyricsDoc
	provider Provider
	arrival  int
}

// durationSlackMs is spec §8's tolerance: a Synced reply whose largest t_ms
// exceeds the track's duration_ms by more than this is downgraded to
// Unsynced rather than served (and cached) as Synced.
const durationSlackMs = 5000

func (r *Resolver) race(ctx context.Context, key trackkey.Key, q Query) (model.LyricsDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, raceDeadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan raceResult, len(r.providers))

	for _, p := range r.providers {
		p := p
		g.Go(func() error {
			doc, err := p.Fetch(gctx, q)
			if err != nil {
				r.logger.Warn("lyrics provider failed", "provider", p.ID(), "error", err)
				return nil
			}
			doc.ProviderID = p.ID()
			if q.DurationMs != nil && doc.ExceedsDuration(*q.DurationMs, durationSlackMs) {
				r.logger.Warn("lyrics provider timestamps exceed track duration, downgrading to unsynced",
					"provider", p.ID(), "duration_ms", *q.DurationMs)
				doc = doc.Downgraded()
			}
			r.alternate.Invalidate(altKey(key, p.ID()))
			results <- raceResult{doc: doc, provider: p}
			return nil
		})
	}

	done := make(chan struct{})
	go func() { g.Wait(); close(done) }()

	var all []raceResult
collect:
	for {
		select {
		case res := <-results:
			res.arrival = len(all)
			all = append(all, res)
		case <-done:
			// Drain any results that arrived concurrently with completion.
			for {
				select {
				case res := <-results:
					res.arrival = len(all)
					all = append(all, res)
				default:
					break collect
				}
			}
		case <-ctx.Done():
			break collect
		}
	}

	for _, res := range all {
		r.alternate.Invalidate(altKey(key, res.provider.ID()))
		_, _ = r.alternate.GetOrFetch(context.Background(), altKey(key, res.provider.ID()),
			func(context.Context) (model.LyricsDoc, error) { return res.doc, nil })
	}

	winner, ok := bestReply(all)
	if !ok {
		return model.NotFoundDoc(""), nil
	}
	return winner, nil
}

// bestReply ranks replies by variant tier, then provider priority, then
// arrival order, per spec §4.4 step 2.
func bestReply(results []raceResult) (model.LyricsDoc, bool) {
	var (
		best    raceResult
		hasBest bool
	)
	for _, res := range results {
		if res.doc.Variant == model.VariantNotFound {
			continue
		}
		if !hasBest {
			best, hasBest = res, true
			continue
		}
		if rankBetter(res, best) {
			best = res
		}
	}
	if !hasBest {
		return model.LyricsDoc{}, false
	}
	return best.doc, true
}

func rankBetter(a, b raceResult) bool {
	ra, rb := a.doc.Variant.Rank(), b.doc.Variant.Rank()
	if ra != rb {
		return ra > rb
	}
	if a.provider.Priority() != b.provider.Priority() {
		return a.provider.Priority() > b.provider.Priority()
	}
	return a.arrival < b.arrival
}

// SetPreference returns whether a usable cached document for provider
// already exists for key, so the caller can satisfy spec §4.4's "must
// succeed within one refresh interval" without waiting on a fresh fetch. It
// stores nothing itself; the caller persists the preference in the settings
// store.
func (r *Resolver) SetPreference(key trackkey.Key, provider trackkey.ProviderID) (model.LyricsDoc, bool) {
	doc, ok := r.alternate.Get(altKey(key, provider))
	if !ok || doc.Variant == model.VariantNotFound {
		return model.LyricsDoc{}, false
	}
	return doc, true
}
