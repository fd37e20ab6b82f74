package art

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kitsune-lab/syncstage/internal/cache"
	"github.com/kitsune-lab/syncstage/internal/errs"
	"github.com/kitsune-lab/syncstage/internal/model"
	"github.com/kitsune-lab/syncstage/internal/trackkey"
)

// searchDeadline bounds a provider fan-out, matching the lyrics race's
// default.
const searchDeadline = 8 * time.Second

// entrySet is the cached candidate list for one key; an empty set is a
// cached "nothing found" result, negatively cached with a short TTL.
type entrySet []model.ArtifactEntry

func (s entrySet) CacheNegative() bool { return len(s) == 0 }

// PreferenceLookup resolves a per-track or per-artist provider override.
type PreferenceLookup[K comparable] func(key K) (trackkey.ProviderID, bool)

// downloader fetches each distinct image URL at most once, content-addresses
// the bytes under dir, and remembers the url-to-hash mapping on disk so a
// restart does not re-download.
type downloader struct {
	client  *resty.Client
	dir     string
	urlHash *cache.Cache[string, string]
}

func newDownloader(dataDir string, logger *slog.Logger) (*downloader, error) {
	dir := joinDir(dataDir, "art-blobs")
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	urlHash, err := cache.New[string, string](
		joinDir(dataDir, "art-urlhash"),
		func(u string) string { return u },
		cache.WithLogger[string, string](logger),
	)
	if err != nil {
		return nil, err
	}
	return &downloader{
		client:  resty.New().SetTimeout(20 * time.Second),
		dir:     dir,
		urlHash: urlHash,
	}, nil
}

func (d *downloader) blobPath(hash string) string {
	if d.dir == "" {
		return ""
	}
	return filepath.Join(d.dir, hash)
}

// fetch downloads (or reuses) the bytes behind url and returns their content
// hash and stored path. Once a hash's file exists on disk it is never
// rewritten, satisfying the "never re-downloaded for the same content hash"
// invariant.
func (d *downloader) fetch(ctx context.Context, url string) (hash, path string, err error) {
	if h, ok := d.urlHash.Get(url); ok {
		return h, d.blobPath(h), nil
	}

	var data []byte
	if strings.HasPrefix(url, "data:") {
		data, err = decodeDataURI(url)
		if err != nil {
			return "", "", errs.Corrupt("malformed embedded art data uri", err)
		}
	} else {
		resp, rerr := d.client.R().SetContext(ctx).Get(url)
		if rerr != nil {
			return "", "", errs.Transient("art download failed", rerr)
		}
		if resp.IsError() {
			return "", "", errs.Transient("art download returned an error status", nil)
		}
		data = resp.Body()
	}

	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])
	path = d.blobPath(hash)

	if path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			tmp, terr := os.CreateTemp(d.dir, "blob-*.tmp")
			if terr != nil {
				return "", "", errs.Transient("failed to create temp blob file", terr)
			}
			tmpName := tmp.Name()
			if _, werr := tmp.Write(data); werr != nil {
				tmp.Close()
				os.Remove(tmpName)
				return "", "", errs.Transient("failed to write blob", werr)
			}
			if cerr := tmp.Close(); cerr != nil {
				os.Remove(tmpName)
				return "", "", errs.Transient("failed to close blob", cerr)
			}
			if rerr := os.Rename(tmpName, path); rerr != nil {
				os.Remove(tmpName)
				return "", "", errs.Transient("failed to rename blob into place", rerr)
			}
		}
	}

	_, _ = d.urlHash.GetOrFetch(ctx, url, func(context.Context) (string, error) { return hash, nil })
	return hash, path, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	idx := strings.Index(uri, ",")
	if idx < 0 {
		return nil, errs.Corrupt("data uri missing comma separator", nil)
	}
	return base64.StdEncoding.DecodeString(uri[idx+1:])
}

func joinDir(base, sub string) string {
	if base == "" {
		return ""
	}
	return base + "/" + sub
}

// AlbumArtResolver implements the album-art half of C5: fan out to every
// provider, download each candidate once, and serve the entry chosen by
// preference or largest resolution.
type AlbumArtResolver struct {
	providers  []AlbumArtProvider
	priorities map[trackkey.ProviderID]int
	cache      *cache.Cache[trackkey.Key, entrySet]
	downloader *downloader
	preferred  PreferenceLookup[trackkey.Key]
	logger     *slog.Logger
}

// NewAlbumArtResolver constructs the album-art resolver, persisting
// candidate lists under dataDir/art and downloaded blobs under
// dataDir/art-blobs.
func NewAlbumArtResolver(providers []AlbumArtProvider, dataDir string, preferred PreferenceLookup[trackkey.Key], logger *slog.Logger) (*AlbumArtResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := cache.New[trackkey.Key, entrySet](
		joinDir(dataDir, "art"),
		func(k trackkey.Key) string { return string(k) },
		cache.WithNegativeTTL[trackkey.Key, entrySet](24*time.Hour),
		cache.WithLogger[trackkey.Key, entrySet](logger),
	)
	if err != nil {
		return nil, err
	}
	dl, err := newDownloader(dataDir, logger)
	if err != nil {
		return nil, err
	}
	priorities := make(map[trackkey.ProviderID]int, len(providers))
	for _, p := range providers {
		priorities[p.ID()] = p.Priority()
	}
	return &AlbumArtResolver{
		providers:  providers,
		priorities: priorities,
		cache:      c,
		downloader: dl,
		preferred:  preferred,
		logger:     logger,
	}, nil
}

// Providers returns the configured album-art provider set, for the
// "/api/album-art/options" and "/api/providers/available" listings.
func (r *AlbumArtResolver) Providers() []AlbumArtProvider {
	return append([]AlbumArtProvider(nil), r.providers...)
}

// Resolve returns the served artifact for key plus every downloaded
// candidate, for the manual-switch UI.
func (r *AlbumArtResolver) Resolve(ctx context.Context, key trackkey.Key, q AlbumArtQuery) (model.ArtifactEntry, []model.ArtifactEntry, error) {
	entries, err := r.cache.GetOrFetch(ctx, key, func(fetchCtx context.Context) (entrySet, error) {
		return r.search(fetchCtx, q)
	})
	if err != nil {
		return model.ArtifactEntry{}, nil, err
	}
	if len(entries) == 0 {
		return model.NotFoundArtifact(model.ArtifactAlbumArt), nil, nil
	}

	var (
		preferredID trackkey.ProviderID
		hasPref     bool
	)
	if r.preferred != nil {
		preferredID, hasPref = r.preferred(key)
	}
	return selectServed(entries, r.priorities, preferredID, hasPref), entries, nil
}

func (r *AlbumArtResolver) search(ctx context.Context, q AlbumArtQuery) (entrySet, error) {
	ctx, cancel := context.WithTimeout(ctx, searchDeadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	candidates := make(chan Candidate, len(r.providers)*4)

	for _, p := range r.providers {
		p := p
		g.Go(func() error {
			cands, err := p.Search(gctx, q)
			if err != nil {
				r.logger.Warn("album art provider failed", "provider", p.ID(), "error", err)
				return nil
			}
			for _, c := range cands {
				candidates <- c
			}
			return nil
		})
	}
	go func() { g.Wait(); close(candidates) }()

	var entries entrySet
	for c := range candidates {
		hash, path, err := r.downloader.fetch(ctx, c.ImageURL)
		if err != nil {
			r.logger.Warn("album art download failed", "provider", c.ProviderID, "error", err)
			continue
		}
		entries = append(entries, model.ArtifactEntry{
			Kind:         model.ArtifactAlbumArt,
			TrackKey:     q.TrackKey,
			ProviderID:   c.ProviderID,
			ResolutionPx: c.ResolutionPx,
			ContentHash:  hash,
			StoredPath:   path,
			SourceURL:    c.ImageURL,
			FetchedAt:    time.Now(),
		})
	}
	return entries, nil
}

// selectServed applies the preference-then-largest-resolution rule, ties
// broken by provider priority.
func selectServed(entries []model.ArtifactEntry, priorities map[trackkey.ProviderID]int, preferred trackkey.ProviderID, hasPref bool) model.ArtifactEntry {
	if hasPref {
		for _, e := range entries {
			if e.ProviderID == preferred {
				return e
			}
		}
	}
	sorted := append([]model.ArtifactEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ResolutionPx != sorted[j].ResolutionPx {
			return sorted[i].ResolutionPx > sorted[j].ResolutionPx
		}
		return priorities[sorted[i].ProviderID] > priorities[sorted[j].ProviderID]
	})
	return sorted[0]
}

// ArtistImageResolver implements the artist-image half of C5: a fan-out
// across providers cached per ArtistKey and served as an ordered list
// rather than a single selection.
type ArtistImageResolver struct {
	providers  []ArtistImageProvider
	cache      *cache.Cache[trackkey.ArtistKey, entrySet]
	downloader *downloader
	logger     *slog.Logger
}

// NewArtistImageResolver constructs the artist-image resolver, sharing the
// same blob store as the album-art resolver so duplicate source images
// (e.g. the streaming service returning the same photo for both) are
// downloaded once.
func NewArtistImageResolver(providers []ArtistImageProvider, dataDir string, logger *slog.Logger) (*ArtistImageResolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := cache.New[trackkey.ArtistKey, entrySet](
		joinDir(dataDir, "artist-art"),
		func(k trackkey.ArtistKey) string { return string(k) },
		cache.WithNegativeTTL[trackkey.ArtistKey, entrySet](24*time.Hour),
		cache.WithLogger[trackkey.ArtistKey, entrySet](logger),
	)
	if err != nil {
		return nil, err
	}
	dl, err := newDownloader(dataDir, logger)
	if err != nil {
		return nil, err
	}
	return &ArtistImageResolver{providers: providers, cache: c, downloader: dl, logger: logger}, nil
}

// Resolve returns every downloaded image for an artist, largest resolution
// first, for C7 to serve as a slideshow list.
func (r *ArtistImageResolver) Resolve(ctx context.Context, q ArtistImageQuery) ([]model.ArtifactEntry, error) {
	entries, err := r.cache.GetOrFetch(ctx, q.ArtistKey, func(fetchCtx context.Context) (entrySet, error) {
		return r.search(fetchCtx, q)
	})
	if err != nil {
		return nil, err
	}
	sorted := append([]model.ArtifactEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ResolutionPx > sorted[j].ResolutionPx })
	return sorted, nil
}

func (r *ArtistImageResolver) search(ctx context.Context, q ArtistImageQuery) (entrySet, error) {
	ctx, cancel := context.WithTimeout(ctx, searchDeadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	candidates := make(chan Candidate, len(r.providers)*4)

	for _, p := range r.providers {
		p := p
		g.Go(func() error {
			cands, err := p.Search(gctx, q)
			if err != nil {
				r.logger.Warn("artist image provider failed", "provider", p.ID(), "error", err)
				return nil
			}
			for _, c := range cands {
				candidates <- c
			}
			return nil
		})
	}
	go func() { g.Wait(); close(candidates) }()

	var entries entrySet
	for c := range candidates {
		hash, path, err := r.downloader.fetch(ctx, c.ImageURL)
		if err != nil {
			r.logger.Warn("artist image download failed", "provider", c.ProviderID, "error", err)
			continue
		}
		entries = append(entries, model.ArtifactEntry{
			Kind:         model.ArtifactArtistImage,
			ArtistKey:    q.ArtistKey,
			ProviderID:   c.ProviderID,
			ResolutionPx: c.ResolutionPx,
			ContentHash:  hash,
			StoredPath:   path,
			SourceURL:    c.ImageURL,
			FetchedAt:    time.Now(),
		})
	}
	return entries, nil
}
