package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/a11yaudit/report"
)

const (
	// ContentTTL bounds content-cache entries.
	ContentTTL = 86400 * time.Second
	// DefaultRecencyTTL bounds recency-cache entries unless configured.
	DefaultRecencyTTL = 300 * time.Second
)

// ContentKey is audit:{first 16 chars of fingerprint}:{first 100 chars of url}.
func ContentKey(fingerprint, url string) string {
	fp := fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	return "audit:" + fp + ":" + truncateRunes(url, 100)
}

// RecencyKey is audit:recent:{md5(url)}.
func RecencyKey(url string) string {
	sum := md5.Sum([]byte(url))
	return "audit:recent:" + hex.EncodeToString(sum[:])
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Store is the audit result cache. Reads never fail: absence, decode errors
// and backend failures are all misses.
type Store struct {
	remote     Backend // nil: memory only
	local      *Memory
	recencyTTL time.Duration
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithRemote sets the preferred backend.
func WithRemote(b Backend) Option {
	return func(s *Store) { s.remote = b }
}

// WithRecencyTTL overrides DefaultRecencyTTL.
func WithRecencyTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.recencyTTL = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store. Without WithRemote every operation uses the
// process-local map.
func New(opts ...Option) *Store {
	s := &Store{
		local:      NewMemory(),
		recencyTTL: DefaultRecencyTTL,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecencyTTL returns the configured recency TTL.
func (s *Store) RecencyTTL() time.Duration { return s.recencyTTL }

// GetContent looks up the content cache.
func (s *Store) GetContent(ctx context.Context, url, fingerprint string) (report.Result, bool) {
	return s.get(ctx, ContentKey(fingerprint, url))
}

// SetContent writes the content cache.
func (s *Store) SetContent(ctx context.Context, url, fingerprint string, res report.Result) {
	s.set(ctx, ContentKey(fingerprint, url), res, ContentTTL)
}

// GetRecent looks up the recency cache.
func (s *Store) GetRecent(ctx context.Context, url string) (report.Result, bool) {
	return s.get(ctx, RecencyKey(url))
}

// SetRecent writes the recency cache.
func (s *Store) SetRecent(ctx context.Context, url string, res report.Result) {
	s.set(ctx, RecencyKey(url), res, s.recencyTTL)
}

func (s *Store) get(ctx context.Context, key string) (report.Result, bool) {
	var (
		data []byte
		err  error
	)
	if s.remote != nil {
		data, err = s.remote.Get(ctx, key)
		if err != nil && !errors.Is(err, ErrMiss) {
			s.logger.WarnContext(ctx, "cache: remote get failed, using memory", "key", key, "error", err)
		}
	}
	if s.remote == nil || err != nil {
		// A remote miss may still be held locally from a write made
		// during an outage.
		data, err = s.local.Get(ctx, key)
	}
	if err != nil {
		s.logger.DebugContext(ctx, "cache: miss", "key", key)
		return report.Result{}, false
	}

	var res report.Result
	if err := json.Unmarshal(data, &res); err != nil {
		s.logger.WarnContext(ctx, "cache: corrupt entry", "key", key, "error", err)
		return report.Result{}, false
	}
	s.logger.DebugContext(ctx, "cache: hit", "key", key)
	return res, true
}

func (s *Store) set(ctx context.Context, key string, res report.Result, ttl time.Duration) {
	data, err := json.Marshal(res)
	if err != nil {
		s.logger.WarnContext(ctx, "cache: encode failed", "key", key, "error", err)
		return
	}
	if s.remote != nil {
		err := s.remote.Set(ctx, key, data, ttl)
		if err == nil {
			return
		}
		s.logger.WarnContext(ctx, "cache: remote set failed, using memory", "key", key, "error", err)
	}
	_ = s.local.Set(ctx, key, data, ttl)
}
