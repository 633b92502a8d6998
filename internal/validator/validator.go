// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package validator answers "is the deployed source still the source we
// recorded?" cheaply enough to ask on every request.
//
// The trust decision is always a constant-time comparison between a fresh
// digest of the watched files and a stored reference digest. Two cached
// values decide whether that comparison can be skipped:
//
//   - the mtime sentinel, the newest modification time over the watched
//     files, which is compared on every call using stat calls only;
//   - the validation record, the last comparison result with its timestamp,
//     which is reused for at most TTL while the sentinel is unchanged.
//
// Any change to the sentinel forces a full comparison on that call. The
// sentinel is a performance heuristic, not a security control.
package validator

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aplane-algo/srcseal/internal/digest"
	"github.com/aplane-algo/srcseal/internal/fsutil"
	"github.com/aplane-algo/srcseal/internal/metrics"
	"github.com/aplane-algo/srcseal/internal/store"
)

// Store keys and defaults.
const (
	CacheKey    = "validation.cache"
	SentinelKey = "validation.cache.mtime"

	DefaultTTL = 300 * time.Second
)

// DefaultExtensions are the files whose content the validator watches.
var DefaultExtensions = []string{".php"}

// Record is the cached result of the last full comparison.
type Record struct {
	Result    bool   `json:"result"`
	Timestamp int64  `json:"timestamp"`
	MAC       string `json:"mac,omitempty"`
}

// Options configures a Validator.
type Options struct {
	// Root is the directory whose watched files are digested.
	Root string

	// Exclude drops paths from the digest and the sentinel.
	Exclude *digest.Matcher

	// Extensions selects watched files. Defaults to DefaultExtensions.
	Extensions []string

	// ReferencePath is the plain reference digest file (source.hash).
	ReferencePath string

	// Store holds the validation record and the mtime sentinel.
	Store *store.FileStore

	// TTL bounds how long a record is reused. Defaults to DefaultTTL.
	TTL time.Duration

	// ReportOnly logs failed checks but reports the source as valid.
	ReportOnly bool

	// Budget bounds one full digest; exceeding it counts as invalid.
	Budget time.Duration

	// MACKey, if set, authenticates validation records. Records without
	// a valid MAC are treated as cache misses.
	MACKey []byte

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Validator is the cached source validator. It is safe for concurrent use;
// concurrent callers may duplicate a full comparison but never skip one.
// A check that overlaps Invalidate does not leave its result cached.
type Validator struct {
	opts       Options
	engine     *digest.Engine
	fullChecks atomic.Uint64
	generation atomic.Uint64
}

// New validates opts and fills defaults.
func New(opts Options) (*Validator, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: root", ErrMissingOption)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	opts.Root = root
	if opts.ReferencePath == "" {
		return nil, fmt.Errorf("%w: reference path", ErrMissingOption)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingOption)
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Validator{
		opts: opts,
		engine: &digest.Engine{
			Exclude:    opts.Exclude,
			Extensions: opts.Extensions,
			Budget:     opts.Budget,
			OnScan:     opts.Metrics.ScanObserver(metrics.CheckValidator),
		},
	}, nil
}

// FullChecks returns how many full content comparisons have run.
func (v *Validator) FullChecks() uint64 {
	return v.fullChecks.Load()
}

// IsSourceValid reports whether the watched files match the reference digest.
func (v *Validator) IsSourceValid(ctx context.Context) bool {
	valid := v.check(ctx)
	v.opts.Metrics.Decision(metrics.CheckValidator, valid)
	if !valid && v.opts.ReportOnly {
		v.opts.Logger.Warn("source validation failed (report-only, not enforced)", "root", v.opts.Root)
		return true
	}
	return valid
}

func (v *Validator) check(ctx context.Context) bool {
	reference, ok := v.reference()
	if !ok {
		return false
	}
	gen := v.generation.Load()

	roots := []string{v.opts.Root}
	sentinel, err := v.engine.LatestModTime(ctx, roots)
	if err != nil {
		v.opts.Logger.Error("failed to probe source modification times", "error", err)
		return false
	}

	now := v.opts.Now().Unix()
	last, haveLast := v.opts.Store.GetInt64(SentinelKey)

	if haveLast && sentinel == last {
		if rec, ok := v.loadRecord(last); ok && v.fresh(rec, now) {
			v.opts.Metrics.CacheOutcome(metrics.CacheHit)
			return rec.Result
		}
		v.opts.Metrics.CacheOutcome(metrics.CacheStale)
		result := v.compare(ctx, reference)
		v.storeRecord(result, now, last)
		v.dropIfInvalidated(gen)
		return result
	}

	v.opts.Metrics.CacheOutcome(metrics.CacheChanged)
	result := v.compare(ctx, reference)
	v.storeRecord(result, now, sentinel)
	if result {
		if err := v.opts.Store.PutInt64(SentinelKey, sentinel); err != nil {
			v.opts.Logger.Warn("failed to store mtime sentinel", "error", err)
		}
	}
	v.dropIfInvalidated(gen)
	return result
}

// dropIfInvalidated clears what a check just stored when Invalidate ran
// after the check started. The generation is read after the writes, so an
// Invalidate that lands later deletes them itself.
func (v *Validator) dropIfInvalidated(gen uint64) {
	if v.generation.Load() != gen {
		v.opts.Logger.Debug("cache invalidated during check; discarding result")
		v.clear()
	}
}

// reference loads the stored digest. A missing reference can never be
// proven valid.
func (v *Validator) reference() (string, bool) {
	data, err := os.ReadFile(v.opts.ReferencePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			v.opts.Logger.Error("reference digest missing", "path", v.opts.ReferencePath)
		} else {
			v.opts.Logger.Error("failed to read reference digest", "error", err)
		}
		return "", false
	}
	ref := strings.TrimSpace(string(data))
	if ref == "" {
		v.opts.Logger.Error("reference digest empty", "path", v.opts.ReferencePath)
		return "", false
	}
	return ref, true
}

// compare runs the full digest and the constant-time comparison.
func (v *Validator) compare(ctx context.Context, reference string) bool {
	v.fullChecks.Add(1)
	current, err := v.engine.ScanNonEmpty(ctx, []string{v.opts.Root})
	if err != nil {
		v.opts.Logger.Error("source digest failed", "root", v.opts.Root, "error", err)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(current), []byte(reference)) != 1 {
		v.opts.Logger.Warn("source digest mismatch", "root", v.opts.Root)
		return false
	}
	return true
}

func (v *Validator) fresh(rec Record, now int64) bool {
	age := now - rec.Timestamp
	return age >= 0 && time.Duration(age)*time.Second < v.opts.TTL
}

func macInput(result bool, timestamp, sentinel int64) []byte {
	return fmt.Appendf(nil, "%t|%d|%d", result, timestamp, sentinel)
}

func (v *Validator) loadRecord(sentinel int64) (Record, bool) {
	var rec Record
	if !v.opts.Store.GetJSON(CacheKey, &rec) {
		return Record{}, false
	}
	if v.opts.MACKey != nil && !store.VerifySum(v.opts.MACKey, macInput(rec.Result, rec.Timestamp, sentinel), rec.MAC) {
		v.opts.Logger.Warn("validation record failed authentication; ignoring it")
		return Record{}, false
	}
	return rec, true
}

func (v *Validator) storeRecord(result bool, now, sentinel int64) {
	rec := Record{Result: result, Timestamp: now}
	if v.opts.MACKey != nil {
		rec.MAC = store.Sum(v.opts.MACKey, macInput(result, now, sentinel))
	}
	if err := v.opts.Store.PutJSON(CacheKey, rec); err != nil {
		v.opts.Logger.Warn("failed to store validation record", "error", err)
	}
}

// Invalidate drops the cached record and sentinel so the next call performs
// a full comparison.
func (v *Validator) Invalidate() {
	v.generation.Add(1)
	v.clear()
}

func (v *Validator) clear() {
	for _, key := range []string{CacheKey, SentinelKey} {
		if err := v.opts.Store.Delete(key); err != nil {
			v.opts.Logger.Warn("failed to invalidate validation cache", "key", key, "error", err)
		}
	}
}

// WriteReference digests the current tree, stores it as the reference, and
// invalidates the cache. Returns the new digest. A tree with no watched file
// is refused with digest.ErrNoFiles.
func (v *Validator) WriteReference(ctx context.Context) (string, error) {
	current, err := v.engine.ScanNonEmpty(ctx, []string{v.opts.Root})
	if err != nil {
		return "", fmt.Errorf("failed to compute source digest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(v.opts.ReferencePath, []byte(current), fsutil.PublicFilePerm); err != nil {
		return "", fmt.Errorf("failed to write reference digest: %w", err)
	}
	v.Invalidate()
	return current, nil
}
