// Package epg turns listings grid windows into an XMLTV guide.
package epg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"zap2xml/config"
	"zap2xml/services/listings"
)

// ListingsFetcher fetches one grid window.
type ListingsFetcher interface {
	Fetch(ctx context.Context, at int64) (*listings.Result, error)
}

// CacheEvicter drops cached responses older than a given age.
type CacheEvicter interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// Options configures a run.
type Options struct {
	WindowHours int
	FetchDays   int
	// Delay is slept before every fetch that follows a network request.
	Delay      time.Duration
	CacheHold  time.Duration
	Naming     config.ChannelNaming
	OutputPath string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// OptionsFromSettings maps settings onto run options.
func OptionsFromSettings(s config.Settings) Options {
	return Options{
		WindowHours: s.Listings.Timespan,
		FetchDays:   s.Fetch.Days,
		Delay:       s.Delay(),
		CacheHold:   s.CacheHold(),
		Naming:      s.Fetch.ChannelNaming,
		OutputPath:  s.Output.Path,
	}
}

// RunSummary describes a completed run.
type RunSummary struct {
	Windows       int
	CachedWindows int
	EmptyWindows  int
	Channels      int
	Programmes    int
	Evicted       int
	Output        string
	Duration      time.Duration
}

// Service drives one guide generation run.
type Service struct {
	fetcher ListingsFetcher
	cache   CacheEvicter
	fs      afero.Fs
	opts    Options
	log     *slog.Logger
}

// NewService wires a run. cache may be nil, in which case nothing is evicted.
func NewService(fetcher ListingsFetcher, cache CacheEvicter, fs afero.Fs, opts Options, logger *slog.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Naming == "" {
		opts.Naming = config.ChannelNamingOriginal
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		fs:      fs,
		opts:    opts,
		log:     logger.With("component", "epg"),
	}
}

// Run fetches every window, writes the guide and evicts old cache entries.
// On error nothing is written.
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	started := s.opts.Now()
	windows, err := Windows(started, s.opts.WindowHours, s.opts.FetchDays)
	if err != nil {
		return nil, err
	}
	s.log.Debug("aligned window base", "time", windows[0], "windows", len(windows))

	doc := NewDocument(s.opts.Naming)
	summary := &RunSummary{Windows: len(windows), Output: s.opts.OutputPath}

	// No delay before the first request.
	previousFromCache := true
	for _, at := range windows {
		if !previousFromCache {
			if err := s.opts.Sleep(ctx, s.opts.Delay); err != nil {
				return nil, err
			}
		}
		s.log.Info("fetching window", "local", time.Unix(at, 0).Local().Format(time.DateTime), "time", at)

		res, err := s.fetcher.Fetch(ctx, at)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		previousFromCache = res.FromCache
		if res.FromCache {
			summary.CachedWindows++
		}
		if res.Empty {
			summary.EmptyWindows++
		}

		channels := res.Payload.Channels
		if doc.EnsureChannels(channels) {
			s.log.Debug("emitted channels", "count", len(channels))
		}
		for _, ch := range channels {
			for _, ev := range ch.Events {
				if err := doc.AppendProgramme(ch, ev); err != nil {
					return nil, fmt.Errorf("window %d: %w", at, err)
				}
			}
		}
	}

	if err := s.write(doc); err != nil {
		return nil, err
	}
	summary.Channels, summary.Programmes = doc.Counts()

	if s.cache != nil {
		n, err := s.cache.DeleteOlderThan(ctx, s.opts.CacheHold)
		if err != nil {
			s.log.Warn("cache eviction failed", "error", err)
		} else {
			summary.Evicted = n
		}
	}

	summary.Duration = s.opts.Now().Sub(started)
	s.log.Info("guide written",
		"output", summary.Output,
		"channels", summary.Channels,
		"programmes", summary.Programmes,
		"windows", summary.Windows,
		"cached", summary.CachedWindows,
		"empty", summary.EmptyWindows,
		"evicted", summary.Evicted,
		"duration", summary.Duration)
	return summary, nil
}

// write replaces the output file through a temp file in the same directory.
func (s *Service) write(doc *Document) error {
	path := s.opts.OutputPath
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := doc.WriteTo(tmp); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write guide: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync guide: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close guide: %w", err)
	}
	if err := s.fs.Chmod(tmpName, 0o644); err != nil {
		s.log.Debug("chmod output failed", "error", err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace guide: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
