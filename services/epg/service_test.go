package epg

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"zap2xml/config"
	"zap2xml/models"
	"zap2xml/services/listings"
)

var runStart = time.Date(2024, 3, 1, 13, 47, 0, 0, time.UTC)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func testOptions(sleeper *sleepRecorder) Options {
	return Options{
		WindowHours: 12,
		FetchDays:   1,
		Delay:       5 * time.Second,
		CacheHold:   72 * time.Hour,
		Naming:      config.ChannelNamingOriginal,
		OutputPath:  "out/xmltv.xml",
		Now:         func() time.Time { return runStart },
		Sleep:       sleeper.Sleep,
	}
}

func payload(events ...models.GridEvent) models.GridResponse {
	ch := kgo()
	ch.Events = events
	return models.GridResponse{Channels: []models.GridChannel{ch}}
}

func readGuide(t *testing.T, fs afero.Fs, path string) models.XMLTV {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var tv models.XMLTV
	require.NoError(t, xml.Unmarshal(data, &tv))
	return tv
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunWritesGuide(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	cache := NewMockCacheEvicter(ctrl)
	fs := afero.NewMemMapFs()
	sleeper := &sleepRecorder{}

	windows, err := Windows(runStart, 12, 1)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	ev := baseEvent()
	ev.Program.Title = "Morning News"
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), windows[0]).
			Return(&listings.Result{Payload: payload(ev)}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), windows[1]).
			Return(&listings.Result{Payload: payload(ev), FromCache: true}, nil),
	)
	cache.EXPECT().DeleteOlderThan(gomock.Any(), 72*time.Hour).Return(3, nil)

	summary, err := NewService(fetcher, cache, fs, testOptions(sleeper), quiet()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Windows)
	assert.Equal(t, 1, summary.CachedWindows)
	assert.Equal(t, 1, summary.Channels)
	assert.Equal(t, 2, summary.Programmes)
	assert.Equal(t, 3, summary.Evicted)
	assert.Equal(t, "out/xmltv.xml", summary.Output)

	// Only the second fetch follows a network request.
	assert.Equal(t, []time.Duration{5 * time.Second}, sleeper.calls)

	tv := readGuide(t, fs, "out/xmltv.xml")
	assert.Len(t, tv.Channels, 1)
	assert.Len(t, tv.Programmes, 2)

	entries, err := afero.ReadDir(fs, "out")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestRunSkipsDelayAfterCachedResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	sleeper := &sleepRecorder{}

	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return(&listings.Result{Payload: payload(), FromCache: true}, nil).Times(2)

	_, err := NewService(fetcher, nil, afero.NewMemMapFs(), testOptions(sleeper), quiet()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sleeper.calls)
}

func TestRunChannelsFromFirstNonEmptyWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	fs := afero.NewMemMapFs()

	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return(&listings.Result{Payload: models.GridResponse{Channels: []models.GridChannel{}}, Empty: true}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return(&listings.Result{Payload: payload(baseEvent())}, nil),
	)

	summary, err := NewService(fetcher, nil, fs, testOptions(&sleepRecorder{}), quiet()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EmptyWindows)

	tv := readGuide(t, fs, "out/xmltv.xml")
	require.Len(t, tv.Channels, 1)
	assert.Equal(t, "I7.12345.zap2it.com", tv.Channels[0].ID)
	require.Len(t, tv.Programmes, 1)
	assert.Equal(t, tv.Channels[0].ID, tv.Programmes[0].Channel)
}

func TestRunFatalFetchWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	cache := NewMockCacheEvicter(ctrl)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/xmltv.xml", []byte("previous"), 0o644))

	statusErr := &listings.StatusError{StatusCode: http.StatusServiceUnavailable, URL: "https://example.test"}
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			Return(&listings.Result{Payload: payload(baseEvent())}, nil),
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, statusErr),
	)
	// no eviction on failure
	cache.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any()).Times(0)

	_, err := NewService(fetcher, cache, fs, testOptions(&sleepRecorder{}), quiet()).Run(context.Background())
	var got *listings.StatusError
	require.True(t, errors.As(err, &got))

	data, err := afero.ReadFile(fs, "out/xmltv.xml")
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestRunTranscodeErrorIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	fs := afero.NewMemMapFs()

	ev := baseEvent()
	ev.Program.Season, ev.Program.Episode = "S1", "2"
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(&listings.Result{Payload: payload(ev)}, nil)

	_, err := NewService(fetcher, nil, fs, testOptions(&sleepRecorder{}), quiet()).Run(context.Background())
	var numErr *EpisodeNumberError
	require.True(t, errors.As(err, &numErr))

	exists, _ := afero.Exists(fs, "out/xmltv.xml")
	assert.False(t, exists)
}

func TestRunEvictionFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	cache := NewMockCacheEvicter(ctrl)
	fs := afero.NewMemMapFs()

	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		Return(&listings.Result{Payload: payload(), FromCache: true}, nil).Times(2)
	cache.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any()).Return(0, errors.New("disk full"))

	summary, err := NewService(fetcher, cache, fs, testOptions(&sleepRecorder{}), quiet()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Evicted)

	exists, _ := afero.Exists(fs, "out/xmltv.xml")
	assert.True(t, exists)
}

func TestRunStopsWhenSleepCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, int64) (*listings.Result, error) {
		cancel()
		return &listings.Result{Payload: payload()}, nil
	})

	opts := testOptions(nil)
	opts.Sleep = nil
	opts.Delay = time.Hour
	_, err := NewService(fetcher, nil, afero.NewMemMapFs(), opts, quiet()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStopsWhenCancelledDuringCachedWindows(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockListingsFetcher(ctrl)
	fs := afero.NewMemMapFs()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, int64) (*listings.Result, error) {
		cancel()
		return &listings.Result{Payload: payload(baseEvent()), FromCache: true}, nil
	})

	sleeper := &sleepRecorder{}
	_, err := NewService(fetcher, nil, fs, testOptions(sleeper), quiet()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sleeper.calls)

	exists, _ := afero.Exists(fs, "out/xmltv.xml")
	assert.False(t, exists)
}

func TestRunInvalidWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	opts := testOptions(&sleepRecorder{})
	opts.WindowHours = 0
	_, err := NewService(NewMockListingsFetcher(ctrl), nil, afero.NewMemMapFs(), opts, quiet()).Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestOptionsFromSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.Fetch.ChannelNaming = config.ChannelNamingCallsign
	opts := OptionsFromSettings(s)
	assert.Equal(t, 3, opts.WindowHours)
	assert.Equal(t, 7, opts.FetchDays)
	assert.Equal(t, 5*time.Second, opts.Delay)
	assert.Equal(t, 72*time.Hour, opts.CacheHold)
	assert.Equal(t, config.ChannelNamingCallsign, opts.Naming)
	assert.Equal(t, "xmltv.xml", opts.OutputPath)
}
