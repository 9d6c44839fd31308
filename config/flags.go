package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Flags are the parsed command line options. Only flags given explicitly
// override values loaded from the settings file.
type Flags struct {
	fs         *pflag.FlagSet
	configPath string
	setters    map[string]func(*Settings)
}

// ParseFlags parses args (without the program name). It returns
// pflag.ErrHelp when usage was requested.
func ParseFlags(name string, args []string, output io.Writer) (*Flags, error) {
	d := DefaultSettings()
	f := &Flags{
		fs:      pflag.NewFlagSet(name, pflag.ContinueOnError),
		setters: make(map[string]func(*Settings)),
	}
	f.fs.SetOutput(output)
	f.fs.Usage = func() {
		fmt.Fprintf(output, "Fetch TV listings from the Gracenote grid API and write an XMLTV file.\n\nUsage of %s:\n", name)
		f.fs.PrintDefaults()
	}

	f.fs.StringVar(&f.configPath, "config", "", "JSON settings file; created with defaults if missing")

	// grid query parameters
	f.str("aid", "", d.Listings.AffiliateID, "raw grid parameter (affiliate id)",
		func(s *Settings, v string) { s.Listings.AffiliateID = v })
	f.str("country", "c", d.Listings.Country, "country identifying the listings to fetch",
		func(s *Settings, v string) { s.Listings.Country = v })
	f.str("device", "", d.Listings.Device, "raw grid parameter (device)",
		func(s *Settings, v string) { s.Listings.Device = v })
	f.str("headend-id", "", d.Listings.HeadendID, "raw grid parameter (headend id)",
		func(s *Settings, v string) { s.Listings.HeadendID = v })
	f.boolean("is-override", "", d.Listings.IsOverride, "raw grid parameter (is override)",
		func(s *Settings, v bool) { s.Listings.IsOverride = v })
	f.str("language", "", d.Listings.LanguageCode, "raw grid parameter (language code)",
		func(s *Settings, v string) { s.Listings.LanguageCode = v })
	f.str("pref", "", d.Listings.Pref, "raw grid parameter (preferences)",
		func(s *Settings, v string) { s.Listings.Pref = v })
	f.integer("timespan", "", d.Listings.Timespan, "hours of data per fetch",
		func(s *Settings, v int) { s.Listings.Timespan = v })
	f.str("timezone", "", d.Listings.Timezone, "raw grid parameter (time zone)",
		func(s *Settings, v string) { s.Listings.Timezone = v })
	f.str("user-id", "", d.Listings.UserID, "raw grid parameter (user id)",
		func(s *Settings, v string) { s.Listings.UserID = v })
	f.str("zip", "z", "", "zip/postal code identifying the listings to fetch (required)",
		func(s *Settings, v string) { s.Listings.PostalCode = v })
	f.str("postal", "", "", "alias for --zip",
		func(s *Settings, v string) { s.Listings.PostalCode = v })

	// run behaviour
	f.integer("delay", "d", d.Fetch.DelaySeconds, "delay, in seconds, between server fetches",
		func(s *Settings, v int) { s.Fetch.DelaySeconds = v })
	f.integer("fetch-days", "", d.Fetch.Days, "days ahead when fetching listings",
		func(s *Settings, v int) { s.Fetch.Days = v })
	f.str("channel-naming", "", string(d.Fetch.ChannelNaming), "channel naming strategy (original or callsign)",
		func(s *Settings, v string) { s.Fetch.ChannelNaming = ChannelNaming(v) })
	f.str("output", "o", d.Output.Path, "path of the XMLTV file to write",
		func(s *Settings, v string) { s.Output.Path = v })

	// cache
	f.integer("cache-expiry", "", d.Cache.ExpiryHours, "cache expiry (hours); older responses are fetched again",
		func(s *Settings, v int) { s.Cache.ExpiryHours = v })
	f.integer("cache-hold", "", d.Cache.HoldHours, "cache hold (hours); older responses are deleted after the run",
		func(s *Settings, v int) { s.Cache.HoldHours = v })
	f.str("cache-dir", "", d.Cache.Directory, "cache directory",
		func(s *Settings, v string) { s.Cache.Directory = v })
	f.str("cache-backend", "", string(d.Cache.Backend), "cache store (file, sqlite or redis)",
		func(s *Settings, v string) { s.Cache.Backend = CacheBackend(v) })
	f.integer("cache-retries", "", d.Cache.Retries, "attempts per request on network errors",
		func(s *Settings, v int) { s.Cache.Retries = v })

	f.str("redis-addr", "", d.Cache.Redis.Addr, "redis address for the redis cache backend",
		func(s *Settings, v string) { s.Cache.Redis.Addr = v })
	f.integer("redis-db", "", d.Cache.Redis.DB, "redis database number",
		func(s *Settings, v int) { s.Cache.Redis.DB = v })

	f.str("metrics-file", "", d.Output.MetricsFile, "write run metrics in Prometheus text format to this file",
		func(s *Settings, v string) { s.Output.MetricsFile = v })

	// logging
	f.str("logging", "", d.Log.Level, "log level (debug, info, warn or 10, 20, 30)",
		func(s *Settings, v string) { s.Log.Level = v })
	f.str("log-file", "", d.Log.File, "also write logs to this file, rotated",
		func(s *Settings, v string) { s.Log.File = v })

	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}
	if f.fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", f.fs.Args())
	}
	return f, nil
}

// ConfigPath is the --config value, empty when no settings file is used.
func (f *Flags) ConfigPath() string {
	return f.configPath
}

// Apply copies every explicitly set flag into s.
func (f *Flags) Apply(s *Settings) {
	f.fs.Visit(func(fl *pflag.Flag) {
		if set, ok := f.setters[fl.Name]; ok {
			set(s)
		}
	})
}

// Settings resolves the effective settings: the settings file (or defaults),
// then explicit flags on top, then validation.
func (f *Flags) Settings() (Settings, error) {
	s := DefaultSettings()
	if f.configPath != "" {
		loaded, err := NewManager(f.configPath).Load()
		if err != nil {
			return Settings{}, fmt.Errorf("load settings: %w", err)
		}
		s = loaded
	}
	f.Apply(&s)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (f *Flags) str(name, short, def, usage string, set func(*Settings, string)) {
	p := f.fs.StringP(name, short, def, usage)
	f.setters[name] = func(s *Settings) { set(s, *p) }
}

func (f *Flags) integer(name, short string, def int, usage string, set func(*Settings, int)) {
	p := f.fs.IntP(name, short, def, usage)
	f.setters[name] = func(s *Settings) { set(s, *p) }
}

func (f *Flags) boolean(name, short string, def bool, usage string, set func(*Settings, bool)) {
	p := f.fs.BoolP(name, short, def, usage)
	f.setters[name] = func(s *Settings) { set(s, *p) }
}
