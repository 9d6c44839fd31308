package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents the tool configuration. It can be persisted to disk as
// JSON or YAML and is overridden by command line flags.
type Settings struct {
	Listings ListingsSettings `json:"listings" yaml:"listings"`
	Fetch    FetchSettings    `json:"fetch" yaml:"fetch"`
	Cache    CacheSettings    `json:"cache" yaml:"cache"`
	Output   OutputSettings   `json:"output" yaml:"output"`
	Log      LogConfig        `json:"log" yaml:"log"`
}

// ListingsSettings are the raw grid API query parameters.
type ListingsSettings struct {
	AffiliateID  string `json:"affiliateId" yaml:"affiliateId"`
	Country      string `json:"country" yaml:"country"`
	Device       string `json:"device" yaml:"device"`
	HeadendID    string `json:"headendId" yaml:"headendId"`
	IsOverride   bool   `json:"isOverride" yaml:"isOverride"`
	LanguageCode string `json:"languageCode" yaml:"languageCode"`
	Pref         string `json:"pref" yaml:"pref"`
	PostalCode   string `json:"postalCode" yaml:"postalCode"`
	Timespan     int    `json:"timespan" yaml:"timespan"` // hours of data per request
	Timezone     string `json:"timezone" yaml:"timezone"`
	UserID       string `json:"userId" yaml:"userId"`
	BaseURL      string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	UserAgent    string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

type FetchSettings struct {
	Days          int           `json:"days" yaml:"days"`
	DelaySeconds  int           `json:"delaySeconds" yaml:"delaySeconds"`
	ChannelNaming ChannelNaming `json:"channelNaming" yaml:"channelNaming"`
}

// CacheSettings configures the HTTP response cache.
type CacheSettings struct {
	Backend           CacheBackend `json:"backend" yaml:"backend"`
	Directory         string       `json:"directory" yaml:"directory"`
	ExpiryHours       int          `json:"expiryHours" yaml:"expiryHours"` // age after which a new request is issued
	HoldHours         int          `json:"holdHours" yaml:"holdHours"`     // age after which entries are deleted
	Retries           int          `json:"retries" yaml:"retries"`
	RetryDelaySeconds int          `json:"retryDelaySeconds" yaml:"retryDelaySeconds"`
	Redis             RedisConfig  `json:"redis" yaml:"redis"`
}

// RedisConfig is used by the redis cache backend only.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

type OutputSettings struct {
	Path string `json:"path" yaml:"path"`
	// MetricsFile, when set, receives run metrics in the Prometheus text
	// format (node_exporter textfile collector).
	MetricsFile string `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file" yaml:"file"`
	Level      string `json:"level" yaml:"level"`
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// ChannelNaming selects how XMLTV channel ids are derived.
type ChannelNaming string

const (
	ChannelNamingOriginal ChannelNaming = "original"
	ChannelNamingCallsign ChannelNaming = "callsign"
)

type CacheBackend string

const (
	CacheBackendFile   CacheBackend = "file"
	CacheBackendSQLite CacheBackend = "sqlite"
	CacheBackendRedis  CacheBackend = "redis"
)

const (
	DefaultBaseURL   = "https://tvlistings.gracenote.com/api/grid"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// DefaultSettings returns the settings used when no file and no flags are given.
func DefaultSettings() Settings {
	return Settings{
		Listings: ListingsSettings{
			AffiliateID:  "gapzap",
			Country:      "USA",
			Device:       "-",
			HeadendID:    "lineupId",
			IsOverride:   true,
			LanguageCode: "en",
			Timespan:     3,
			UserID:       "-",
			BaseURL:      DefaultBaseURL,
			UserAgent:    DefaultUserAgent,
		},
		Fetch: FetchSettings{Days: 7, DelaySeconds: 5, ChannelNaming: ChannelNamingOriginal},
		Cache: CacheSettings{
			Backend:           CacheBackendFile,
			Directory:         "cache",
			ExpiryHours:       24,
			HoldHours:         72,
			Retries:           1,
			RetryDelaySeconds: 2,
			Redis:             RedisConfig{Addr: "localhost:6379", KeyPrefix: "zap2xml:"},
		},
		Output: OutputSettings{Path: "xmltv.xml"},
		Log:    LogConfig{Level: "info", MaxSize: 10, MaxAge: 14, MaxBackups: 3},
	}
}

// Validate checks the settings for values the run cannot work with.
func (s Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Listings.PostalCode) == "" {
		problems = append(problems, "postal code is required")
	}
	if s.Listings.Timespan <= 0 {
		problems = append(problems, fmt.Sprintf("timespan must be positive, got %d", s.Listings.Timespan))
	}
	if s.Fetch.Days <= 0 {
		problems = append(problems, fmt.Sprintf("fetch days must be positive, got %d", s.Fetch.Days))
	}
	if s.Fetch.DelaySeconds < 0 {
		problems = append(problems, fmt.Sprintf("delay must not be negative, got %d", s.Fetch.DelaySeconds))
	}
	switch s.Fetch.ChannelNaming {
	case ChannelNamingOriginal, ChannelNamingCallsign:
	default:
		problems = append(problems, fmt.Sprintf("unknown channel naming %q (want original or callsign)", s.Fetch.ChannelNaming))
	}
	switch s.Cache.Backend {
	case CacheBackendFile, CacheBackendSQLite:
	case CacheBackendRedis:
		if strings.TrimSpace(s.Cache.Redis.Addr) == "" {
			problems = append(problems, "redis address is required for the redis cache backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown cache backend %q (want file, sqlite or redis)", s.Cache.Backend))
	}
	if s.Cache.Retries < 1 {
		problems = append(problems, "cache retries must be at least 1")
	}
	if strings.TrimSpace(s.Output.Path) == "" {
		problems = append(problems, "output path is required")
	}
	if _, err := ParseLogLevel(s.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Delay is the pause between two network fetches.
func (s Settings) Delay() time.Duration {
	return time.Duration(s.Fetch.DelaySeconds) * time.Second
}

// CacheExpiry returns how long a cached response is served without revalidation.
func (s Settings) CacheExpiry() time.Duration {
	return time.Duration(s.Cache.ExpiryHours) * time.Hour
}

// CacheHold returns the age after which cached responses are evicted.
func (s Settings) CacheHold() time.Duration {
	return time.Duration(s.Cache.HoldHours) * time.Hour
}

// Manager loads and saves Settings from a file. Files ending in .yaml or
// .yml are YAML, everything else is JSON.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) isYAML() bool {
	switch strings.ToLower(filepath.Ext(m.path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// EnsureDir creates the directory holding the settings file.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file or creates it with defaults if missing.
// Fields absent from the file keep their default values.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}

	s := DefaultSettings()
	if m.isYAML() {
		err = yaml.Unmarshal(data, &s)
	} else {
		err = json.NewDecoder(bytes.NewReader(data)).Decode(&s)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("decode %s: %w", m.path, err)
	}

	s.Listings.BaseURL = strings.TrimSpace(s.Listings.BaseURL)
	if s.Listings.BaseURL == "" {
		s.Listings.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(s.Listings.UserAgent) == "" {
		s.Listings.UserAgent = DefaultUserAgent
	}
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if m.isYAML() {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
