package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/tube-comb/app/fetch"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Server and storage
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	MirrorsFile    string `long:"mirrors-file" env:"MIRRORS_FILE" default:"./mirrors.yml" description:"YAML file listing mirror base URLs per category"`
	DBPath         string `long:"db-path" env:"DB_PATH" default:"./data/tube-comb.db" description:"SQLite database file for mirror telemetry"`
	WorkerCount    int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers"`
	ProbeInterval  int    `long:"probe-interval" env:"PROBE_INTERVAL" default:"300" description:"Mirror health probe interval in seconds"`
	StatsRetention int    `long:"stats-retention" env:"STATS_RETENTION" default:"168" description:"Hours of race and probe history to keep"`
	APIAccessKey   string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`
	AccessCode     string `long:"access-code" env:"ACCESS_CODE" default:"yuzu" description:"Access code for the gate"`

	// Upstream fetching
	UserAgent      string `long:"user-agent" env:"USER_AGENT" description:"User agent string for upstream requests (defaults to a desktop Chrome UA)"`
	APIPrefix      string `long:"api-prefix" env:"API_PREFIX" default:"/api/v1" description:"Path prefix of the mirror API"`
	ConnectTimeout int    `long:"connect-timeout" env:"CONNECT_TIMEOUT" default:"3" description:"Mirror connect timeout in seconds"`
	ReadTimeout    int    `long:"read-timeout" env:"READ_TIMEOUT" default:"8" description:"Mirror read timeout in seconds"`
	RaceBudget     int    `long:"race-budget" env:"RACE_BUDGET" default:"10" description:"Overall deadline of one race in seconds"`
	Region         string `long:"region" env:"REGION" default:"JP" description:"Default trending region"`
	SearchLibrary  bool   `long:"search-library" env:"SEARCH_LIBRARY" description:"Race the built-in search library alongside search mirrors"`

	// Outer collaborators
	StreamFormatsURL  string  `long:"stream-formats-url" env:"STREAM_FORMATS_URL" description:"Stream provider URL prefix for the format list (video ID is appended)"`
	StreamAdaptiveURL string  `long:"stream-adaptive-url" env:"STREAM_ADAPTIVE_URL" description:"Stream provider URL prefix for adaptive formats (video ID is appended)"`
	BBSURL            string  `long:"bbs-url" env:"BBS_URL" description:"Base URL of the BBS backend"`
	BBSPostRate       float64 `long:"bbs-post-rate" env:"BBS_POST_RATE" default:"1" description:"Sustained BBS posts per second"`
	BBSPostBurst      int     `long:"bbs-post-burst" env:"BBS_POST_BURST" default:"5" description:"BBS post burst size"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Tokyo)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	cfg, err := parse(nil)
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

// parse reads args (os.Args when nil) and the environment
func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	return &Cfg{
		Port:              raw.Port,
		MirrorsFile:       raw.MirrorsFile,
		DBPath:            raw.DBPath,
		WorkerCount:       raw.WorkerCount,
		ProbeInterval:     time.Duration(raw.ProbeInterval) * time.Second,
		StatsRetention:    time.Duration(raw.StatsRetention) * time.Hour,
		APIAccessKey:      raw.APIAccessKey,
		AccessCode:        raw.AccessCode,
		UserAgent:         cmp.Or(raw.UserAgent, fetch.UserAgentChrome),
		APIPrefix:         raw.APIPrefix,
		ConnectTimeout:    time.Duration(raw.ConnectTimeout) * time.Second,
		ReadTimeout:       time.Duration(raw.ReadTimeout) * time.Second,
		RaceBudget:        time.Duration(raw.RaceBudget) * time.Second,
		Region:            raw.Region,
		SearchLibrary:     raw.SearchLibrary,
		StreamFormatsURL:  raw.StreamFormatsURL,
		StreamAdaptiveURL: raw.StreamAdaptiveURL,
		BBSURL:            raw.BBSURL,
		BBSPostRate:       raw.BBSPostRate,
		BBSPostBurst:      raw.BBSPostBurst,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

func validate(raw *rawCfg) error {
	switch {
	case raw.WorkerCount < 1:
		return fmt.Errorf("worker-count must be at least 1, got %d", raw.WorkerCount)
	case raw.ProbeInterval < 1:
		return fmt.Errorf("probe-interval must be at least 1 second, got %d", raw.ProbeInterval)
	case raw.StatsRetention < 1:
		return fmt.Errorf("stats-retention must be at least 1 hour, got %d", raw.StatsRetention)
	case raw.ConnectTimeout < 1 || raw.ReadTimeout < 1 || raw.RaceBudget < 1:
		return fmt.Errorf("timeouts must be at least 1 second")
	case raw.AccessCode == "":
		return fmt.Errorf("access-code must not be empty")
	}
	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
