package cfg

import "time"

type Cfg struct {
	// Server and storage
	Port           string
	MirrorsFile    string
	DBPath         string
	WorkerCount    int
	ProbeInterval  time.Duration
	StatsRetention time.Duration
	APIAccessKey   string
	AccessCode     string

	// Upstream fetching
	UserAgent      string
	APIPrefix      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RaceBudget     time.Duration
	Region         string
	SearchLibrary  bool

	// Outer collaborators
	StreamFormatsURL  string
	StreamAdaptiveURL string
	BBSURL            string
	BBSPostRate       float64
	BBSPostBurst      int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
