package fetch

import (
	"context"
	"time"

	"github.com/lysyi3m/tube-comb/app/mirror"
)

// UserAgentChrome is the default browser User-Agent. Several mirrors reject
// requests without one.
const UserAgentChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const (
	DefaultAPIPrefix      = "/api/v1"
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 8 * time.Second
	DefaultBudget         = 10 * time.Second

	maxBodyBytes = 16 << 20
)

type Options struct {
	APIPrefix      string
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Budget         time.Duration
	Observer       Observer
}

// Attempt is one GET against one mirror inside a race
type Attempt struct {
	URL       string
	Mirror    string
	Category  mirror.Category
	StartedAt time.Time
}

// Payload is the winning provider's body, decoded into generic JSON values
// (numbers kept as json.Number).
type Payload struct {
	Mirror string
	URL    string
	Body   []byte
	Data   any
}

// Source is a non-HTTP provider that can take part in a race next to the mirrors
type Source interface {
	Name() string
	Fetch(ctx context.Context) (any, error)
}

type Result string

const (
	ResultWon       Result = "won"
	ResultFailed    Result = "failed"
	ResultAbandoned Result = "abandoned"
)

type Outcome struct {
	Mirror   string
	Result   Result
	Status   int
	Err      string
	Duration time.Duration
}

// RaceReport summarizes a resolved race. Attempts still in flight at the
// resolution point are reported as abandoned.
type RaceReport struct {
	ID        string
	Category  mirror.Category
	Path      string
	Winner    string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []Outcome
}

// Observer receives one report per race. It is called on the racing
// goroutine and must not block.
type Observer interface {
	ObserveRace(report RaceReport)
}
