package querycache

import "time"

// Options control freshness, expiry, and retry for one Get call. Zero values
// fall back to the defaults below.
type Options struct {
	// StaleAfter is how long a value is served without revalidation.
	StaleAfter time.Duration
	// ExpireAfter is how long a value is servable at all; past it the entry
	// behaves as a fresh miss and may be evicted once unobserved.
	ExpireAfter time.Duration
	// MaxRetries is the number of retries after the first failed attempt.
	// Zero falls back to the default; negative disables retries.
	MaxRetries int
	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration
	// Enabled gates fetching; a disabled Get only reads whatever is cached.
	Enabled bool
}

const (
	defaultStaleAfter  = 5 * time.Minute
	defaultExpireAfter = 10 * time.Minute
	defaultMaxRetries  = 2
	defaultRetryDelay  = 250 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaultStaleAfter
	}
	if o.ExpireAfter <= 0 {
		o.ExpireAfter = defaultExpireAfter
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	} else if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}

// Named defaults per resource kind.
var (
	// WeatherCurrentOptions: 5 min fresh, 10 min servable.
	WeatherCurrentOptions = Options{StaleAfter: 5 * time.Minute, ExpireAfter: 10 * time.Minute, MaxRetries: 2, Enabled: true}

	// WeatherForecastOptions: 10 min fresh, 30 min servable.
	WeatherForecastOptions = Options{StaleAfter: 10 * time.Minute, ExpireAfter: 30 * time.Minute, MaxRetries: 2, Enabled: true}

	// AnalysisOptions: AI summaries, 5 min fresh, 10 min servable.
	AnalysisOptions = Options{StaleAfter: 5 * time.Minute, ExpireAfter: 10 * time.Minute, MaxRetries: 2, Enabled: true}

	// VideoOptions: video lists, 15 min fresh, 30 min servable.
	VideoOptions = Options{StaleAfter: 15 * time.Minute, ExpireAfter: 30 * time.Minute, MaxRetries: 2, Enabled: true}
)
