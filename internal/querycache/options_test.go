package querycache

import (
	"testing"
	"time"
)

func TestOptions_WithDefaults_ZeroValue(t *testing.T) {
	got := Options{}.withDefaults()
	if got.StaleAfter != defaultStaleAfter {
		t.Errorf("StaleAfter = %v, want %v", got.StaleAfter, defaultStaleAfter)
	}
	if got.ExpireAfter != defaultExpireAfter {
		t.Errorf("ExpireAfter = %v, want %v", got.ExpireAfter, defaultExpireAfter)
	}
	if got.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", got.MaxRetries, defaultMaxRetries)
	}
	if got.RetryDelay != defaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", got.RetryDelay, defaultRetryDelay)
	}
}

func TestOptions_WithDefaults_NegativeRetriesDisable(t *testing.T) {
	got := Options{MaxRetries: -1}.withDefaults()
	if got.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0 (retries disabled)", got.MaxRetries)
	}
}

func TestOptions_WithDefaults_ExplicitValuesKept(t *testing.T) {
	in := Options{
		StaleAfter:  time.Minute,
		ExpireAfter: 2 * time.Minute,
		MaxRetries:  5,
		RetryDelay:  time.Second,
	}
	got := in.withDefaults()
	if got.StaleAfter != in.StaleAfter || got.ExpireAfter != in.ExpireAfter ||
		got.MaxRetries != in.MaxRetries || got.RetryDelay != in.RetryDelay {
		t.Errorf("withDefaults() = %+v, want values preserved", got)
	}
}
