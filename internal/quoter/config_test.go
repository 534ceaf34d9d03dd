package quoter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryOptionsBackoffClampsToRange(t *testing.T) {
	o := RetryOptions{MinTimeoutMs: 100, MaxTimeoutMs: 500}

	assert.Equal(t, 100*time.Millisecond, o.backoff(0))
	assert.Equal(t, 200*time.Millisecond, o.backoff(1))
	assert.Equal(t, 500*time.Millisecond, o.backoff(5))
}

func TestRetryOptionsBackoffDefaultsFloor(t *testing.T) {
	o := RetryOptions{}
	assert.Equal(t, 100*time.Millisecond, o.backoff(0))
}
