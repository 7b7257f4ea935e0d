package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureHostStats(t *testing.T) {
	freezeClock(t, fixedNow)
	stats := CaptureHostStats(context.Background(), t.TempDir())
	assert.Equal(t, fixedNow, stats.CapturedAt)
	assert.Positive(t, stats.SystemMemoryTotal)
	assert.Positive(t, stats.DiskTotalBytes)
}

func TestMisconfiguredIsServerError(t *testing.T) {
	err := ErrMisconfigured("CLOSED status not configured")
	assertKind(t, err, KindMisconfigured)
	serr, _ := AsServiceError(err)
	assert.Equal(t, 500, serr.Status)
}
