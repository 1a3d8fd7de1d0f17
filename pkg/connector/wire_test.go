package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWireValue(t *testing.T) {
	ts := time.Date(2017, 3, 1, 12, 30, 0, 500, time.UTC)
	assert.Equal(t, "2017-03-01T12:30:00.0000005Z", wireValue(ts))
	assert.Equal(t, int32(5), wireValue(int32(5)))
	assert.Equal(t, "x", wireValue("x"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "unknown", State(42).String())
}
