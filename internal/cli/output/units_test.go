package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.4 MiB", Bytes(1474560))
	assert.Equal(t, "2.0 KiB", KiBytes(2))
}

func TestGeometry(t *testing.T) {
	assert.Equal(t, "2,880 x 512 B (1.4 MiB)", Geometry(2880, 512))
}

func TestAgo(t *testing.T) {
	assert.Equal(t, "never", Ago(time.Time{}))
	assert.Contains(t, Ago(time.Now().Add(-3*time.Minute)), "ago")
}

func TestMillis(t *testing.T) {
	assert.Equal(t, "1,500 ms", Millis(1500*time.Millisecond))
	assert.Equal(t, "2.5 ms", Millis(2500*time.Microsecond))
}
