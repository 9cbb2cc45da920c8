package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())
	c.Advance(31 * time.Minute)
	assert.Equal(t, start.Add(31*time.Minute), c.Now())
}

func TestOrReal(t *testing.T) {
	assert.IsType(t, RealClock{}, OrReal(nil))

	mock := NewMockClock(time.Unix(0, 0))
	assert.Same(t, mock, OrReal(mock))
}
