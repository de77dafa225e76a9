package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrollbackBounded(t *testing.T) {
	sb := NewScrollback(3)
	for _, line := range []string{"a\n", "b\n", "c\n", "d\n", "e\n"} {
		sb.Write([]byte(line))
	}

	assert.Equal(t, 3, sb.Lines())
	assert.Equal(t, "c\nd\ne\n", string(sb.Snapshot()))
}

func TestScrollbackPartialLines(t *testing.T) {
	sb := NewScrollback(10)
	sb.Write([]byte("hel"))
	sb.Write([]byte("lo\nwor"))

	assert.Equal(t, 1, sb.Lines())
	assert.Equal(t, "hello\nwor", string(sb.Snapshot()))
}

func TestScrollbackForcesLongLine(t *testing.T) {
	sb := NewScrollback(2)
	sb.Write([]byte(strings.Repeat("x", maxPartial)))

	assert.Equal(t, 1, sb.Lines())
	assert.Len(t, sb.Snapshot(), maxPartial)
}

func TestScrollbackMinimumCapacity(t *testing.T) {
	sb := NewScrollback(0)
	sb.Write([]byte("a\nb\n"))
	assert.Equal(t, "b\n", string(sb.Snapshot()))
}
