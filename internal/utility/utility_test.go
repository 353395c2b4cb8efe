package utility

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomColorHex_Format(t *testing.T) {
	hexPattern := regexp.MustCompile(`^#[0-9a-f]{6}$`)

	for range 100 {
		color := RandomColorHex()
		assert.Regexp(t, hexPattern, color)
	}
}

func TestRandomColorHex_ChannelBounds(t *testing.T) {
	for range 200 {
		color := RandomColorHex()
		require.Len(t, color, 7)
		for i := 1; i < 7; i += 2 {
			v, err := strconv.ParseUint(color[i:i+2], 16, 8)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, v, uint64(4), "channel of %q too dark", color)
			assert.LessOrEqual(t, v, uint64(251), "channel of %q too bright", color)
		}
	}
}
