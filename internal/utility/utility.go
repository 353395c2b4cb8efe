package utility

import (
	"fmt"
	"math/rand/v2"
)

// RandomColorHex returns a #rrggbb colour whose channels stay clear of pure
// black and white so captions remain readable on the display surfaces.
func RandomColorHex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(), channel(), channel())
}

func channel() int {
	return 4 + rand.IntN(248)
}
