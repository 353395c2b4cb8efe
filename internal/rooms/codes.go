package rooms

import (
	"captioncast/internal/errs"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"
)

const (
	alphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomLength = 9
	maxIDLength  = 64
)

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// GenerateID returns a random base36 part followed by the creation time in
// base36, which keeps ids unique across restarts.
func GenerateID() (string, error) {
	code := make([]byte, randomLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code) + strconv.FormatInt(time.Now().UnixMilli(), 36), nil
}

// ValidateID checks a caller supplied room id.
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength || !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", errs.ErrInvalidID, id)
	}
	return nil
}
