package diagrams

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idSuffixLen = 7

// NewID returns an identifier of the form diagram-<unix ms>-<7 base-36 chars>.
// The suffix is drawn from a random UUID, so two IDs minted in the same
// millisecond are distinct with overwhelming probability. Callers that hold
// the collection still check for collisions.
func NewID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < idSuffixLen {
		suffix = strings.Repeat("0", idSuffixLen-len(suffix)) + suffix
	}
	suffix = suffix[len(suffix)-idSuffixLen:]
	return "diagram-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}
