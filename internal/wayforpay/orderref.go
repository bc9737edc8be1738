package wayforpay

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const orderRefPrefix = "SUB"

// NewOrderReference issues a provider-visible order reference. The layout
// <prefix>_<userID>_<stamp> is a wire contract: inbound events carry only
// the reference back, and the user id is recovered by position. The stamp
// is nanosecond-resolution so two near-simultaneous purchases by the same
// user cannot collide.
func NewOrderReference(userID int64) string {
	return fmt.Sprintf("%s_%d_%d", orderRefPrefix, userID, time.Now().UnixNano())
}

// UserIDFromOrderReference recovers the user id encoded in an order
// reference issued by NewOrderReference.
func UserIDFromOrderReference(ref string) (int64, error) {
	parts := strings.Split(ref, "_")
	if len(parts) < 3 {
		return 0, fmt.Errorf("malformed order reference %q", ref)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed order reference %q: %w", ref, err)
	}
	return userID, nil
}
