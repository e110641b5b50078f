package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber returns ORD-YYYYMMDD-HHMMSS-mmm-RRRR. The random suffix
// keeps collisions rare; the orders table enforces uniqueness.
func GenerateOrderNumber() string {
	return orderNumberAt(time.Now().UTC())
}

func orderNumberAt(now time.Time) string {
	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fallback: time-based entropy
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf("ORD-%s-%03d-%04d", datePart, millis, n.Int64())
}
