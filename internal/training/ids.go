package training

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const clientIDPrefix = "client"

// NewID returns a unique identifier for a new record. It delegates to a
// cryptographically strong random UUID; should UUID generation ever fail,
// it falls back to prefix + timestamp + random suffix. The fallback is not
// collision-free, only collision-unlikely for a single user with modest
// record counts.
func NewID(prefix string) string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), rand.Intn(10000))
}
