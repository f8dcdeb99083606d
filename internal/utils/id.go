package utils

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	idMu sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewSampleID returns a ULID. IDs made in the same millisecond still sort in
// generation order, so the decision log can be replayed by primary key.
func NewSampleID(at time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at.UTC()), mono)
	if err != nil {
		// only possible if entropy overflows within one millisecond
		return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), cryptoRand.Reader).String()
	}
	return id.String()
}

// NewPositionID returns a random UUID for a new position.
func NewPositionID() string {
	return uuid.NewString()
}
