// Package ksid generates k-sortable 63-bit IDs: a 10µs timestamp in the high
// bits and a slice counter in the low bits. IDs created later always compare
// greater, and the string form sorts the same way for IDs of equal length.
package ksid

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ID is a k-sortable identifier. The zero value means "no ID".
type ID int64

const (
	// epoch is 2026-01-01T00:00:00Z in 10µs ticks.
	epoch = 176722560000000

	// sliceBits is the width of the per-tick counter.
	sliceBits = 12
	sliceMask = 1<<sliceBits - 1

	// idEncodedLen is the longest possible encoded ID (13 base32 digits
	// cover 63 bits).
	idEncodedLen = 13
)

// alphabet is base32hex: digit order matches numeric order.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUV"

var digitValue = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := range len(alphabet) {
		m[alphabet[i]] = int8(i)
	}
	return m
}()

var (
	idMu             sync.Mutex
	idLastTicks      int64
	idLastSlice      int
	idInstance       int
	idTotalInstances = 1
)

// InitIDSlice partitions the slice space across cooperating instances, so
// several processes can generate IDs without collisions. Instance numbers run
// from 0 to totalInstances-1.
func InitIDSlice(instance, totalInstances int) error {
	if totalInstances < 1 || totalInstances > sliceMask+1 {
		return fmt.Errorf("totalInstances %d out of range [1, %d]", totalInstances, sliceMask+1)
	}
	if instance < 0 || instance >= totalInstances {
		return fmt.Errorf("instance %d out of range [0, %d)", instance, totalInstances)
	}
	idMu.Lock()
	idInstance = instance
	idTotalInstances = totalInstances
	idMu.Unlock()
	return nil
}

// NewID returns a new ID, strictly greater than any previous one from this
// process.
func NewID() ID {
	idMu.Lock()
	defer idMu.Unlock()
	ticks := time.Now().UnixMicro()/10 - epoch
	if ticks < idLastTicks {
		// Clock went backwards; keep counting in the last interval.
		ticks = idLastTicks
	}
	slice := idInstance
	if ticks == idLastTicks {
		slice = idLastSlice + idTotalInstances
		if slice > sliceMask {
			// Interval exhausted; borrow from the next one.
			ticks++
			slice = idInstance
		}
	}
	idLastTicks = ticks
	idLastSlice = slice
	return newIDFromParts(ticks, slice)
}

func newIDFromParts(ticks int64, slice int) ID {
	return ID(ticks<<sliceBits | int64(slice))
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id == 0
}

// Time returns the creation time, at 10µs resolution.
func (id ID) Time() time.Time {
	ticks := int64(id) >> sliceBits
	return time.UnixMicro((ticks + epoch) * 10)
}

// Slice returns the per-tick counter.
func (id ID) Slice() int {
	return int(id & sliceMask)
}

// Compare orders two IDs: -1, 0 or 1.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	}
	return 0
}

// String encodes the ID in base32hex without leading zeros. Zero encodes as
// "0".
func (id ID) String() string {
	v := uint64(id)
	buf := [idEncodedLen]byte{}
	i := idEncodedLen
	for {
		i--
		buf[i] = alphabet[v&31]
		v >>= 5
		if v == 0 {
			break
		}
	}
	return string(buf[i:])
}

// DecodeID reverses String. The empty string decodes to zero.
func DecodeID(s string) (ID, error) {
	if len(s) > idEncodedLen {
		return 0, errInvalidID
	}
	// 63 bits is 12 full digits plus 3 bits in the leading one.
	if len(s) == idEncodedLen && s[0] > '7' {
		return 0, errInvalidID
	}
	var v uint64
	for i := range len(s) {
		d := digitValue[s[i]]
		if d < 0 {
			return 0, errInvalidID
		}
		v = v<<5 | uint64(d)
	}
	return ID(v), nil
}

// Parse decodes an ID from its string form, rejecting the empty string.
func Parse(s string) (ID, error) {
	if s == "" {
		return 0, errInvalidID
	}
	return DecodeID(s)
}

// MarshalJSON encodes the ID as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON decodes the ID from a JSON string.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errInvalidID
	}
	v, err := DecodeID(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

var errInvalidID = errors.New("invalid ID")
