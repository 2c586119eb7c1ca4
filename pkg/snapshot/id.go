package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	snapshotPrefix = "snapshots/"
	snapshotSuffix = ".json"
	indexKey       = "caretaker/history.json"
)

// ID identifies a snapshot: milliseconds since the Unix epoch at save time,
// bumped past the previous id when the clock has not advanced.
type ID uint64

// Key is the blob key the snapshot payload is stored under. The id is
// zero-padded so lexical order matches numeric order.
func (id ID) Key() string {
	return fmt.Sprintf("%s%020d%s", snapshotPrefix, uint64(id), snapshotSuffix)
}

// Time converts the id back to its wall-clock instant.
func (id ID) Time() time.Time { return time.UnixMilli(int64(id)).UTC() }

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseKey extracts the id from a snapshot blob key.
func ParseKey(key string) (ID, bool) {
	if !strings.HasPrefix(key, snapshotPrefix) || !strings.HasSuffix(key, snapshotSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(key, snapshotPrefix), snapshotSuffix)
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return ID(n), true
}

// ParseID parses a decimal id as typed on a command line.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return ID(n), nil
}

// idClock mints strictly increasing ids.
type idClock struct {
	now  func() time.Time
	last ID
}

func (c *idClock) next() ID {
	id := ID(c.now().UnixMilli())
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}

// observe raises the floor so ids minted later stay above every known id.
func (c *idClock) observe(ids ...ID) {
	for _, id := range ids {
		if id > c.last {
			c.last = id
		}
	}
}
