// Package cursor implements the opaque keyset-pagination token shared by
// every list endpoint. A token is "<sortKey>:<tiebreak>", where sortKey is a
// monotonic numeric value (usually an epoch timestamp) and tiebreak is the
// row id that breaks ties between equal sort keys.
package cursor

import (
	"strconv"
	"strings"
)

type Cursor struct {
	SortKey  int64
	Tiebreak uint
}

func Encode(sortKey int64, tiebreak uint) string {
	return strconv.FormatInt(sortKey, 10) + ":" + strconv.FormatUint(uint64(tiebreak), 10)
}

// Decode parses a cursor token. Malformed tokens mean "no cursor": pagination
// failures degrade to the first page, never to an error surfaced to the
// caller.
func Decode(token string) (Cursor, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return Cursor{}, false
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Cursor{}, false
	}

	sortKey, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}
	tiebreak, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || tiebreak == 0 {
		return Cursor{}, false
	}

	return Cursor{SortKey: sortKey, Tiebreak: uint(tiebreak)}, true
}
