package mcp

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/termfx/pforge/core"
)

const (
	defaultPageSize = 64
	maxPageSize     = 256
)

type listParams struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// decodeListParams reads the optional cursor/limit pair from a list
// request. Absent params mean the first page at the default size.
func decodeListParams(raw json.RawMessage) (listParams, error) {
	var params listParams
	if len(raw) == 0 || string(raw) == "null" {
		return params, nil
	}
	err := json.Unmarshal(raw, &params)
	return params, err
}

// paginate returns one window of items. Cursors are opaque to clients:
// a base64-wrapped offset into the listing. The next cursor is nil on the
// final page.
func paginate[T any](items []T, cursor string, limit int) ([]T, *string, error) {
	size := limit
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}

	offset, err := decodeCursor(cursor, len(items))
	if err != nil {
		return nil, nil, err
	}

	end := offset + size
	if end >= len(items) {
		return items[offset:], nil, nil
	}

	next := encodeCursor(end)
	return items[offset:end], &next, nil
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeCursor(cursor string, bound int) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, core.Wrap(core.KindValidation, "malformed cursor", err)
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 || offset > bound {
		return 0, core.Errorf(core.KindValidation, "cursor out of range")
	}
	return offset, nil
}
