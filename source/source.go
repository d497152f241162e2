package source

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"github.com/viant/vecindex/vector"
)

// ErrNotFound is returned by FetchFull when the document does not exist.
// It matches vector.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("source: document %w", vector.ErrNotFound)

// Cursor is an opaque change-feed position. The empty cursor means "from the
// beginning".
type Cursor string

// Document is a unit of source content.
type Document struct {
	ID     string
	Fields map[string]any
	Parent string
	// Deleted marks a tombstone emitted by a change feed.
	Deleted bool
}

// Text renders the field under key as text. Strings are returned as is,
// other scalars through fmt and nested values as JSON. ok is false when the
// field is missing or renders empty.
func (d Document) Text(key string) (text string, ok bool) {
	v, found := d.Fields[key]
	if !found || v == nil {
		return "", false
	}
	switch actual := v.(type) {
	case string:
		text = actual
	case []byte:
		text = string(actual)
	case bool:
		text = strconv.FormatBool(actual)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		text = fmt.Sprint(actual)
	default:
		data, err := json.Marshal(actual)
		if err != nil {
			text = fmt.Sprint(actual)
		} else {
			text = string(data)
		}
	}
	return text, text != ""
}

// Clone returns a copy whose Fields map can be mutated independently.
func (d Document) Clone() Document {
	d.Fields = maps.Clone(d.Fields)
	return d
}

// Source is a pull-based document collection.
type Source interface {
	// FetchChanged returns documents created, updated or deleted after since,
	// together with the cursor to pass on the next call.
	FetchChanged(ctx context.Context, since Cursor) ([]Document, Cursor, error)
	// FetchFull returns the current document, or ErrNotFound.
	FetchFull(ctx context.Context, id string) (Document, error)
}

// Subscriber is implemented by sources that push changes. The returned
// channel is closed when ctx is done or the subscription fails.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Document, error)
}
