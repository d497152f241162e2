package vecsync

import "time"

// LogEntry mirrors a single row in vec_shadow_log.
type LogEntry struct {
	DatasetID   string
	ShadowTable string
	SCN         int64
	Op          string
	DocumentID  string
	Payload     []byte
	CreatedAt   time.Time
}

// Log operations written by the triggers.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// payload is the JSON document snapshot carried by a log entry.
type payload struct {
	DatasetID string  `json:"dataset_id"`
	ID        string  `json:"id"`
	Parent    *string `json:"parent"`
	Fields    *string `json:"fields"`
	Archived  int     `json:"archived"`
}

// SyncState describes the latest cursor applied by a named listener.
// It corresponds to rows in vec_sync_state.
type SyncState struct {
	Listener  string
	Cursor    string
	UpdatedAt time.Time
}

// Config captures the settings of a shadow table source.
type Config struct {
	// DatasetID identifies the dataset slice being synchronized.
	DatasetID string

	// ShadowTable is the unqualified shadow table name (e.g. "shadow_docs").
	// SQLite rejects qualified names inside trigger bodies.
	ShadowTable string

	// LogTable and SeqTable default to DefaultLogTable and DefaultSeqTable.
	LogTable string
	SeqTable string

	// BatchSize controls how many log entries are read per FetchChanged call.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.LogTable == "" {
		c.LogTable = DefaultLogTable
	}
	if c.SeqTable == "" {
		c.SeqTable = DefaultSeqTable
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
}
