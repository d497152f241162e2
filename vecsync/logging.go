package vecsync

import (
	"fmt"
	"strings"
)

const (
	// DefaultLogTable is the change-log table that captures row-level SCN events.
	DefaultLogTable = "vec_shadow_log"

	// DefaultSeqTable stores the latest SCN per dataset.
	DefaultSeqTable = "vec_dataset_scn"

	// DefaultStateTable stores listener cursors.
	DefaultStateTable = "vec_sync_state"
)

// ShadowTableDDL returns the DDL of a dataset-aware document table. Fields
// hold the document's JSON object. The DDL is valid in SQLite and MySQL.
func ShadowTableDDL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    dataset_id VARCHAR(255) NOT NULL,
    id         VARCHAR(255) NOT NULL,
    parent     TEXT,
    fields     TEXT,
    archived   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY(dataset_id, id)
);`
}

// LogTableDDL returns the DDL of the change log populated by the triggers.
func LogTableDDL(table string) string {
	if table == "" {
		table = DefaultLogTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    dataset_id   VARCHAR(255) NOT NULL,
    shadow_table VARCHAR(255) NOT NULL,
    scn          INTEGER NOT NULL,
    op           TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    payload      BLOB NOT NULL,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(dataset_id, shadow_table, scn)
);`
}

// SeqTableDDL returns the DDL tracking the latest SCN per dataset.
func SeqTableDDL(table string) string {
	if table == "" {
		table = DefaultSeqTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    dataset_id VARCHAR(255) PRIMARY KEY,
    next_scn   INTEGER NOT NULL
);`
}

// StateTableDDL returns the DDL of the listener cursor table.
func StateTableDDL(table string) string {
	if table == "" {
		table = DefaultStateTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    listener   VARCHAR(255) PRIMARY KEY,
    position   TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

// SQLiteShadowLogTriggers returns the trigger DDL statements required to capture
// inserts, updates, and deletes against a shadow table into the log table using
// SQLite syntax. The payload is the row serialized with json_object.
func SQLiteShadowLogTriggers(shadowTable, seqTable, logTable string) []string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	base := sanitizeIdentifier(shadowTable)
	payload := func(alias string) string {
		return fmt.Sprintf(`json_object(
        'dataset_id', %[1]s.dataset_id,
        'id', %[1]s.id,
        'parent', %[1]s.parent,
        'fields', %[1]s.fields,
        'archived', %[1]s.archived
    )`, alias)
	}
	advance := func(alias string) string {
		// a conflict clause here would be replaced by the outer statement's
		return fmt.Sprintf(`INSERT INTO %[1]s(dataset_id, next_scn)
        SELECT %[2]s.dataset_id, 0
        WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE dataset_id = %[2]s.dataset_id);
    UPDATE %[1]s SET next_scn = next_scn + 1 WHERE dataset_id = %[2]s.dataset_id;`, seqTable, alias)
	}
	scnExpr := func(alias string) string {
		return fmt.Sprintf(`(SELECT next_scn FROM %s WHERE dataset_id = %s.dataset_id)`, seqTable, alias)
	}
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_%[2]s AFTER %[3]s ON %[4]s
BEGIN
    %[5]s
    INSERT INTO %[6]s(dataset_id, shadow_table, scn, op, document_id, payload)
    VALUES (
        %[7]s.dataset_id,
        '%[4]s',
        %[8]s,
        '%[9]s',
        %[7]s.id,
        %[10]s
    );
END;`, base, suffix, event, shadowTable, advance(alias), logTable, alias, scnExpr(alias), op, payload(alias))
	}
	return []string{
		trigger("ai", "INSERT", OpInsert, "NEW"),
		trigger("au", "UPDATE", OpUpdate, "NEW"),
		trigger("ad", "DELETE", OpDelete, "OLD"),
	}
}

// MySQLShadowLogTriggers returns AFTER INSERT/UPDATE/DELETE trigger definitions
// that populate the log table with JSON payloads and per-dataset SCNs. Callers
// are responsible for wrapping the statements with an appropriate DELIMITER
// when executing them.
func MySQLShadowLogTriggers(shadowTable, seqTable, logTable string) []string {
	if seqTable == "" {
		seqTable = DefaultSeqTable
	}
	if logTable == "" {
		logTable = DefaultLogTable
	}
	base := sanitizeIdentifier(shadowTable)
	payload := func(alias string) string {
		return fmt.Sprintf(`JSON_OBJECT(
        'dataset_id', %[1]s.dataset_id,
        'id', %[1]s.id,
        'parent', %[1]s.parent,
        'fields', %[1]s.fields,
        'archived', %[1]s.archived
    )`, alias)
	}
	advance := func(alias string) string {
		return fmt.Sprintf(`    INSERT INTO %[1]s(dataset_id, next_scn)
    VALUES (%[2]s.dataset_id, 1)
    ON DUPLICATE KEY UPDATE next_scn = next_scn + 1;
    SELECT next_scn INTO @vecsync_scn FROM %[1]s WHERE dataset_id = %[2]s.dataset_id;`, seqTable, alias)
	}
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER %[1]s_%[2]s AFTER %[3]s ON %[4]s
FOR EACH ROW
BEGIN
%[5]s
    INSERT INTO %[6]s(dataset_id, shadow_table, scn, op, document_id, payload)
    VALUES (
        %[7]s.dataset_id,
        '%[4]s',
        @vecsync_scn,
        '%[8]s',
        %[7]s.id,
        %[9]s
    );
END;`, base, suffix, event, shadowTable, advance(alias), logTable, alias, op, payload(alias))
	}
	return []string{
		trigger("ai", "INSERT", OpInsert, "NEW"),
		trigger("au", "UPDATE", OpUpdate, "NEW"),
		trigger("ad", "DELETE", OpDelete, "OLD"),
	}
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}
