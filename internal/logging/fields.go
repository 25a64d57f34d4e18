package logging

const (
	// FieldComponent names the subsystem that emitted the record.
	FieldComponent = "component"
	// FieldKind carries a record kind such as Grade or Meeting.
	FieldKind = "kind"
	// FieldRecordID carries the identifier of a single record.
	FieldRecordID = "record_id"
	// FieldResource carries the upstream resource name of a fetch or parse.
	FieldResource = "resource"
	// FieldTarget carries the full fetch target.
	FieldTarget = "target"
	// FieldRunID correlates every record emitted by one resolution run.
	FieldRunID = "run_id"
	// FieldSnapshotID identifies an archived store snapshot.
	FieldSnapshotID = "snapshot_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCount carries a cardinality (records parsed, placeholders resolved).
	FieldCount = "count"
)
