package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStation is the standardized structured logging key for station identifiers.
	FieldStation = "station_id"
	// FieldStationName is the standardized structured logging key for station display names.
	FieldStationName = "station"
	// FieldTrack is the standardized structured logging key for track identifiers.
	FieldTrack = "track_id"
	// FieldDetection is the standardized structured logging key for detection identifiers.
	FieldDetection = "detection_id"
	// FieldMethod is the standardized structured logging key for identification methods.
	FieldMethod = "method"
	// FieldConfidence is the standardized structured logging key for match confidence.
	FieldConfidence = "confidence"
	// FieldProvider is the standardized structured logging key for external provider names.
	FieldProvider = "provider"
	// FieldChunk is the standardized structured logging key for chunk sequence numbers.
	FieldChunk = "chunk_seq"
	// FieldCorrelationID is the standardized structured logging key for per-cycle correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log records with a machine-scannable event name.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step for operators investigating a failure.
	FieldErrorHint = "error_hint"
)
