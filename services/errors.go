package services

import "errors"

// Failure taxonomy for the processing pipeline. Per-source and per-clip
// failures are skipped at the orchestrator boundary; only batch-wide
// preconditions abort a run.
var (
	// ErrSourceUnavailable: an asset could not be downloaded. Skip the source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMediaUnreadable: a file could not be decoded or probed. Skip it.
	ErrMediaUnreadable = errors.New("media unreadable")

	// ErrNoAudio: the clip has no audio stream. Not a failure; tempo analysis
	// degrades to a null result.
	ErrNoAudio = errors.New("no audio stream")

	// ErrTaggingTransient: a retryable tagging failure (timeout, malformed
	// model output, 5xx).
	ErrTaggingTransient = errors.New("transient tagging failure")

	// ErrTaggingFatal: quota or auth failure. Remaining tagging calls for the
	// run are aborted; completed work is kept.
	ErrTaggingFatal = errors.New("fatal tagging failure")

	// ErrAlreadyRunning: only one pipeline run may be active process-wide.
	ErrAlreadyRunning = errors.New("pipeline run already in progress")

	// ErrIntegrityFault: a persisted record references a media file that no
	// longer exists. Surfaced to the operator, never auto-repaired.
	ErrIntegrityFault = errors.New("record references missing media file")
)
