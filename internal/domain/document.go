package domain

import "time"

// Document is an uploaded statement or receipt file staged for parsing.
type Document struct {
	ID         string
	UserID     int64
	Filename   string
	MIMEType   string
	GCSURI     string
	SizeBytes  int64
	UploadedAt time.Time
}

// ParsingRunStatus tracks the lifecycle of one parse attempt.
type ParsingRunStatus string

const (
	RunRunning   ParsingRunStatus = "RUNNING"
	RunSucceeded ParsingRunStatus = "SUCCESS"
	RunFailed    ParsingRunStatus = "FAILED"
)

// ParsingRun is the audit record for one attempt to parse a Document.
// A document may accumulate several runs; only the latest successful
// one represents its transactions.
type ParsingRun struct {
	ID         string
	DocumentID string
	Status     ParsingRunStatus
	Error      string
	Created    int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}
