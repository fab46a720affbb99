package domain

import "time"

// Outcome of a finished conversion.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ConversionRecord describes a finished conversion without its content.
type ConversionRecord struct {
	RequestID string
	Endpoint  string
	HTMLBytes int
	PDFBytes  int
	Duration  time.Duration
	Outcome   Outcome
	ErrorCode string
	CreatedAt time.Time
}
