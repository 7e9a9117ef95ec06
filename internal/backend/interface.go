package backend

import (
	"context"

	"ledgerbot/internal/sheets"
)

// CleanupFunc releases resources held by a sink.
type CleanupFunc func() error

// SinkResult contains the mirror sink and its optional cleanup function.
type SinkResult struct {
	Writer  sheets.RecordWriter
	Cleanup CleanupFunc
}

// Factory creates mirror sinks based on configuration.
type Factory interface {
	CreateSink(ctx context.Context, config Config) (*SinkResult, error)
}

// Config holds configuration for sink creation.
type Config struct {
	Type SinkType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// SinkType names where recorded expenses are mirrored.
type SinkType string

const (
	SheetsSink SinkType = "sheets"
	MemorySink SinkType = "memory"
)

func (st SinkType) String() string {
	return string(st)
}

// IsValid returns true if the sink type is known.
func (st SinkType) IsValid() bool {
	switch st {
	case SheetsSink, MemorySink:
		return true
	default:
		return false
	}
}
