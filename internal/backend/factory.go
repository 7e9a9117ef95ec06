package backend

import (
	"context"
	"fmt"

	"ledgerbot/internal/log"
	"ledgerbot/internal/sheets/google"
	"ledgerbot/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new sink factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger}
}

// CreateSink implements Factory.CreateSink
func (f *DefaultFactory) CreateSink(ctx context.Context, config Config) (*SinkResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsSink:
		return f.createSheetsSink(ctx, config)
	case MemorySink:
		return f.createMemorySink()
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsSink(ctx context.Context, config Config) (*SinkResult, error) {
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets sink",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &SinkResult{Writer: client}, nil
}

func (f *DefaultFactory) createMemorySink() (*SinkResult, error) {
	f.logger.Info("Google Sheets disabled - mirroring to memory")
	return &SinkResult{Writer: memory.New()}, nil
}
