package backend

import (
	"fmt"

	"ledgerbot/internal/config"
)

// FromAppConfig converts the application config to sink config. Sheets is
// chosen whenever a spreadsheet is configured.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sinkType := MemorySink
	if appConfig.SheetsEnabled() {
		sinkType = SheetsSink
	}

	return Config{
		Type:                     sinkType,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the sink configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid sink type: %s", c.Type)
	}

	if c.Type == SheetsSink {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets sink")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for sheets sink")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets sink")
		}
	}

	return nil
}

// SinkTypes returns all valid sink types
func SinkTypes() []SinkType {
	return []SinkType{SheetsSink, MemorySink}
}
