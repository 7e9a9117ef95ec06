package services

import "ledgerbot/internal/core"

// Outcome classifies the result of handling one user interaction.
type Outcome int

const (
	OutcomeRecorded Outcome = iota + 1
	OutcomeRejected
	OutcomeStorageFailure
	OutcomeSummary
	OutcomeEmpty
	OutcomeCancelled
	OutcomeIgnored
)

var outcomeNames = map[Outcome]string{
	OutcomeRecorded:       "recorded",
	OutcomeRejected:       "rejected",
	OutcomeStorageFailure: "storage_failure",
	OutcomeSummary:        "summary",
	OutcomeEmpty:          "empty",
	OutcomeCancelled:      "cancelled",
	OutcomeIgnored:        "ignored",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// User-facing texts.
const (
	RejectedMessage = "I couldn't understand that. Please use the exact format: `/new <amount> for <description>`\n" +
		"For example: `/new 15.75 for coffee at Starbucks`"
	InsertFailedMessage  = "An error occurred while saving your expense. Please try again."
	SummaryFailedMessage = "An error occurred while fetching your summary. Please try again."
	OfferPrompt          = "Which month's expense summary would you like to see? (Records are only available for the past 3 months.)"
	CancelledMessage     = "Expense summary request cancelled."
	IgnoredMessage       = "This selection is no longer active. Send /summary to start again."
	UnknownCommand       = "Sorry, I didn't understand that command."
)

// Reply is what the gateway sends back. Err carries the diagnostic cause for
// logs and is never shown to the user.
type Reply struct {
	Outcome Outcome
	Text    string
	Record  *core.ExpenseRecord
	Err     error
}

// Failed reports whether the interaction hit a backend failure.
func (r Reply) Failed() bool {
	return r.Outcome == OutcomeStorageFailure
}
