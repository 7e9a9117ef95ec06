// Package core provides the expense domain types and the pure functions that
// work on them.
//
// This file contains the strict parser for the record command. Parsing is
// all-or-nothing: text either matches the grammar exactly or is rejected.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// RecordCommand is the command token that introduces an expense.
const RecordCommand = "/new"

// expenseRx matches "/new <amount> for <description>". The command may carry
// the "@botname" suffix chat clients add in group chats.
var expenseRx = regexp.MustCompile(`(?i)^/new(?:@\w+)?\s+(\d+(?:\.\d{1,2})?)\s+for\s+(.+)$`)

// ParseExpense converts the raw command text into an ExpenseDraft.
//
// The amount must be digits with an optional dot and one or two fractional
// digits, no larger than MaxAmount; the keyword "for" is case-insensitive; the description is the
// trimmed remainder. Any deviation returns an error wrapping ErrRejected.
//
// Examples:
//
//	ParseExpense("/new 15.75 for coffee at Starbucks") -> {15.75, "coffee at Starbucks"}
//	ParseExpense("/new 5 for tea")                     -> {5, "tea"}
//	ParseExpense("/new 5 coffee")                      -> ErrRejected
func ParseExpense(text string) (ExpenseDraft, error) {
	text = strings.TrimSpace(text)

	m := expenseRx.FindStringSubmatch(text)
	if m == nil {
		return ExpenseDraft{}, fmt.Errorf("%w: does not match %s <amount> for <description>", ErrRejected, RecordCommand)
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return ExpenseDraft{}, fmt.Errorf("%w: amount %q: %v", ErrRejected, m[1], err)
	}
	if err := ValidateAmount(amount); err != nil {
		return ExpenseDraft{}, fmt.Errorf("%w: amount %q: %v", ErrRejected, m[1], err)
	}

	description := strings.TrimSpace(m[2])
	if description == "" {
		return ExpenseDraft{}, fmt.Errorf("%w: empty description", ErrRejected)
	}

	return ExpenseDraft{
		Amount:      amount,
		Description: description,
		Category:    DefaultCategory,
	}, nil
}
