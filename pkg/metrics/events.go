package metrics

import (
	"context"
)

// Custom event names reported by the ledger
const (
	TransactionProcessedEventName = "TransactionProcessed"
	InstructionFailedEventName    = "InstructionFailed"
	AirdropCreditedEventName      = "AirdropCredited"
)

// RecordEvent records a custom event. It is a no-op without an application
// in ctx.
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if app := applicationFrom(ctx); app != nil {
		app.RecordCustomEvent(eventName, kvPairs)
	}
}
