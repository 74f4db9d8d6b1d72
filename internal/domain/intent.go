package domain

import "strings"

// Intent is a normalized command derived from an inbound text event. The
// core services never see raw message text, only intents.
type Intent string

const (
	IntentHelp        Intent = "HELP"
	IntentStartBatch  Intent = "START_BATCH"
	IntentEndBatch    Intent = "END_BATCH"
	IntentQueryStatus Intent = "QUERY_STATUS"
	IntentUnknown     Intent = "UNKNOWN"
)

func (i Intent) String() string { return string(i) }

func (i Intent) IsValid() bool {
	switch i {
	case IntentHelp, IntentStartBatch, IntentEndBatch, IntentQueryStatus, IntentUnknown:
		return true
	}
	return false
}

// ParseIntentFromText maps recognized command words, including the Chinese
// commands the original user base relies on, to an intent. Anything else is
// IntentUnknown.
func ParseIntentFromText(text string) Intent {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "help", "說明", "幫助":
		return IntentHelp
	case "batch", "批次", "批量":
		return IntentStartBatch
	case "end batch", "結束批次", "完成批次":
		return IntentEndBatch
	case "status", "狀態", "進度":
		return IntentQueryStatus
	}
	return IntentUnknown
}
