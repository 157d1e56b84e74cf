// Package session holds the transient per-user recharge draft while the
// user walks through the guided flow. Drafts are in-memory only; a restart
// discards them.
package session

import (
	"github.com/shopspring/decimal"
)

// Step identifies the draft's current position in the recharge flow.
type Step string

const (
	// StepChooseSlot waits for a slot selection.
	StepChooseSlot Step = "choose_slot"
	// StepEnterKWH waits for a quantity.
	StepEnterKWH Step = "enter_kwh"
	// StepAwaitPhoto waits for the photographic proof.
	StepAwaitPhoto Step = "await_photo"
	// StepAwaitNote waits for the optional free-text note.
	StepAwaitNote Step = "await_note"
	// StepConfirm waits for the final confirmation.
	StepConfirm Step = "confirm"
)

// Draft is the in-progress recharge form. Fields are populated as the flow
// advances; only the fields valid for the current step carry meaning.
type Draft struct {
	Step        Step
	Slot        int
	KWH         decimal.Decimal
	PhotoFileID string
	Note        string
}
