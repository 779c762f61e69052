// Package conversation drives the chat dialogue used to log in and record
// ledger entries. Each chat session walks through named steps while a draft
// collects the answers; the draft is written to the ledger only when a flow
// completes, and the session returns to idle afterwards.
package conversation

import (
	"time"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
)

// Step names the input a session is waiting for.
type Step string

// Conversation steps.
const (
	StepIdle Step = "idle"

	StepAuthChoice       Step = "auth_choice"
	StepLoginEmail       Step = "login_email"
	StepLoginPassword    Step = "login_password"
	StepRegisterName     Step = "register_name"
	StepRegisterEmail    Step = "register_email"
	StepRegisterPassword Step = "register_password"

	StepTxCategory     Step = "tx_category"
	StepTxAmount       Step = "tx_amount"
	StepTxDate         Step = "tx_date"
	StepTxDescription  Step = "tx_description"
	StepTxCard         Step = "tx_card"
	StepTxInstallments Step = "tx_installments"

	StepRecKind        Step = "rec_kind"
	StepRecDescription Step = "rec_description"
	StepRecAmount      Step = "rec_amount"
	StepRecCadence     Step = "rec_cadence"
	StepRecDate        Step = "rec_date"
	StepRecCategory    Step = "rec_category"
	StepRecCard        Step = "rec_card"
)

// needsOwner reports whether the step belongs to a flow that requires a
// linked owner.
func (s Step) needsOwner() bool {
	switch s {
	case StepIdle, StepAuthChoice, StepLoginEmail, StepLoginPassword,
		StepRegisterName, StepRegisterEmail, StepRegisterPassword:
		return false
	}
	return true
}

// Draft accumulates the answers of the running flow.
type Draft struct {
	CardID      *int64           `json:"card_id,omitempty"`
	Kind        model.Kind       `json:"kind,omitempty"`
	Category    string           `json:"category,omitempty"`
	Amount      string           `json:"amount,omitempty"`
	Date        string           `json:"date,omitempty"`
	Description string           `json:"description,omitempty"`
	Cadence     calendar.Cadence `json:"cadence,omitempty"`
	Name        string           `json:"name,omitempty"`
	Email       string           `json:"email,omitempty"`
}

// State is the stored position of one chat session.
type State struct {
	UpdatedAt time.Time
	Step      Step
	Draft     Draft
}

// IdleState returns a state with no flow in progress.
func IdleState() *State {
	return &State{Step: StepIdle}
}

// Event is one inbound chat interaction: either free text or a button press.
type Event struct {
	Text      string
	Callback  string
	SessionID int64
	ActorID   int64
	MessageID int
}

// IsCallback reports whether the event is a button press.
func (e Event) IsCallback() bool {
	return e.Callback != ""
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Reply is an outbound message. When EditMessageID is set the reply replaces
// the keyboard of that message instead of sending a new one.
type Reply struct {
	Text          string
	Keyboard      [][]Button
	EditMessageID int
}
