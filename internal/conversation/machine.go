package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/recurrence"
	"github.com/Veraticus/finscale/internal/service"
)

// Store is the persistence the dialogue reads and writes.
type Store interface {
	service.UserDirectory
	service.CategoryStore
	ListTransactionsByOwner(ctx context.Context, ownerID int64) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, id, ownerID int64) (bool, error)
	SummarizeOwner(ctx context.Context, ownerID int64) (*model.Summary, error)
	CreateCharge(ctx context.Context, charge *model.RecurringCharge) error
	ListChargesByOwner(ctx context.Context, ownerID int64) ([]model.RecurringCharge, error)
	ToggleChargeActive(ctx context.Context, id, ownerID int64) (*model.RecurringCharge, error)
	DeleteCharge(ctx context.Context, id, ownerID int64) (bool, error)
	ListCards(ctx context.Context, ownerID int64) ([]model.CardBalance, error)
}

// Expander records a purchase, split into installments when requested.
type Expander interface {
	Expand(ctx context.Context, req installment.Request) ([]model.Transaction, error)
}

// OwnerSweeper catches up one owner's recurring charges.
type OwnerSweeper interface {
	ProcessOwner(ctx context.Context, ownerID int64) (recurrence.SweepResult, error)
}

// Passwords hashes and checks account passwords.
type Passwords interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Deps contains all dependencies required by the machine.
type Deps struct {
	// Store provides owners, categories and the ledger.
	Store Store
	// Sessions keeps each chat's position in its flow.
	Sessions SessionStore
	// Expander records new transactions.
	Expander Expander
	// Sweeper processes due charges before they are listed. Optional.
	Sweeper OwnerSweeper
	// Passwords verifies logins and hashes new accounts.
	Passwords Passwords
	// Clock supplies today's date. Defaults to the system clock.
	Clock calendar.Clock
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	if d.Sessions == nil {
		return fmt.Errorf("session store dependency is required")
	}
	if d.Expander == nil {
		return fmt.Errorf("expander dependency is required")
	}
	if d.Passwords == nil {
		return fmt.Errorf("password dependency is required")
	}
	return nil
}

// Machine turns chat events into replies, one session at a time.
type Machine struct {
	deps Deps
}

// NewMachine creates a machine with the provided dependencies.
func NewMachine(deps Deps) (*Machine, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = calendar.SystemClock{}
	}
	return &Machine{deps: deps}, nil
}

// Common replies.
const (
	msgNeedLogin      = "⚠️ You need to log in first. Use /start."
	msgSessionExpired = "⚠️ Session expired. Use /start."
	msgTryAgainLater  = "⚠️ Something went wrong. Please try again later."
	msgUseMenu        = "Use /menu to continue."
)

// session bundles what a handler needs about the current event.
type session struct {
	state *State
	owner *model.User
	event Event
}

// Handle processes one event and returns the replies to send. Input the
// current step does not expect is dropped without a reply. The returned error
// is reserved for session store failures.
func (m *Machine) Handle(ctx context.Context, event Event) ([]Reply, error) {
	state, err := m.deps.Sessions.Get(ctx, event.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", event.SessionID, err)
	}

	s := &session{state: state, event: event}

	if !event.IsCallback() && strings.HasPrefix(strings.TrimSpace(event.Text), "/") {
		return m.handleCommand(ctx, s)
	}

	if event.IsCallback() && event.Callback == cbCalIgnore {
		return nil, nil
	}

	if state.Step.needsOwner() {
		owner, ok, lookupErr := m.lookupOwner(ctx, event.ActorID)
		if lookupErr != nil {
			return m.fail(ctx, s, lookupErr)
		}
		if !ok {
			return m.resetWith(ctx, s, msgSessionExpired)
		}
		s.owner = owner
	}

	if event.IsCallback() {
		return m.handleCallback(ctx, s)
	}
	return m.handleText(ctx, s, strings.TrimSpace(event.Text))
}

func (m *Machine) handleCommand(ctx context.Context, s *session) ([]Reply, error) {
	command := strings.Fields(strings.TrimSpace(s.event.Text))[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		return m.start(ctx, s)
	case "/menu":
		return m.menu(ctx, s)
	case "/cancel":
		return m.resetWith(ctx, s, "❌ Cancelled. "+msgUseMenu)
	default:
		return nil, nil
	}
}

func (m *Machine) start(ctx context.Context, s *session) ([]Reply, error) {
	owner, ok, err := m.lookupOwner(ctx, s.event.ActorID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if ok {
		return m.resetWith(ctx, s, fmt.Sprintf("👋 Welcome back, %s!\n\nUse /menu to manage your finances.", owner.Name))
	}

	return m.transition(ctx, s, StepAuthChoice, Draft{}, Reply{
		Text:     "🏦 FinScale\n\nDo you already have an account?",
		Keyboard: authChoiceKeyboard(),
	})
}

func (m *Machine) menu(ctx context.Context, s *session) ([]Reply, error) {
	owner, ok, err := m.lookupOwner(ctx, s.event.ActorID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if !ok {
		return m.resetWith(ctx, s, msgNeedLogin)
	}

	if err := m.deps.Sessions.Reset(ctx, s.event.SessionID); err != nil {
		return nil, fmt.Errorf("failed to reset session %d: %w", s.event.SessionID, err)
	}
	return []Reply{{
		Text:     fmt.Sprintf("📊 Main menu\n\nHi, %s! What would you like to do?", owner.Name),
		Keyboard: mainMenuKeyboard(),
	}}, nil
}

func (m *Machine) handleCallback(ctx context.Context, s *session) ([]Reply, error) {
	data := s.event.Callback

	if strings.HasPrefix(data, prefixCalPrev) || strings.HasPrefix(data, prefixCalNext) {
		return m.navigateCalendar(s)
	}

	switch s.state.Step {
	case StepIdle:
		return m.handleIdleCallback(ctx, s)
	case StepAuthChoice:
		return m.chooseAuth(ctx, s)
	case StepTxCategory, StepRecCategory:
		return m.chooseCategory(ctx, s)
	case StepTxDate, StepRecDate:
		return m.chooseDate(ctx, s)
	case StepTxCard, StepRecCard:
		return m.chooseCard(ctx, s)
	case StepTxInstallments:
		return m.chooseInstallments(ctx, s)
	case StepRecKind:
		return m.chooseRecurrenceKind(ctx, s)
	case StepRecCadence:
		return m.chooseCadence(ctx, s)
	default:
		return nil, nil
	}
}

// isMenuCallback reports whether data is an action offered from the idle menu
// or from a list.
func isMenuCallback(data string) bool {
	switch data {
	case cbTxIncome, cbTxExpense, cbRecNew, cbTxList, cbRecList, cbSummary:
		return true
	}
	return strings.HasPrefix(data, prefixTxDelete) ||
		strings.HasPrefix(data, prefixRecToggle) ||
		strings.HasPrefix(data, prefixRecDelete)
}

func (m *Machine) handleIdleCallback(ctx context.Context, s *session) ([]Reply, error) {
	data := s.event.Callback
	if !isMenuCallback(data) {
		return nil, nil
	}

	owner, ok, err := m.lookupOwner(ctx, s.event.ActorID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if !ok {
		return []Reply{{Text: msgNeedLogin}}, nil
	}
	s.owner = owner

	switch {
	case data == cbTxIncome:
		return m.startTransaction(ctx, s, model.KindIncome)
	case data == cbTxExpense:
		return m.startTransaction(ctx, s, model.KindExpense)
	case data == cbRecNew:
		return m.startRecurrence(ctx, s)
	case data == cbTxList:
		return m.listTransactions(ctx, s)
	case data == cbRecList:
		return m.listCharges(ctx, s)
	case data == cbSummary:
		return m.summary(ctx, s)
	case strings.HasPrefix(data, prefixTxDelete):
		return m.deleteTransaction(ctx, s)
	case strings.HasPrefix(data, prefixRecToggle):
		return m.toggleCharge(ctx, s)
	case strings.HasPrefix(data, prefixRecDelete):
		return m.deleteCharge(ctx, s)
	default:
		return nil, nil
	}
}

func (m *Machine) handleText(ctx context.Context, s *session, text string) ([]Reply, error) {
	if text == "" {
		return nil, nil
	}

	switch s.state.Step {
	case StepLoginEmail:
		return m.enterLoginEmail(ctx, s, text)
	case StepLoginPassword:
		return m.enterLoginPassword(ctx, s, text)
	case StepRegisterName:
		return m.enterRegisterName(ctx, s, text)
	case StepRegisterEmail:
		return m.enterRegisterEmail(ctx, s, text)
	case StepRegisterPassword:
		return m.enterRegisterPassword(ctx, s, text)
	case StepTxAmount, StepRecAmount:
		return m.enterAmount(ctx, s, text)
	case StepTxDescription, StepRecDescription:
		return m.enterDescription(ctx, s, text)
	default:
		return nil, nil
	}
}

func (m *Machine) navigateCalendar(s *session) ([]Reply, error) {
	if s.state.Step != StepTxDate && s.state.Step != StepRecDate {
		return nil, nil
	}

	data := s.event.Callback
	delta, suffix := -1, strings.TrimPrefix(data, prefixCalPrev)
	if strings.HasPrefix(data, prefixCalNext) {
		delta, suffix = 1, strings.TrimPrefix(data, prefixCalNext)
	}

	year, month, ok := shiftMonth(suffix, delta)
	if !ok {
		return nil, nil
	}
	return []Reply{{
		Keyboard:      CalendarKeyboard(year, month, m.deps.Clock.Today()),
		EditMessageID: s.event.MessageID,
	}}, nil
}

// lookupOwner resolves the owner linked to a chat actor.
func (m *Machine) lookupOwner(ctx context.Context, actorID int64) (*model.User, bool, error) {
	owner, err := m.deps.Store.FindUserByTelegramID(ctx, actorID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return owner, true, nil
}

// transition moves the session to step with draft and sends reply.
func (m *Machine) transition(ctx context.Context, s *session, step Step, draft Draft, replies ...Reply) ([]Reply, error) {
	next := &State{Step: step, Draft: draft}
	if err := m.deps.Sessions.Set(ctx, s.event.SessionID, next); err != nil {
		return nil, fmt.Errorf("failed to save session %d: %w", s.event.SessionID, err)
	}
	s.state = next
	return replies, nil
}

// resetWith returns the session to idle and sends text.
func (m *Machine) resetWith(ctx context.Context, s *session, text string) ([]Reply, error) {
	if err := m.deps.Sessions.Reset(ctx, s.event.SessionID); err != nil {
		return nil, fmt.Errorf("failed to reset session %d: %w", s.event.SessionID, err)
	}
	s.state = IdleState()
	return []Reply{{Text: text}}, nil
}

// fail logs an unexpected error, abandons the flow and apologizes.
func (m *Machine) fail(ctx context.Context, s *session, err error) ([]Reply, error) {
	slog.Error("conversation step failed",
		"session_id", s.event.SessionID,
		"step", string(s.state.Step),
		"error", err)
	return m.resetWith(ctx, s, msgTryAgainLater)
}
