package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/money"
)

func kindIcon(kind model.Kind) string {
	if kind == model.KindIncome {
		return "💰"
	}
	return "💸"
}

func (m *Machine) startTransaction(ctx context.Context, s *session, kind model.Kind) ([]Reply, error) {
	categories, err := m.deps.Store.ListCategories(ctx)
	if err != nil {
		return m.fail(ctx, s, err)
	}

	return m.transition(ctx, s, StepTxCategory, Draft{Kind: kind}, Reply{
		Text:     fmt.Sprintf("%s %s\n\n📂 Choose the category:", kindIcon(kind), kind.Label()),
		Keyboard: categoryKeyboard(categories, false),
	})
}

func (m *Machine) startRecurrence(ctx context.Context, s *session) ([]Reply, error) {
	return m.transition(ctx, s, StepRecKind, Draft{}, Reply{
		Text:     "🔁 New recurring charge\n\nIs it income or an expense?",
		Keyboard: recurrenceKindKeyboard(),
	})
}

func (m *Machine) chooseRecurrenceKind(ctx context.Context, s *session) ([]Reply, error) {
	var kind model.Kind
	switch s.event.Callback {
	case cbRecIncome:
		kind = model.KindIncome
	case cbRecExpense:
		kind = model.KindExpense
	default:
		return nil, nil
	}

	return m.transition(ctx, s, StepRecDescription, Draft{Kind: kind}, Reply{
		Text: fmt.Sprintf("%s %s\n\n📝 Enter a description for the recurring charge:", kindIcon(kind), kind.Label()),
	})
}

func (m *Machine) chooseCategory(ctx context.Context, s *session) ([]Reply, error) {
	data := s.event.Callback
	draft := s.state.Draft

	switch {
	case s.state.Step == StepRecCategory && data == cbCatDefault:
		draft.Category = model.DefaultRecurringCategory
	case strings.HasPrefix(data, prefixCategory):
		id, ok := parseID(data, prefixCategory)
		if !ok {
			return nil, nil
		}
		category, err := m.deps.Store.GetCategory(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return m.fail(ctx, s, err)
		}
		draft.Category = category.Name
	default:
		return nil, nil
	}

	if s.state.Step == StepRecCategory {
		return m.askCardOr(ctx, s, draft, StepRecCard, "📂 Category: "+draft.Category, m.saveCharge)
	}
	return m.transition(ctx, s, StepTxAmount, draft, Reply{
		Text: fmt.Sprintf("📂 Category: %s\n\n💲 Enter the amount (e.g. 150.50):", draft.Category),
	})
}

func (m *Machine) enterAmount(ctx context.Context, s *session, text string) ([]Reply, error) {
	amount, err := money.ParseAmount(text)
	if err != nil {
		return []Reply{{Text: "❌ Invalid amount. Enter a positive number (e.g. 50.00):"}}, nil
	}

	draft := s.state.Draft
	draft.Amount = money.Format(amount)

	if s.state.Step == StepRecAmount {
		return m.transition(ctx, s, StepRecCadence, draft, Reply{
			Text:     fmt.Sprintf("💲 Amount: %s\n\n🔁 How often does it repeat?", draft.Amount),
			Keyboard: cadenceKeyboard(),
		})
	}

	today := m.deps.Clock.Today()
	return m.transition(ctx, s, StepTxDate, draft, Reply{
		Text:     "📅 Choose the transaction date:",
		Keyboard: CalendarKeyboard(today.Year, today.Month, today),
	})
}

func (m *Machine) chooseCadence(ctx context.Context, s *session) ([]Reply, error) {
	if !strings.HasPrefix(s.event.Callback, prefixCadence) {
		return nil, nil
	}
	cadence, err := calendar.ParseCadence(strings.TrimPrefix(s.event.Callback, prefixCadence))
	if err != nil {
		return nil, nil
	}

	draft := s.state.Draft
	draft.Cadence = cadence
	today := m.deps.Clock.Today()
	return m.transition(ctx, s, StepRecDate, draft, Reply{
		Text:     "📅 Choose the first due date:",
		Keyboard: CalendarKeyboard(today.Year, today.Month, today),
	})
}

func (m *Machine) chooseDate(ctx context.Context, s *session) ([]Reply, error) {
	if !strings.HasPrefix(s.event.Callback, prefixCalDay) {
		return nil, nil
	}
	date, err := calendar.ParseDate(strings.TrimPrefix(s.event.Callback, prefixCalDay))
	if err != nil {
		return nil, nil
	}

	draft := s.state.Draft
	draft.Date = date.String()

	if s.state.Step == StepRecDate {
		categories, listErr := m.deps.Store.ListCategories(ctx)
		if listErr != nil {
			return m.fail(ctx, s, listErr)
		}
		return m.transition(ctx, s, StepRecCategory, draft, Reply{
			Text:     fmt.Sprintf("📅 First due date: %s\n\n📂 Choose the category:", calendar.Display(date)),
			Keyboard: categoryKeyboard(categories, true),
		})
	}

	return m.transition(ctx, s, StepTxDescription, draft, Reply{
		Text: fmt.Sprintf("📅 Date: %s\n\n📝 Enter a description for the transaction:", calendar.Display(date)),
	})
}

func (m *Machine) enterDescription(ctx context.Context, s *session, text string) ([]Reply, error) {
	draft := s.state.Draft
	draft.Description = text

	if s.state.Step == StepRecDescription {
		return m.transition(ctx, s, StepRecAmount, draft, Reply{
			Text: fmt.Sprintf("📝 Description: %s\n\n💲 Enter the amount (e.g. 49.90):", text),
		})
	}

	return m.askCardOr(ctx, s, draft, StepTxCard, "📝 Description: "+text, m.askInstallments)
}

// askCardOr asks for a card when the owner has any, and otherwise continues
// with next.
func (m *Machine) askCardOr(
	ctx context.Context,
	s *session,
	draft Draft,
	cardStep Step,
	header string,
	next func(context.Context, *session, Draft, string) ([]Reply, error),
) ([]Reply, error) {
	cards, err := m.deps.Store.ListCards(ctx, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if len(cards) == 0 {
		return next(ctx, s, draft, header)
	}

	return m.transition(ctx, s, cardStep, draft, Reply{
		Text:     header + "\n\n💳 Which card was used?",
		Keyboard: cardKeyboard(cards),
	})
}

func (m *Machine) chooseCard(ctx context.Context, s *session) ([]Reply, error) {
	data := s.event.Callback
	draft := s.state.Draft
	header := "💳 No card"

	switch {
	case data == cbCardNone:
		draft.CardID = nil
	case strings.HasPrefix(data, prefixCard):
		id, ok := parseID(data, prefixCard)
		if !ok {
			return nil, nil
		}
		cards, err := m.deps.Store.ListCards(ctx, s.owner.ID)
		if err != nil {
			return m.fail(ctx, s, err)
		}
		idx := slices.IndexFunc(cards, func(c model.CardBalance) bool { return c.ID == id })
		if idx < 0 {
			return nil, nil
		}
		draft.CardID = &id
		header = "💳 Card: " + cards[idx].Label()
	default:
		return nil, nil
	}

	if s.state.Step == StepRecCard {
		return m.saveCharge(ctx, s, draft, header)
	}
	return m.askInstallments(ctx, s, draft, header)
}

func (m *Machine) askInstallments(ctx context.Context, s *session, draft Draft, header string) ([]Reply, error) {
	return m.transition(ctx, s, StepTxInstallments, draft, Reply{
		Text:     header + "\n\n📦 How many installments?",
		Keyboard: installmentKeyboard(),
	})
}

func (m *Machine) chooseInstallments(ctx context.Context, s *session) ([]Reply, error) {
	if !strings.HasPrefix(s.event.Callback, prefixInstall) {
		return nil, nil
	}
	count, err := strconv.Atoi(strings.TrimPrefix(s.event.Callback, prefixInstall))
	if err != nil || !slices.Contains(InstallmentChoices, count) {
		return nil, nil
	}

	draft := s.state.Draft
	amount, err := decimal.NewFromString(draft.Amount)
	if err != nil {
		return m.fail(ctx, s, fmt.Errorf("corrupt draft amount %q: %w", draft.Amount, err))
	}
	date, err := calendar.ParseDate(draft.Date)
	if err != nil {
		return m.fail(ctx, s, fmt.Errorf("corrupt draft date: %w", err))
	}

	created, err := m.deps.Expander.Expand(ctx, installment.Request{
		OwnerID:     s.owner.ID,
		Description: draft.Description,
		Amount:      amount,
		Kind:        draft.Kind,
		Category:    draft.Category,
		StartDate:   date,
		Count:       count,
		CardID:      draft.CardID,
	})
	if errors.Is(err, common.ErrValidation) {
		return m.resetWith(ctx, s, "❌ "+common.UserMessage(err, "Invalid transaction.")+"\n\n"+msgUseMenu)
	}
	if err != nil {
		return m.fail(ctx, s, err)
	}

	var text string
	if count > 1 {
		text = fmt.Sprintf("✅ Installments recorded!\n\n%s %s\n📝 %s\n💲 %dx of %s (total %s)\n📂 %s\n📅 Starting %s\n\n%s",
			kindIcon(draft.Kind), draft.Kind.Label(), draft.Description,
			count, money.Format(created[0].Amount), money.Format(amount),
			draft.Category, calendar.Display(date), msgUseMenu)
	} else {
		text = fmt.Sprintf("✅ Transaction recorded!\n\n%s %s\n📝 %s\n💲 %s\n📂 %s\n📅 %s\n\n%s",
			kindIcon(draft.Kind), draft.Kind.Label(), draft.Description,
			money.Format(amount), draft.Category, calendar.Display(date), msgUseMenu)
	}
	return m.resetWith(ctx, s, text)
}

func (m *Machine) saveCharge(ctx context.Context, s *session, draft Draft, _ string) ([]Reply, error) {
	amount, err := decimal.NewFromString(draft.Amount)
	if err != nil {
		return m.fail(ctx, s, fmt.Errorf("corrupt draft amount %q: %w", draft.Amount, err))
	}
	date, err := calendar.ParseDate(draft.Date)
	if err != nil {
		return m.fail(ctx, s, fmt.Errorf("corrupt draft date: %w", err))
	}

	charge := &model.RecurringCharge{
		OwnerID:     s.owner.ID,
		Description: draft.Description,
		Amount:      amount,
		Kind:        draft.Kind,
		Cadence:     draft.Cadence,
		NextDueDate: date,
		Category:    draft.Category,
		CardID:      draft.CardID,
	}
	err = m.deps.Store.CreateCharge(ctx, charge)
	if errors.Is(err, common.ErrValidation) {
		return m.resetWith(ctx, s, "❌ "+common.UserMessage(err, "Invalid recurring charge.")+"\n\n"+msgUseMenu)
	}
	if err != nil {
		return m.fail(ctx, s, err)
	}

	return m.resetWith(ctx, s, fmt.Sprintf("✅ Recurring charge saved!\n\n%s %s\n📝 %s\n💲 %s\n🔁 %s\n📅 Next due: %s\n📂 %s\n\n%s",
		kindIcon(charge.EffectiveKind()), charge.EffectiveKind().Label(), charge.Description,
		money.Format(charge.Amount), charge.Cadence, calendar.Display(charge.NextDueDate),
		charge.EffectiveCategory(), msgUseMenu))
}
