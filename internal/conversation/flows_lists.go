package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/money"
)

// RecentLimit is how many transactions the listing shows.
const RecentLimit = 5

func (m *Machine) listTransactions(ctx context.Context, s *session) ([]Reply, error) {
	transactions, err := m.deps.Store.ListTransactionsByOwner(ctx, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if len(transactions) == 0 {
		return []Reply{{Text: "📭 No transactions recorded yet."}}, nil
	}
	if len(transactions) > RecentLimit {
		transactions = transactions[:RecentLimit]
	}

	var b strings.Builder
	b.WriteString("📋 Last transactions:\n")
	keyboard := make([][]Button, 0, len(transactions))
	for i := range transactions {
		t := &transactions[i]
		icon := "🔴"
		if t.Kind == model.KindIncome {
			icon = "🟢"
		}
		fmt.Fprintf(&b, "\n%d. %s %s\n   %s | %s | %s\n",
			i+1, icon, t.Description, money.Format(t.Amount), t.Category, calendar.Display(t.Date))
		keyboard = append(keyboard, []Button{{
			Text: fmt.Sprintf("🗑 Delete #%d", i+1),
			Data: prefixTxDelete + strconv.FormatInt(t.ID, 10),
		}})
	}

	return []Reply{{Text: b.String(), Keyboard: keyboard}}, nil
}

func (m *Machine) deleteTransaction(ctx context.Context, s *session) ([]Reply, error) {
	id, ok := parseID(s.event.Callback, prefixTxDelete)
	if !ok {
		return nil, nil
	}

	deleted, err := m.deps.Store.DeleteTransaction(ctx, id, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if !deleted {
		return []Reply{{Text: "⚠️ Transaction not found."}}, nil
	}
	return []Reply{{Text: "🗑 Transaction deleted."}}, nil
}

func (m *Machine) listCharges(ctx context.Context, s *session) ([]Reply, error) {
	var header string
	if m.deps.Sweeper != nil {
		result, err := m.deps.Sweeper.ProcessOwner(ctx, s.owner.ID)
		if err != nil {
			return m.fail(ctx, s, err)
		}
		if result.Created > 0 {
			header = fmt.Sprintf("🔄 %d pending entries were recorded.\n\n", result.Created)
		}
	}

	charges, err := m.deps.Store.ListChargesByOwner(ctx, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if len(charges) == 0 {
		return []Reply{{Text: header + "📭 No recurring charges yet."}}, nil
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("🗓 Recurring charges:\n")
	keyboard := make([][]Button, 0, len(charges))
	for i := range charges {
		c := &charges[i]
		status, toggle := "▶️ active", "⏸ Pause"
		if !c.Active {
			status, toggle = "⏸ paused", "▶️ Resume"
		}
		fmt.Fprintf(&b, "\n%d. %s %s (%s)\n   %s | %s | next %s\n",
			i+1, kindIcon(c.EffectiveKind()), c.Description, status,
			money.Format(c.Amount), c.Cadence, calendar.Display(c.NextDueDate))

		id := strconv.FormatInt(c.ID, 10)
		keyboard = append(keyboard, []Button{
			{Text: fmt.Sprintf("%s #%d", toggle, i+1), Data: prefixRecToggle + id},
			{Text: fmt.Sprintf("🗑 #%d", i+1), Data: prefixRecDelete + id},
		})
	}

	return []Reply{{Text: b.String(), Keyboard: keyboard}}, nil
}

func (m *Machine) toggleCharge(ctx context.Context, s *session) ([]Reply, error) {
	id, ok := parseID(s.event.Callback, prefixRecToggle)
	if !ok {
		return nil, nil
	}

	charge, err := m.deps.Store.ToggleChargeActive(ctx, id, s.owner.ID)
	if errors.Is(err, common.ErrNotFound) {
		return []Reply{{Text: "⚠️ Recurring charge not found."}}, nil
	}
	if err != nil {
		return m.fail(ctx, s, err)
	}

	if charge.Active {
		return []Reply{{Text: fmt.Sprintf("▶️ %s resumed.", charge.Description)}}, nil
	}
	return []Reply{{Text: fmt.Sprintf("⏸ %s paused.", charge.Description)}}, nil
}

func (m *Machine) deleteCharge(ctx context.Context, s *session) ([]Reply, error) {
	id, ok := parseID(s.event.Callback, prefixRecDelete)
	if !ok {
		return nil, nil
	}

	deleted, err := m.deps.Store.DeleteCharge(ctx, id, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}
	if !deleted {
		return []Reply{{Text: "⚠️ Recurring charge not found."}}, nil
	}
	return []Reply{{Text: "🗑 Recurring charge deleted."}}, nil
}

func (m *Machine) summary(ctx context.Context, s *session) ([]Reply, error) {
	summary, err := m.deps.Store.SummarizeOwner(ctx, s.owner.ID)
	if err != nil {
		return m.fail(ctx, s, err)
	}

	return []Reply{{Text: fmt.Sprintf("📊 Summary\n\n🟢 Income: %s\n🔴 Expenses: %s\n💼 Balance: %s",
		money.Format(summary.TotalIncome),
		money.Format(summary.TotalExpense),
		money.Format(summary.Balance))}}, nil
}
