package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/money"
	"github.com/Veraticus/finscale/internal/recurrence"
)

// RenderSummary renders an owner's balance and per-card totals.
func RenderSummary(owner *model.User, summary *model.Summary, cards []model.CardBalance) string {
	var b strings.Builder

	b.WriteString(row("Income", IncomeStyle.Render(money.Format(summary.TotalIncome))))
	b.WriteString(row("Expenses", ExpenseStyle.Render(money.Format(summary.TotalExpense))))
	b.WriteString(row("Balance", balanceStyle(summary).Render(money.Format(summary.Balance))))

	if len(cards) > 0 {
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render("Cards"))
		b.WriteString("\n")
		for i := range cards {
			card := &cards[i]
			fmt.Fprintf(&b, "%s %s  %s\n",
				CardIcon,
				LabelStyle.Render(card.Label()),
				money.Format(card.CurrentBalance))
		}
	}

	title := fmt.Sprintf("%s Summary for %s <%s>", ChartIcon, owner.Name, owner.Email)
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderSweep describes the outcome of a recurring charge sweep.
func RenderSweep(result recurrence.SweepResult) string {
	var b strings.Builder

	if result.Created == 0 && len(result.Failures) == 0 {
		b.WriteString(FormatSuccess("No pending charges"))
	} else {
		b.WriteString(FormatSuccess(fmt.Sprintf("%d transaction(s) created from %d charge(s)",
			result.Created, result.Processed)))
	}

	if result.Skipped > 0 {
		b.WriteString("\n")
		b.WriteString(FormatWarning(fmt.Sprintf("%d charge(s) skipped, already handled elsewhere", result.Skipped)))
	}

	for _, failure := range result.Failures {
		b.WriteString("\n")
		b.WriteString(FormatError(fmt.Sprintf("charge %d (owner %d): %v",
			failure.ChargeID, failure.OwnerID, failure.Err)))
	}
	return b.String()
}

func row(label, value string) string {
	return LabelStyle.Render(label) + value + "\n"
}

func balanceStyle(summary *model.Summary) lipgloss.Style {
	if summary.Balance.IsNegative() {
		return ExpenseStyle
	}
	return IncomeStyle
}
