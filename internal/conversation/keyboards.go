package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
)

// Callback data understood by the machine.
const (
	cbAuthLogin    = "auth_login"
	cbAuthRegister = "auth_register"

	cbTxIncome  = "tx_income"
	cbTxExpense = "tx_expense"
	cbTxList    = "tx_list"
	cbRecNew    = "rec_new"
	cbRecList   = "rec_list"
	cbSummary   = "summary"

	cbRecIncome  = "rk_income"
	cbRecExpense = "rk_expense"

	cbCalIgnore  = "cal_ignore"
	cbCardNone   = "card_none"
	cbCatDefault = "cat_default"

	prefixCategory  = "cat_"
	prefixCard      = "card_"
	prefixInstall   = "inst_"
	prefixCadence   = "freq_"
	prefixCalPrev   = "cal_prev_"
	prefixCalNext   = "cal_next_"
	prefixCalDay    = "cal_day_"
	prefixTxDelete  = "txdel_"
	prefixRecToggle = "rectoggle_"
	prefixRecDelete = "recdel_"
)

// InstallmentChoices are the counts offered when recording a purchase.
var InstallmentChoices = []int{1, 2, 3, 4, 5, 6, 7, 8, 10, 12}

var weekdayHeader = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

func mainMenuKeyboard() [][]Button {
	return [][]Button{
		{{Text: "💰 New income", Data: cbTxIncome}, {Text: "💸 New expense", Data: cbTxExpense}},
		{{Text: "📋 Last transactions", Data: cbTxList}},
		{{Text: "🔁 New recurring charge", Data: cbRecNew}, {Text: "🗓 Recurring charges", Data: cbRecList}},
		{{Text: "📊 Summary", Data: cbSummary}},
	}
}

func authChoiceKeyboard() [][]Button {
	return [][]Button{{
		{Text: "🔑 I have an account", Data: cbAuthLogin},
		{Text: "📝 Create account", Data: cbAuthRegister},
	}}
}

func recurrenceKindKeyboard() [][]Button {
	return [][]Button{{
		{Text: "💰 Income", Data: cbRecIncome},
		{Text: "💸 Expense", Data: cbRecExpense},
	}}
}

// categoryKeyboard lays categories out two per row. withDefault appends the
// recurring default category.
func categoryKeyboard(categories []model.Category, withDefault bool) [][]Button {
	var rows [][]Button
	for i := 0; i < len(categories); i += 2 {
		row := []Button{categoryButton(categories[i])}
		if i+1 < len(categories) {
			row = append(row, categoryButton(categories[i+1]))
		}
		rows = append(rows, row)
	}
	if withDefault {
		rows = append(rows, []Button{{Text: "🔄 Recurrent", Data: cbCatDefault}})
	}
	return rows
}

func categoryButton(c model.Category) Button {
	label := c.Name
	if c.Icon != "" {
		label = c.Icon + " " + c.Name
	}
	return Button{Text: label, Data: prefixCategory + strconv.FormatInt(c.ID, 10)}
}

func cardKeyboard(cards []model.CardBalance) [][]Button {
	rows := make([][]Button, 0, len(cards)+1)
	for i := range cards {
		rows = append(rows, []Button{{
			Text: "💳 " + cards[i].Label(),
			Data: prefixCard + strconv.FormatInt(cards[i].ID, 10),
		}})
	}
	return append(rows, []Button{{Text: "🚫 No card", Data: cbCardNone}})
}

func installmentKeyboard() [][]Button {
	rows := [][]Button{{{Text: "💵 Single payment", Data: prefixInstall + "1"}}}
	var row []Button
	for _, n := range InstallmentChoices[1:] {
		row = append(row, Button{Text: fmt.Sprintf("%dx", n), Data: prefixInstall + strconv.Itoa(n)})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func cadenceKeyboard() [][]Button {
	labels := map[calendar.Cadence]string{
		calendar.Daily:   "Daily",
		calendar.Weekly:  "Weekly",
		calendar.Monthly: "Monthly",
		calendar.Yearly:  "Yearly",
	}
	row := make([]Button, 0, len(calendar.Cadences))
	for _, c := range calendar.Cadences {
		row = append(row, Button{Text: labels[c], Data: prefixCadence + string(c)})
	}
	return [][]Button{row[:2], row[2:]}
}

// CalendarKeyboard renders a month grid with navigation arrows and a button
// for today.
func CalendarKeyboard(year int, month time.Month, today calendar.Date) [][]Button {
	ym := fmt.Sprintf("%04d_%02d", year, int(month))
	rows := [][]Button{{
		{Text: "◀", Data: prefixCalPrev + ym},
		{Text: fmt.Sprintf("%s %d", month, year), Data: cbCalIgnore},
		{Text: "▶", Data: prefixCalNext + ym},
	}}

	header := make([]Button, len(weekdayHeader))
	for i, d := range weekdayHeader {
		header[i] = Button{Text: d, Data: cbCalIgnore}
	}
	rows = append(rows, header)

	blank := Button{Text: " ", Data: cbCalIgnore}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	week := make([]Button, 0, 7)
	for i := 0; i < int(first); i++ {
		week = append(week, blank)
	}
	for day := 1; day <= calendar.DaysIn(year, month); day++ {
		d := calendar.New(year, month, day)
		week = append(week, Button{Text: strconv.Itoa(day), Data: prefixCalDay + d.String()})
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]Button, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, blank)
		}
		rows = append(rows, week)
	}

	return append(rows, []Button{{Text: "📅 Today", Data: prefixCalDay + today.String()}})
}

// shiftMonth parses the YYYY_MM suffix of a navigation callback and moves it
// by delta months.
func shiftMonth(suffix string, delta int) (int, time.Month, bool) {
	parts := strings.Split(suffix, "_")
	if len(parts) != 2 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}

	shifted := calendar.AddMonths(calendar.New(year, time.Month(month), 1), delta)
	return shifted.Year, shifted.Month, true
}

// parseID reads the numeric suffix of a callback.
func parseID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
