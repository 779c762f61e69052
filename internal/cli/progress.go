package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/finscale/internal/model"
)

// SweepProgress tracks a recurring charge sweep on a terminal progress bar.
type SweepProgress struct {
	bar     *progressbar.ProgressBar
	writer  io.Writer
	failed  int
	created int
}

// NewSweepProgress creates a bar sized for total due charges.
func NewSweepProgress(w io.Writer, total int) *SweepProgress {
	p := &SweepProgress{writer: w}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Processing recurring charges...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Observe advances the bar by one charge. Its signature matches
// recurrence.Observer.
func (p *SweepProgress) Observe(charge model.RecurringCharge, created int, err error) {
	if err != nil {
		p.failed++
		slog.Debug("recurring charge failed", "charge_id", charge.ID, "error", err)
	} else {
		p.created += created
	}
	if addErr := p.bar.Add(1); addErr != nil {
		slog.Warn("Failed to update progress bar", "error", addErr)
	}
}

// Finish completes the bar even when fewer charges were observed than expected.
func (p *SweepProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Created returns the number of entries recorded so far.
func (p *SweepProgress) Created() int {
	return p.created
}

// Failed returns the number of charges that could not be processed.
func (p *SweepProgress) Failed() int {
	return p.failed
}
