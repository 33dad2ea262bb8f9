package roundtrip

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	Topic    string
	Stats    Stats
	Duration time.Duration
	Err      error

	ProducerSample   string
	ConsumerSample   string
	ValidationSample string
}

// Failed reports whether the scenario did not complete cleanly.
func (r Result) Failed() bool {
	return r.Err != nil || r.Stats.Failed()
}

type column struct {
	name     string
	maxWidth int
	value    func(Result) string
}

var columns = []column{
	{"status", 6, func(r Result) string {
		if r.Failed() {
			return "FAIL"
		}
		return "OK"
	}},
	{"scenario", 32, func(r Result) string { return r.Scenario }},
	{"topic", 56, func(r Result) string {
		if r.Topic == "" {
			return "-"
		}
		return r.Topic
	}},
	{"unique/expected", 15, func(r Result) string { return fmt.Sprintf("%d/%d", r.Stats.Unique, r.Stats.Expected) }},
	{"missing", 7, func(r Result) string { return strconv.Itoa(r.Stats.Missing) }},
	{"dup", 5, func(r Result) string { return strconv.Itoa(r.Stats.Duplicates) }},
	{"ooo", 5, func(r Result) string { return strconv.Itoa(r.Stats.OutOfOrder) }},
	{"prod_err", 8, func(r Result) string { return strconv.Itoa(r.Stats.ProducerErrors) }},
	{"cons_err", 8, func(r Result) string { return strconv.Itoa(r.Stats.ConsumerErrors) }},
	{"val_err", 7, func(r Result) string { return strconv.Itoa(r.Stats.ValidationErrors) }},
	{"duration", 9, func(r Result) string {
		if r.Duration <= 0 {
			return "-"
		}
		return r.Duration.Round(time.Millisecond).String()
	}},
}

// WriteSummary renders results as a bordered table followed by the first
// error of every failed scenario. It returns the number of failures.
func WriteSummary(w io.Writer, results []Result) int {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c.name)
		for _, r := range results {
			widths[i] = max(widths[i], utf8.RuneCountInString(c.value(r)))
		}
		widths[i] = max(min(widths[i], c.maxWidth), utf8.RuneCountInString(c.name))
	}

	var b strings.Builder
	border := "+"
	for _, width := range widths {
		border += strings.Repeat("-", width+2) + "+"
	}
	row := func(cell func(i int) string) {
		b.WriteString("|")
		for i := range columns {
			b.WriteString(" " + pad(cell(i), widths[i]) + " |")
		}
		b.WriteString("\n")
	}

	b.WriteString(border + "\n")
	row(func(i int) string { return columns[i].name })
	b.WriteString(border + "\n")
	for _, r := range results {
		row(func(i int) string { return columns[i].value(r) })
	}
	b.WriteString(border + "\n")

	failures := 0
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		failures++
		if r.Err != nil {
			fmt.Fprintf(&b, "  %s error: %v\n", r.Scenario, r.Err)
		}
		for _, s := range []struct{ kind, msg string }{
			{"producer", r.ProducerSample},
			{"consumer", r.ConsumerSample},
			{"validation", r.ValidationSample},
		} {
			if s.msg != "" {
				fmt.Fprintf(&b, "  %s %s_error_sample: %s\n", r.Scenario, s.kind, s.msg)
			}
		}
	}

	fmt.Fprint(w, b.String())
	return failures
}

// pad truncates value to width runes, marking the cut with '…', and pads it
// with spaces.
func pad(value string, width int) string {
	runes := []rune(value)
	if len(runes) > width {
		if width <= 1 {
			return string(runes[:width])
		}
		return string(runes[:width-1]) + "…"
	}
	return value + strings.Repeat(" ", width-len(runes))
}
