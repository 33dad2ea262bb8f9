package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

const (
	usageWidth = 150
	leftPad    = 2
	descPad    = 1
)

const requiredMarker = "(required) "

// writeUsage renders the registry as a usage block. Output depends only on
// the app name and the registry, so repeated calls are byte-identical.
func writeUsage(w io.Writer, appName string, opts *Options) {
	var b strings.Builder

	b.WriteString(usageLine(appName, opts))
	b.WriteString("Command Line Options:\n")

	labels := make([]string, len(opts.list))
	labelWidth := 0
	for i, opt := range opts.list {
		labels[i] = optionLabel(opt)
		if n := len(labels[i]); n > labelWidth {
			labelWidth = n
		}
	}

	descCol := leftPad + labelWidth + descPad
	descWidth := usageWidth - descCol
	if descWidth < 20 {
		descWidth = 20
	}
	indent := strings.Repeat(" ", descCol)

	for i, opt := range opts.list {
		desc := strings.TrimSpace(opt.Description)
		if opt.Required {
			desc = requiredMarker + desc
		}
		lines := strings.Split(wordwrap.WrapString(desc, uint(descWidth)), "\n")

		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(labels[i])
		b.WriteString(strings.Repeat(" ", labelWidth-len(labels[i])+descPad))
		b.WriteString(lines[0])
		b.WriteString("\n")
		for _, line := range lines[1:] {
			b.WriteString(indent)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	fmt.Fprint(w, b.String())
}

// usageLine builds "usage: app [-h] -n <arg> ..." wrapped at usageWidth with
// continuation lines aligned after the program name.
func usageLine(appName string, opts *Options) string {
	prefix := "usage: " + appName
	parts := make([]string, 0, len(opts.list))
	for _, opt := range opts.list {
		part := "-" + opt.Short
		if opt.HasArg {
			part += " <arg>"
		}
		if !opt.Required {
			part = "[" + part + "]"
		}
		parts = append(parts, part)
	}

	var b strings.Builder
	indent := strings.Repeat(" ", len(prefix)+1)
	line := prefix
	for _, part := range parts {
		if len(line)+1+len(part) > usageWidth && line != prefix {
			b.WriteString(line)
			b.WriteString("\n")
			line = indent + part
			continue
		}
		line += " " + part
	}
	b.WriteString(line)
	b.WriteString("\n")
	return b.String()
}

func optionLabel(opt *Option) string {
	label := "-" + opt.Short + ",--" + opt.Long
	if opt.HasArg {
		label += " <arg>"
	}
	return label
}
