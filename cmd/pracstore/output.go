package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// printer writes tables to a terminal and JSON everywhere else.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, forceJSON bool) *printer {
	return &printer{w: w, json: forceJSON || !isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// emit prints v as JSON, or calls table when writing to a terminal.
func (p *printer) emit(v any, table func(tw *tabwriter.Writer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// message prints a confirmation line. JSON output gets {"result": ...}.
func (p *printer) message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.json {
		return json.NewEncoder(p.w).Encode(map[string]string{"result": msg})
	}
	_, err := fmt.Fprintln(p.w, msg)
	return err
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
