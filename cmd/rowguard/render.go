package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pthm/rowguard"
	"github.com/pthm/rowguard/internal/cli"
)

// newTable returns a markdown table writer with headers kept as given.
func newTable(w io.Writer, columns int) *tablewriter.Table {
	alignment := make([]tw.Align, columns)
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	return tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
}

func status(r *rowguard.Report) string {
	switch {
	case r.Skipped:
		return color.CyanString("skipped (cached)")
	case r.Rewritten:
		return color.GreenString("rewritten")
	default:
		return color.YellowString("unchanged")
	}
}

// renderReport writes a human readable rewrite report.
func renderReport(w io.Writer, r *rowguard.Report) error {
	fmt.Fprintf(w, "Statement: %s\n", r.StatementID)
	fmt.Fprintf(w, "Status:    %s\n", status(r))

	if len(r.Injections) > 0 {
		fmt.Fprintf(w, "\n%s\n\n", color.BlueString("Injected predicates"))
		table := newTable(w, 5)
		table.Header([]string{"Rule", "Table", "Alias", "Clause", "Predicate"})
		for _, inj := range r.Injections {
			name := inj.Table
			if inj.Schema != "" {
				name = inj.Schema + "." + inj.Table
			}
			if err := table.Append([]string{inj.Rule, name, inj.Alias, string(inj.Clause), inj.Predicate}); err != nil {
				return cli.GeneralError("rendering report", err)
			}
		}
		if err := table.Render(); err != nil {
			return cli.GeneralError("rendering report", err)
		}
	}

	if len(r.Unsupported) > 0 {
		fmt.Fprintf(w, "\n%s\n\n", color.RedString("Left unscoped"))
		table := newTable(w, 2)
		table.Header([]string{"Construct", "Detail"})
		for _, u := range r.Unsupported {
			if err := table.Append([]string{u.Construct, u.Detail}); err != nil {
				return cli.GeneralError("rendering report", err)
			}
		}
		if err := table.Render(); err != nil {
			return cli.GeneralError("rendering report", err)
		}
	}

	fmt.Fprintf(w, "\n%s\n\n%s\n", color.BlueString("SQL"), strings.TrimRight(r.SQL, "\n"))
	return nil
}
