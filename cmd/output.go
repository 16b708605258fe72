package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/ron-matt163/wiki-llm/internal/models"
	"github.com/ron-matt163/wiki-llm/pkg/pipeline"
	"github.com/schollz/progressbar/v3"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	tableColor   = color.New(color.FgGreen)
	missingColor = color.New(color.FgYellow)
)

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// renderResult prints every derived topic once, in derivation order. Topics
// whose page could not be fetched are listed as missing.
func renderResult(w io.Writer, res pipeline.Result) {
	if len(res.Topics) == 0 {
		missingColor.Fprintln(w, "No topics derived for this question.")
		return
	}

	seen := make(map[string]bool, len(res.Topics))
	for _, topic := range res.Topics {
		if seen[topic] {
			continue
		}
		seen[topic] = true

		headingColor.Fprintf(w, "== %s ==\n", topic)
		ev, ok := res.Evidence[topic]
		if !ok {
			missingColor.Fprintln(w, "(no page retrieved)")
			fmt.Fprintln(w)
			continue
		}
		renderEvidence(w, ev)
		fmt.Fprintln(w)
	}
}

func renderEvidence(w io.Writer, ev models.Evidence) {
	if ev.Text != "" {
		fmt.Fprintln(w, ev.Text)
	}
	for i, t := range ev.Tables {
		tableColor.Fprintf(w, "\nTable %d\n", i+1)
		renderTable(w, t)
	}
}

func renderTable(w io.Writer, t models.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
