package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/armorclaw/errwatch/pkg/discovery"
	"github.com/armorclaw/errwatch/pkg/errors"
	api "github.com/armorclaw/errwatch/pkg/http"
)

const maxMessageWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// printer renders CLI output, styled when writing to a terminal
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(f *os.File) *printer {
	return &printer{
		w:      f,
		styled: term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "",
	}
}

func levelStyle(level errors.Level) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(errors.ColorFor(level).Hex()))
}

func (p *printer) level(level errors.Level) string {
	text := strings.ToUpper(string(level))
	if !p.styled {
		return text
	}
	return levelStyle(level).Render(text)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func (p *printer) records(records []errors.ErrorRecord, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(p.w, "no errors")
		return
	}

	if p.styled {
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ID,
				strings.ToUpper(string(rec.Level)),
				rec.Origin(),
				truncate(rec.Message, maxMessageWidth),
				rec.Age(now).Round(time.Second).String(),
			})
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(dimStyle).
			Headers("ID", "LEVEL", "CONTEXT", "MESSAGE", "AGE").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				style := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return style.Inherit(headerStyle)
				}
				if col == 1 && row >= 0 && row < len(records) {
					return style.Inherit(levelStyle(records[row].Level))
				}
				return style
			})
		fmt.Fprintln(p.w, t.Render())
		return
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEVEL\tCONTEXT\tMESSAGE\tAGE")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			strings.ToUpper(string(rec.Level)),
			rec.Origin(),
			truncate(rec.Message, maxMessageWidth),
			rec.Age(now).Round(time.Second))
	}
	tw.Flush()
}

func (p *printer) badge(badge api.BadgeResponse) {
	text := badge.Text
	if text == "" {
		text = "0"
	}
	if !p.styled {
		fmt.Fprintf(p.w, "badge: %s (%s)\n", text, badge.Color)
		return
	}
	style := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(badge.Hex))
	fmt.Fprintf(p.w, "badge %s\n", style.Render(text))
}

func (p *printer) instances(instances []discovery.Instance) {
	if len(instances) == 0 {
		fmt.Fprintln(p.w, "no errwatch daemons found")
		return
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	header := "NAME\tURL\tVERSION\tWS"
	if p.styled {
		header = headerStyle.Render("NAME") + "\t" + headerStyle.Render("URL") + "\t" +
			headerStyle.Render("VERSION") + "\t" + headerStyle.Render("WS")
	}
	fmt.Fprintln(tw, header)
	for _, inst := range instances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", inst.Name, inst.URL(), inst.Version, inst.WSPath)
	}
	tw.Flush()
}
