package commands

import (
	"damadam-scraper/internal/scrapers/damadam"
	"damadam-scraper/internal/targetscraper"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func renderTargets(title string, targets []targetscraper.Target) {
	if len(targets) == 0 {
		return
	}
	t := newTable()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Row", "Nickname", "Source", "Urgent", "Status"})
	for _, target := range targets {
		urgent := ""
		if target.Urgent {
			urgent = "yes"
		}
		t.AppendRow(table.Row{target.Row, target.Nickname, target.Source, urgent, target.RawStatus})
	}
	t.Render()
}

func renderStats(stats targetscraper.RunStats) {
	t := newTable()
	t.SetTitle("Run " + stats.RunId)
	t.AppendHeader(table.Row{"Nickname", "Row", "Status", "Remarks", "Took"})
	for _, result := range stats.Results {
		t.AppendRow(table.Row{
			result.Target.Nickname,
			result.Target.Row,
			result.Status.String(),
			result.Remarks,
			result.Duration.Round(time.Millisecond),
		})
	}
	t.AppendFooter(table.Row{"", "", "", stats.Summary(), ""})
	t.Render()
}

func renderRecord(record damadam.Record) {
	t := newTable()
	t.SetTitle(record.Nickname)
	t.AppendRows([]table.Row{
		{"Verification", record.Verification},
		{"City", record.City},
		{"Gender", record.Gender},
		{"Married", record.Married},
		{"Age", record.Age},
		{"Joined", record.Joined},
		{"Followers", record.Followers},
		{"Posts", record.Posts},
		{"Friend", record.Friend},
		{"Last post", record.LastPostUrl},
		{"Last post time", record.LastPostTime},
		{"Image", record.Image},
		{"Profile", record.ProfileLink},
		{"Intro", record.Intro},
	})
	t.Render()
}
