package targetscraper

import (
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/internal/scrapers/damadam"
	"fmt"
	"strings"
	"time"
)

// columns of the Target table
const (
	targetNickname = iota
	targetStatus
	targetRemarks
	targetSource
)

var TargetHeaders = []string{"Nickname", "Status", "Remarks", "Source"}

var ProfileHeaders = []string{
	"IMAGE",
	"NICK NAME",
	"TAGS",
	"LAST POST",
	"LAST POST TIME",
	"FRIEND",
	"CITY",
	"GENDER",
	"MARRIED",
	"AGE",
	"JOINED",
	"FOLLOWERS",
	"POSTS",
	"PROFILE LINK",
	"INTRO",
	"STATUS",
	"SOURCE",
	"DATETIME SCRAP",
}

var LogHeaders = []string{"Timestamp", "Nickname", "Outcome", "Detail"}

var DashboardHeaders = []string{
	"Run Start",
	"Processed",
	"Succeeded",
	"Failed",
	"Duration",
	"Stop Reason",
	"Run ID",
}

// Tables lists every table a run writes to with its header, the optional
// Tags table is not part of it.
var Tables = []struct {
	Name    string
	Headers []string
}{
	{rowstore.TableTarget, TargetHeaders},
	{rowstore.TableProfiles, ProfileHeaders},
	{rowstore.TableLogs, LogHeaders},
	{rowstore.TableDashboard, DashboardHeaders},
}

const (
	TimestampLayout = "02-Jan-06 03:04 PM"
	ClockLayout     = "03:04 PM"
)

const (
	SourceTarget = "Target"
	SourceManual = "Manual"
)

// NormalizeSource maps the Source cell of a target onto Target or Manual,
// anything unrecognized (including blank) is Manual.
func NormalizeSource(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), SourceTarget) {
		return SourceTarget
	}
	return SourceManual
}

// literal keeps user entered sheets from interpreting scraped text as a
// formula.
func literal(value string) string {
	if value == "" {
		return ""
	}
	switch value[0] {
	case '=', '+', '-', '@':
		return "'" + value
	}
	return value
}

func hyperlink(url, label string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`=HYPERLINK("%s", "%s")`, strings.ReplaceAll(url, `"`, `""`), label)
}

func image(url string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`=IMAGE("%s", 4, 50, 50)`, strings.ReplaceAll(url, `"`, `""`))
}

// EncodeProfile lays a record out in ProfileHeaders order. With formulas the
// link columns become IMAGE/HYPERLINK formulas and text is escaped so it is
// never evaluated.
func EncodeProfile(record damadam.Record, loc *time.Location, formulas bool) []string {
	text := func(s string) string { return s }
	imageCell := record.Image
	postCell := record.LastPostUrl
	profileCell := record.ProfileLink
	if formulas {
		text = literal
		imageCell = image(record.Image)
		postCell = hyperlink(record.LastPostUrl, "Post")
		profileCell = hyperlink(record.ProfileLink, "Profile")
	}

	return []string{
		imageCell,
		text(record.Nickname),
		text(record.Tags),
		postCell,
		text(record.LastPostTime),
		text(record.Friend),
		text(record.City),
		text(record.Gender),
		text(record.Married),
		text(record.Age),
		text(record.Joined),
		text(record.Followers),
		text(record.Posts),
		profileCell,
		text(record.Intro),
		string(record.Verification),
		text(record.Source),
		record.ScrapedAt.In(loc).Format(TimestampLayout),
	}
}

// LogEntry is one row of the append-only Logs table.
type LogEntry struct {
	Timestamp time.Time
	Nickname  string
	Outcome   string
	Detail    string
}

func (e LogEntry) Values(loc *time.Location) []string {
	return []string{
		e.Timestamp.In(loc).Format(TimestampLayout),
		literal(e.Nickname),
		e.Outcome,
		literal(e.Detail),
	}
}
