package damadam

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is how dates are written into the sheet (ex. 05-Mar-24).
const DateLayout = "02-Jan-06"

var unitAbbreviations = []struct {
	pattern *regexp.Regexp
	unit    string
}{
	{regexp.MustCompile(`\bsecs?\b`), "seconds"},
	{regexp.MustCompile(`\bmins?\b`), "minutes"},
	{regexp.MustCompile(`\bhrs?\b`), "hours"},
	{regexp.MustCompile(`\bwks?\b`), "weeks"},
	{regexp.MustCompile(`\byrs?\b`), "years"},
	{regexp.MustCompile(`\bmons?\b`), "months"},
}

var (
	singleUnitAgo = regexp.MustCompile(`\b(?:a|an|one)\s+(second|minute|hour|day|week|month|year)s?\s*ago\b`)
	countUnitAgo  = regexp.MustCompile(`(\d+)\s*(second|minute|hour|day|week|month|year)s?\s*ago`)
)

func unitDuration(unit string, amount int) time.Duration {
	day := 24 * time.Hour
	switch unit {
	case "second":
		return time.Duration(amount) * time.Second
	case "minute":
		return time.Duration(amount) * time.Minute
	case "hour":
		return time.Duration(amount) * time.Hour
	case "day":
		return time.Duration(amount) * day
	case "week":
		return time.Duration(amount) * 7 * day
	case "month":
		return time.Duration(amount) * 30 * day
	case "year":
		return time.Duration(amount) * 365 * day
	}
	return 0
}

// AbsoluteDate turns relative times shown by the site ("2 months ago",
// "yesterday", "5 mins ago") into a DateLayout date counted back from now.
// Text it does not understand is returned trimmed but otherwise unchanged.
func AbsoluteDate(relative string, now time.Time) string {
	relative = strings.TrimSpace(relative)
	if relative == "" {
		return ""
	}

	text := strings.ToLower(relative)
	for _, abbr := range unitAbbreviations {
		text = abbr.pattern.ReplaceAllString(text, abbr.unit)
	}

	switch text {
	case "just now", "now", "today":
		return now.Format(DateLayout)
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout)
	}

	if groups := singleUnitAgo.FindStringSubmatch(text); groups != nil {
		return now.Add(-unitDuration(groups[1], 1)).Format(DateLayout)
	}
	groups := countUnitAgo.FindStringSubmatch(text)
	if groups == nil {
		return relative
	}
	amount, err := strconv.Atoi(groups[1])
	if err != nil {
		return relative
	}
	return now.Add(-unitDuration(groups[2], amount)).Format(DateLayout)
}
