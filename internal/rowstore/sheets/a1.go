package sheets

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnLetter converts a 0-based column index into its A1 letters
// (0 -> A, 25 -> Z, 26 -> AA).
func ColumnLetter(column int) string {
	result := ""
	column++
	for column > 0 {
		column--
		result = string(rune('A'+column%26)) + result
		column /= 26
	}
	return result
}

func quoteSheet(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

func cellRange(table string, rowIndex, column int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(table), ColumnLetter(column), rowIndex)
}

func headerRange(table string) string {
	return quoteSheet(table) + "!1:1"
}

var spreadsheetUrlId = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetId accepts either a full spreadsheet url or a bare id.
func SpreadsheetId(urlOrId string) (string, error) {
	urlOrId = strings.TrimSpace(urlOrId)
	if urlOrId == "" {
		return "", fmt.Errorf("empty spreadsheet url")
	}
	if groups := spreadsheetUrlId.FindStringSubmatch(urlOrId); groups != nil {
		return groups[1], nil
	}
	if strings.ContainsAny(urlOrId, "/:?") {
		return "", fmt.Errorf("could not find a spreadsheet id in %q", urlOrId)
	}
	return urlOrId, nil
}
