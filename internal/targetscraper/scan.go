package targetscraper

import (
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/telemetry"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/lib/textutil"
	"errors"
	"fmt"
	"strings"
)

const (
	report_scan_duplicate   = "scan.duplicate"
	report_scan_interrupted = "scan.interrupted"
)

// Target is one queued row of the Target table.
type Target struct {
	// 1-based sheet row
	Row      int
	Nickname string
	Source   string
	Urgent   bool
	// the status cell as it was read
	RawStatus string
}

type ScanResult struct {
	// pending targets in sheet order
	Pending []Target
	// rows left in Processing by an attempt that never finished, they are
	// reported but never picked up again automatically
	Interrupted []Target
	// pending rows skipped because their nickname was already queued
	Duplicates []Target
}

type Scanner struct {
	store rowstore.Store
	tel   telemetry.API
	// truncates the worklist, 0 means no limit
	MaxTargets int
}

func NewScanner(store rowstore.Store, tel telemetry.API) *Scanner {
	assert.NotNil(store)
	assert.NotNil(tel)
	return &Scanner{
		store: store,
		tel:   telemetry.NewScopedAPI("scanner", tel),
	}
}

// Scan reads the Target table once and returns the pending worklist. An empty
// worklist is not an error.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	rows, err := s.store.ReadAll(ctx, rowstore.TableTarget)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan targets: %w", err)
	}
	_, rows = rowstore.SplitHeader(rows)

	var result ScanResult
	queued := map[string]bool{}
	for _, row := range rows {
		nickname := strings.TrimSpace(row.Get(targetNickname))
		if nickname == "" {
			continue
		}
		status, urgent := ParseStatus(row.Get(targetStatus))
		target := Target{
			Row:       row.Index,
			Nickname:  nickname,
			Source:    NormalizeSource(row.Get(targetSource)),
			Urgent:    urgent,
			RawStatus: row.Get(targetStatus),
		}

		switch status {
		case StatusPending:
			key := textutil.NormalizeName(nickname)
			if queued[key] {
				s.tel.ReportDebug(report_scan_duplicate, "nickname", nickname, "row", row.Index)
				result.Duplicates = append(result.Duplicates, target)
				continue
			}
			queued[key] = true
			result.Pending = append(result.Pending, target)
		case StatusProcessing:
			s.tel.ReportWarning(
				report_scan_interrupted,
				errors.New("row was left in Processing by an earlier run"),
				"nickname", nickname,
				"row", row.Index,
			)
			result.Interrupted = append(result.Interrupted, target)
		}
	}

	if s.MaxTargets > 0 && len(result.Pending) > s.MaxTargets {
		result.Pending = result.Pending[:s.MaxTargets]
	}
	return result, nil
}
