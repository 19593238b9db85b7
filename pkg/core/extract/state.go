package extract

import (
	"strings"

	"github.com/duneshique/sharex-settlement/pkg/models"
)

// Pool ratios printed on statements.
const (
	OperatorRatio = 0.70
	PartnerRatio  = 0.75
)

// SectionState is the section a statement scan is currently in. It is passed
// from line to line; nothing else carries state across lines.
type SectionState struct {
	Section models.Section
	Ratio   float64
}

var (
	startState    = SectionState{Section: models.SectionUnknown}
	operatorState = SectionState{Section: models.SectionPlusX, Ratio: OperatorRatio}
	partnerState  = SectionState{Section: models.SectionUnion, Ratio: PartnerRatio}
)

// LineResult is the outcome of scanning one line.
type LineResult struct {
	State   SectionState
	Row     *models.CourseSettlementRow
	Warning error
}

// LineFunc scans a single line given the state left by the previous one.
type LineFunc func(state SectionState, line string) LineResult

// Fold runs fn over lines in order, threading the section state.
func Fold(lines []string, fn LineFunc) ([]models.CourseSettlementRow, []error) {
	var (
		rows     []models.CourseSettlementRow
		warnings []error
	)
	state := startState
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		res := fn(state, line)
		state = res.State
		if res.Row != nil {
			rows = append(rows, *res.Row)
		}
		if res.Warning != nil {
			warnings = append(warnings, res.Warning)
		}
	}
	return rows, warnings
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}
