package perf

import (
	"bufio"
	"fmt"
	"io"

	"trader/internal/ledger"
)

// FormatLine renders one report line:
//
//	closePrice totalBenefitPercent positionSize movingAveragePrice baselineBenefitPercent
func FormatLine(p ledger.Point) string {
	return fmt.Sprintf("%.2f %.2f %d %.2f %.2f\n", p.ClosePrice, p.TotalBenefitPct, p.Position, p.MovingAverage, p.BaselinePct)
}

// WriteReport writes one line per point.
func WriteReport(w io.Writer, points []ledger.Point) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := bw.WriteString(FormatLine(p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
