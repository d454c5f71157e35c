package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"travelbook/internal/core"
	ports "travelbook/internal/sheets"
)

// parseExpenseRows converts a values matrix (as returned by Sheets API) back
// into rows. Header rows and rows that do not parse are skipped.
func parseExpenseRows(values [][]interface{}) []ports.ExpenseRow {
	out := make([]ports.ExpenseRow, 0, len(values))
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 7 {
			continue
		}
		id, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		date, err := core.ParseDate(cols[1])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(cols[5], ",", "."))
		if err != nil {
			continue
		}
		out = append(out, ports.ExpenseRow{
			ExpenseID:    id,
			Date:         date,
			Trip:         cols[2],
			Description:  cols[3],
			Category:     core.ParseCategory(cols[4]),
			Amount:       amount,
			Currency:     cols[6],
			Reimbursable: strings.EqualFold(safeGet(cols, 7), "yes"),
		})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
