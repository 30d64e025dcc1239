package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

func ToCSV(rows []Row, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Goal", "Title", "Progress", "Required", "Unit", "Percent", "Unlocked At"}); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			r.GoalID,
			r.Title,
			formatNumber(r.Progress),
			formatNumber(r.Required),
			r.Unit,
			fmt.Sprintf("%.0f", r.Percent),
			r.UnlockedAt,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
