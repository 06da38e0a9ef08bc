package evaluation

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV writes the per-container rows to path, one header plus one row per
// evaluated container.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"deployment", "pod", "container", "true_class", "pred_class", "score", "correct"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Deployment,
			row.Pod,
			row.Container,
			row.TrueClass,
			row.PredClass,
			strconv.FormatFloat(row.Score, 'f', 2, 64),
			strconv.FormatBool(row.Correct),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", row.Pod, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}
