package audit

import (
	"encoding/csv"
	"fmt"
	"os"
)

// DeleteList collects registry identifiers that still need manual deletion
// after a bulk correction run. It is persisted as a CSV audit trail.
type DeleteList struct {
	ids []string
}

func (l *DeleteList) Add(broID string) {
	l.ids = append(l.ids, broID)
}

func (l *DeleteList) IDs() []string {
	return l.ids
}

func (l *DeleteList) Len() int {
	return len(l.ids)
}

func (l *DeleteList) WriteCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create delete list %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"broId"}); err != nil {
		return fmt.Errorf("audit: write delete list header: %w", err)
	}
	for _, id := range l.ids {
		if err := writer.Write([]string{id}); err != nil {
			return fmt.Errorf("audit: write delete list row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("audit: flush delete list: %w", err)
	}
	return nil
}
