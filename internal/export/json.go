package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const timeLayout = time.RFC3339

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Unlocked   int         `json:"unlocked"`
	Goals      []jsonEntry `json:"goals"`
}

type jsonEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Progress   float64 `json:"progress"`
	Required   float64 `json:"required"`
	Unit       string  `json:"unit,omitempty"`
	Percent    float64 `json:"percent"`
	UnlockedAt string  `json:"unlocked_at,omitempty"`
	Custom     bool    `json:"custom,omitempty"`
}

func ToJSON(rows []Row, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(timeLayout),
		Count:      len(rows),
		Goals:      make([]jsonEntry, 0, len(rows)),
	}

	for _, r := range rows {
		if r.Unlocked {
			export.Unlocked++
		}
		export.Goals = append(export.Goals, jsonEntry{
			ID:         r.GoalID,
			Title:      r.Title,
			Progress:   r.Progress,
			Required:   r.Required,
			Unit:       r.Unit,
			Percent:    r.Percent,
			UnlockedAt: r.UnlockedAt,
			Custom:     r.Custom,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
