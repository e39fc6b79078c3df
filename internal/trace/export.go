package trace

import (
	"encoding/json"
	"os"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Events []Event     `json:"events"`
}

// ExportJSON writes a run and its events to path as one JSON document.
func ExportJSON(path string, meta RunMetadata, events []Event) error {
	data := ExportData{Run: meta, Events: events}
	if data.Events == nil {
		data.Events = []Event{}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
