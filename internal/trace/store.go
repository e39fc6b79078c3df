package trace

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/pxwrap/internal/sdk"
)

const (
	metadataFile = "metadata.json"
	eventsFile   = "events.csv"
)

// ErrInvalidRunID is returned for run ids that would leave the store's
// base directory or name a nested path.
var ErrInvalidRunID = errors.New("trace: invalid run id")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	SDK       string             `json:"sdk"`
	Mode      string             `json:"mode"`
	Variant   string             `json:"variant"`
	Timestamp time.Time          `json:"timestamp"`
	Workers   int                `json:"workers"`
	Gravity   sdk.Vec3           `json:"gravity"`
	Steps     int                `json:"steps"`
	Dt        float64            `json:"dt"`
	StepMs    []float64          `json:"step_ms,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Save writes meta and events under a new run directory and returns the run id.
func (s *Store) Save(meta RunMetadata, events []Event) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%s_%d", meta.Variant, meta.Mode, meta.Timestamp.UnixNano())
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, eventsFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"seq", "time", "type", "kind", "id", "from", "to", "mode", "error"}); err != nil {
		return "", err
	}
	for _, e := range events {
		row := []string{
			strconv.Itoa(e.Seq),
			e.Time.Format(time.RFC3339Nano),
			string(e.Type),
			string(e.Kind),
			e.ID,
			e.From,
			e.To,
			e.Mode,
			e.Err,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns stored runs, oldest first. Unreadable runs are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadEvents(runID string) ([]Event, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.baseDir, runID, eventsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Event{}, nil
	}

	events := make([]Event, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 9 {
			continue
		}
		seq, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, rec[1])
		events = append(events, Event{
			Seq:  seq,
			Time: ts,
			Type: EventType(rec[2]),
			Kind: sdk.Kind(rec[3]),
			ID:   rec[4],
			From: rec[5],
			To:   rec[6],
			Mode: rec[7],
			Err:  rec[8],
		})
	}
	return events, nil
}

func checkRunID(id string) error {
	if id == "." || !filepath.IsLocal(id) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}
