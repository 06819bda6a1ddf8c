package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pipeline"
)

// Artifact file names inside a session pack directory.
const (
	ParquetFileName = "timeseries.parquet"
	SummaryFileName = "summary.json"
)

const timeColumn = "ts"

// Writer persists session packs under a root output directory.
type Writer struct {
	outDir string
}

// NewWriter creates a new pack writer rooted at outDir.
func NewWriter(outDir string) *Writer {
	return &Writer{outDir: outDir}
}

// Write persists the wide frame as a Parquet artifact and the KPI report
// as summary.json under <outDir>/<sessionId>. Any pre-existing artifact is
// replaced, never appended to, so at most one artifact per session exists.
// Filesystem failures are fatal to the build.
func (w *Writer) Write(sessionID string, frame *pipeline.Frame, kpis map[string]interface{}) (*models.SessionPack, error) {
	packDir := filepath.Join(w.outDir, sessionID)
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pack directory: %w", err)
	}

	parquetPath := filepath.Join(packDir, ParquetFileName)
	if err := os.Remove(parquetPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale artifact: %w", err)
	}
	size, err := writeParquet(parquetPath, frame)
	if err != nil {
		return nil, err
	}

	summaryPath := filepath.Join(packDir, SummaryFileName)
	doc, err := json.MarshalIndent(kpis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(summaryPath, doc, 0o644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	absDir, err := filepath.Abs(packDir)
	if err != nil {
		absDir = packDir
	}

	signals := make([]string, len(frame.Signals))
	copy(signals, frame.Signals)

	return &models.SessionPack{
		SessionID:   sessionID,
		PackPath:    absDir,
		Summary:     kpis,
		ParquetSize: size,
		Signals:     signals,
	}, nil
}

// writeParquet writes the frame as one row group. The time column is a
// required double (downsampled times are fractional); every signal column
// is an optional double with missing cells written as nulls.
func writeParquet(path string, frame *pipeline.Frame) (int64, error) {
	group := parquet.Group{
		timeColumn: parquet.Leaf(parquet.DoubleType),
	}
	for _, sig := range frame.Signals {
		group[sig] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	schema := parquet.NewSchema("timeseries", group)

	// Group fields are ordered by name in the schema, so the column index
	// of each field is its rank among the sorted names.
	names := make([]string, 0, len(frame.Signals)+1)
	names = append(names, timeColumn)
	names = append(names, frame.Signals...)
	sort.Strings(names)
	colIndex := make(map[string]int, len(names))
	for i, n := range names {
		colIndex[n] = i
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create artifact: %w", err)
	}
	writer := parquet.NewWriter(f, schema)

	row := make(parquet.Row, len(names))
	for i := 0; i < frame.Rows(); i++ {
		for _, name := range names {
			col := colIndex[name]
			if name == timeColumn {
				row[col] = parquet.ValueOf(frame.Times[i]).Level(0, 0, col)
				continue
			}
			if v, ok := frame.Value(i, name); ok {
				row[col] = parquet.ValueOf(v).Level(0, 1, col)
			} else {
				row[col] = parquet.NullValue().Level(0, 0, col)
			}
		}
		if _, err := writer.WriteRows([]parquet.Row{row}); err != nil {
			f.Close()
			return 0, fmt.Errorf("write artifact rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("finalize artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close artifact: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	return info.Size(), nil
}
