package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"buzzbatch/internal/coverage"
)

const (
	colStart          = "start"
	colEnd            = "end"
	colClassPredicted = "class_predicted"
	colScorePredicted = "score_predicted"
	scorePrefix       = "score_"
)

// Row is one analyzed span in absolute source time.
type Row struct {
	Start  float64
	End    float64
	Class  string
	Score  float64
	Scores []float64
}

// Table is the content of one output file. Classes names the per-class score
// columns; it is empty when only the predicted class is recorded.
type Table struct {
	Classes []string
	Rows    []Row
}

// Coverage returns the spans the table's rows cover.
func (t Table) Coverage() []coverage.Interval {
	out := make([]coverage.Interval, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, coverage.Interval{Start: row.Start, End: row.End})
	}
	return out
}

// OutputPath mirrors path from inputRoot into outputRoot, replacing the file
// extension with suffix. Files outside inputRoot land directly in outputRoot.
func OutputPath(inputRoot, outputRoot, path, suffix string) string {
	rel, err := filepath.Rel(inputRoot, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outputRoot, rel+suffix)
}

// ReadTable parses the table at path. A missing file yields an empty table.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	table, err := decodeTable(f)
	if err != nil {
		return Table{}, fmt.Errorf("read results %s: %w", path, err)
	}
	return table, nil
}

// ReadCoverage returns the intervals already present in the table at path.
func ReadCoverage(path string) ([]coverage.Interval, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, nil
	}
	return table.Coverage(), nil
}

func decodeTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return Table{}, err
	}

	index := make(map[string]int, len(header))
	var table Table
	var scoreCols []int
	for i, name := range header {
		name = strings.TrimSpace(name)
		index[name] = i
		if strings.HasPrefix(name, scorePrefix) && name != colScorePredicted {
			table.Classes = append(table.Classes, strings.TrimPrefix(name, scorePrefix))
			scoreCols = append(scoreCols, i)
		}
	}
	startCol, okStart := index[colStart]
	endCol, okEnd := index[colEnd]
	if !okStart || !okEnd {
		return Table{}, fmt.Errorf("header %v lacks %s/%s columns", header, colStart, colEnd)
	}
	classCol, hasClass := index[colClassPredicted]
	scoreCol, hasScore := index[colScorePredicted]

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, err
		}
		if len(record) != len(header) {
			return Table{}, fmt.Errorf("line %d: %d fields, want %d", line, len(record), len(header))
		}
		var row Row
		if row.Start, err = parseFloat(record[startCol]); err != nil {
			return Table{}, fmt.Errorf("line %d: start: %w", line, err)
		}
		if row.End, err = parseFloat(record[endCol]); err != nil {
			return Table{}, fmt.Errorf("line %d: end: %w", line, err)
		}
		if hasClass {
			row.Class = record[classCol]
		}
		if hasScore {
			if row.Score, err = parseFloat(record[scoreCol]); err != nil {
				return Table{}, fmt.Errorf("line %d: score: %w", line, err)
			}
		}
		if len(scoreCols) > 0 {
			row.Scores = make([]float64, len(scoreCols))
			for i, col := range scoreCols {
				if row.Scores[i], err = parseFloat(record[col]); err != nil {
					return Table{}, fmt.Errorf("line %d: %s: %w", line, header[col], err)
				}
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseFloat(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

// WriteTable replaces the table at path. The file is written to a temporary
// sibling first and renamed into place.
func WriteTable(path string, table Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp results: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encodeTable(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("write results %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync results %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close results %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace results %s: %w", path, err)
	}
	return nil
}

func encodeTable(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	header := []string{colStart, colEnd, colClassPredicted, colScorePredicted}
	for _, class := range table.Classes {
		header = append(header, scorePrefix+class)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range table.Rows {
		if len(table.Classes) > 0 && len(row.Scores) != len(table.Classes) {
			return fmt.Errorf("row at %s has %d scores for %d classes", formatTime(row.Start), len(row.Scores), len(table.Classes))
		}
		record = record[:4]
		record[0] = formatTime(row.Start)
		record[1] = formatTime(row.End)
		record[2] = row.Class
		record[3] = formatScore(row.Score)
		for _, score := range row.Scores {
			record = append(record, formatScore(score))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTime(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Merge concatenates incoming rows onto existing ones and orders the result by
// start time. Rows with equal starts keep their arrival order.
func Merge(existing, incoming Table) (Table, error) {
	classes := existing.Classes
	switch {
	case len(existing.Rows) == 0:
		classes = incoming.Classes
	case len(incoming.Rows) > 0 && !slices.Equal(existing.Classes, incoming.Classes):
		return Table{}, fmt.Errorf("score columns differ: existing %v, new %v", existing.Classes, incoming.Classes)
	}
	rows := make([]Row, 0, len(existing.Rows)+len(incoming.Rows))
	rows = append(rows, existing.Rows...)
	rows = append(rows, incoming.Rows...)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Start < rows[b].Start })
	return Table{Classes: classes, Rows: rows}, nil
}
