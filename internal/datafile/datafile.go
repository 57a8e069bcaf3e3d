// Package datafile writes sweep results to disk the way the lab's analysis
// scripts expect them: fixed-width columns under data/, and an append-only
// run log with start/end banners.
package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/condmatlab/gateman/internal/model"
)

// BaseName builds the data file stem for a run: date, temperature, measured
// and swept labels, optional comments. The unique _runN suffix is added by
// Create.
func BaseName(kind model.RunKind, temperature, measured, xLabel, yLabel, comments string, now time.Time) string {
	var name string
	switch kind {
	case model.Kind2D:
		name = fmt.Sprintf("%s_%s_[%s]_vs_[%s]_[%s]", now.Format("20060102"), temperature, measured, xLabel, yLabel)
	case model.KindTime:
		name = fmt.Sprintf("%s_%s_[%s]_vs_time", now.Format("20060102"), temperature, measured)
	default:
		name = fmt.Sprintf("%s_%s_[%s]_vs_[%s]", now.Format("20060102"), temperature, measured, xLabel)
	}
	if comments != "" {
		name += "_" + comments
	}
	return name
}

// File is one run's data file under dir/data.
type File struct {
	name string
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create opens data/<base>_runN.txt under dir, taking the first N not
// already on disk so reruns never overwrite earlier data.
func Create(dir, base string) (*File, error) {
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_run%d", base, n)
		path := filepath.Join(dataDir, name+".txt")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating data file: %w", err)
		}
		return &File{name: name, path: path, f: f, w: bufio.NewWriter(f)}, nil
	}
}

// Name returns the file stem including the _runN suffix, without extension.
func (f *File) Name() string { return f.name }

// Path returns the full path of the data file.
func (f *File) Path() string { return f.path }

// Header writes the column header, each label right-aligned to the column
// width used by the data rows.
func (f *File) Header(cols ...string) error {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%16s", c)
	}
	if _, err := fmt.Fprintln(f.w, strings.Join(parts, " ")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return f.w.Flush()
}

// Row1D appends one (swept voltage, measured current) row.
func (f *File) Row1D(x, current float64) error {
	return f.row(fmt.Sprintf("%16.4f %16.8f\n", x, current))
}

// Row2D appends one (outer voltage, swept voltage, measured current) row.
func (f *File) Row2D(y, x, current float64) error {
	return f.row(fmt.Sprintf("%16.4f %16.4f %16.8f\n", y, x, current))
}

// RowTime appends one (elapsed seconds, measured current) row.
func (f *File) RowTime(seconds, current float64) error {
	return f.row(fmt.Sprintf("%16.2f %16.8f\n", seconds, current))
}

func (f *File) row(line string) error {
	if _, err := f.w.WriteString(line); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	// Rows are flushed as written so a crashed sweep leaves usable data.
	return f.w.Flush()
}

// Close flushes and closes the data file.
func (f *File) Close() error {
	if err := f.w.Flush(); err != nil {
		f.f.Close()
		return fmt.Errorf("flushing data file: %w", err)
	}
	return f.f.Close()
}
