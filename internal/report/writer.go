package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/radiusdt/campaign-aggregator/internal/models"
)

// Report names, used in errors and published rows.
const (
	NameTopCTR = "top_ctr"
	NameTopCPA = "top_cpa"
	NameXLSX   = "workbook"
)

// WriteError identifies which report could not be written.
type WriteError struct {
	Report string
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s report %s: %v", e.Report, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FileWriter writes reports into an output directory.
type FileWriter struct {
	CTRFile  string
	CPAFile  string
	CSV      bool
	XLSX     bool
	XLSXFile string
}

// NewFileWriter returns a writer producing the two CSV reports under their
// default names.
func NewFileWriter() *FileWriter {
	return &FileWriter{
		CTRFile:  "top10_ctr.csv",
		CPAFile:  "top10_cpa.csv",
		CSV:      true,
		XLSXFile: "top10.xlsx",
	}
}

// Write creates dir if needed and writes each enabled report, returning
// the paths written. Each file is replaced atomically, so a failed run
// never leaves a truncated report behind.
func (fw *FileWriter) Write(dir string, reports models.Reports) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string

	if fw.CSV {
		ctrPath := filepath.Join(dir, fw.CTRFile)
		if err := writeFileAtomic(ctrPath, func(w io.Writer) error {
			return WriteCSV(w, reports.TopCTR)
		}); err != nil {
			return paths, &WriteError{Report: NameTopCTR, Path: ctrPath, Err: err}
		}
		paths = append(paths, ctrPath)

		cpaPath := filepath.Join(dir, fw.CPAFile)
		if err := writeFileAtomic(cpaPath, func(w io.Writer) error {
			return WriteCSV(w, reports.TopCPA)
		}); err != nil {
			return paths, &WriteError{Report: NameTopCPA, Path: cpaPath, Err: err}
		}
		paths = append(paths, cpaPath)
	}

	if fw.XLSX {
		xlsxPath := filepath.Join(dir, fw.XLSXFile)
		if err := writeFileAtomic(xlsxPath, func(w io.Writer) error {
			return WriteXLSX(w, reports)
		}); err != nil {
			return paths, &WriteError{Report: NameXLSX, Path: xlsxPath, Err: err}
		}
		paths = append(paths, xlsxPath)
	}

	return paths, nil
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over path once fill succeeds.
func writeFileAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
