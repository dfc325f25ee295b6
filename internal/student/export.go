package student

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Students"

var exportHeader = []any{"roll_number", "first_name", "last_name", "age", "email_address"}

// Exporter renders students as a single-sheet workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// SaveFile writes the workbook to path, creating parent directories, and
// returns the absolute path written.
func (e *Exporter) SaveFile(students []Student, path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", &ExportError{Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", &ExportError{Path: absPath, Err: err}
	}

	f, err := e.build(students)
	if err != nil {
		return "", &ExportError{Path: absPath, Err: err}
	}
	defer f.Close()

	// absPath only ever holds a complete workbook.
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".*.tmp")
	if err != nil {
		return "", &ExportError{Path: absPath, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", &ExportError{Path: absPath, Err: err}
	}
	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return "", &ExportError{Path: absPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &ExportError{Path: absPath, Err: err}
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		return "", &ExportError{Path: absPath, Err: err}
	}
	return absPath, nil
}

func (e *Exporter) Write(students []Student, w io.Writer) error {
	f, err := e.build(students)
	if err != nil {
		return &ExportError{Err: err}
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return &ExportError{Err: err}
	}
	return nil
}

func (e *Exporter) build(students []Student) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, s := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{s.RollNumber, s.FirstName, s.LastName, s.Age, s.EmailAddress}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}
