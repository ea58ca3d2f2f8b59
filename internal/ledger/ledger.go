// Package ledger stores olympiad records as rows of an .xlsx workbook.
//
// Every operation opens the workbook, works on it and closes it again. Append
// reads the whole table to pick max(id)+1 and then rewrites the whole file with
// the new row added. Nothing serialises concurrent appends, so two callers that
// read the same table before either writes get the same id.
package ledger

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"olympiad-tracker/internal/models"
)

var (
	ErrNotFound       = errors.New("olympiad not found")
	ErrHeaderMismatch = errors.New("ledger header does not match")
	ErrInvalidText    = errors.New("text contains control characters a workbook cannot hold")
)

// Header is the first row of the workbook. Column order is part of the file format.
var Header = []string{
	"ID", "Title", "Level", "Description", "Venue", "Date",
	"Organizer", "Student ID", "Admin ID", "File Path",
}

type Ledger struct {
	path string
}

// Open returns the ledger stored at path, creating the workbook with its header
// row when the file does not exist yet.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	_, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := l.create(); err != nil {
			return nil, err
		}
		return l, nil
	case err != nil:
		return nil, errors.Wrap(err, "stat ledger")
	}

	if err := l.checkHeader(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

func (l *Ledger) create() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create ledger directory")
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(activeSheet(f), "A1", &header); err != nil {
		return errors.Wrap(err, "write ledger header")
	}
	return errors.Wrap(f.SaveAs(l.path), "create ledger")
}

func (l *Ledger) checkHeader() error {
	rows, err := l.rows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.Wrap(ErrHeaderMismatch, "empty workbook")
	}
	got := rows[0]
	if len(got) != len(Header) {
		return errors.Wrapf(ErrHeaderMismatch, "got %d columns, want %d", len(got), len(Header))
	}
	for i := range Header {
		if got[i] != Header[i] {
			return errors.Wrapf(ErrHeaderMismatch, "column %d is %q, want %q", i+1, got[i], Header[i])
		}
	}
	return nil
}

// Append assigns the next id to rec, writes it as the last row and returns the id.
func (l *Ledger) Append(rec models.Olympiad) (int, error) {
	id, err := l.nextID()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	if err := l.write(rec); err != nil {
		return 0, err
	}
	return id, nil
}

// ListAll returns every record in file order.
func (l *Ledger) ListAll() ([]models.Olympiad, error) {
	rows, err := l.rows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]models.Olympiad, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "ledger row %d", i+2)
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindByID scans the ledger for the first record with the given id.
func (l *Ledger) FindByID(id int) (*models.Olympiad, error) {
	records, err := l.ListAll()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

func (l *Ledger) nextID() (int, error) {
	records, err := l.ListAll()
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, rec := range records {
		if rec.ID > highest {
			highest = rec.ID
		}
	}
	return highest + 1, nil
}

func (l *Ledger) write(rec models.Olympiad) error {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return errors.Wrap(err, "open ledger")
	}
	defer f.Close()

	sheet := activeSheet(f)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return errors.Wrap(err, "read ledger")
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return errors.Wrap(err, "ledger cell")
	}

	text := []struct{ name, value string }{
		{"title", rec.Title}, {"level", rec.Level}, {"description", rec.Description},
		{"venue", rec.Venue}, {"date", rec.Date}, {"organizer", rec.Organizer},
		{"file path", rec.FilePath},
	}
	for _, field := range text {
		if !ValidText(field.value) {
			return errors.Wrap(ErrInvalidText, field.name)
		}
	}

	values := []interface{}{
		rec.ID, escapeText(rec.Title), escapeText(rec.Level), escapeText(rec.Description),
		escapeText(rec.Venue), escapeText(rec.Date), escapeText(rec.Organizer),
		rec.StudentID, rec.AdminID, escapeText(rec.FilePath),
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrap(err, "write ledger row")
	}
	return errors.Wrap(f.Save(), "save ledger")
}

func (l *Ledger) rows() ([][]string, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger")
	}
	defer f.Close()

	rows, err := f.GetRows(activeSheet(f))
	if err != nil {
		return nil, errors.Wrap(err, "read ledger")
	}
	return rows, nil
}

// ValidText reports whether s can be stored in a cell unchanged. Tab, line feed
// and carriage return are allowed; other C0 control characters are not.
func ValidText(s string) bool {
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// escapeText protects a literal "_x" from being read back as an _xHHHH_ escape.
func escapeText(s string) string {
	return strings.ReplaceAll(s, "_x", "_x005F_x")
}

func activeSheet(f *excelize.File) string {
	return f.GetSheetName(f.GetActiveSheetIndex())
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string) (models.Olympiad, error) {
	cells := make([]string, len(Header))
	copy(cells, row)

	id, err := parseInt(cells[0])
	if err != nil {
		return models.Olympiad{}, errors.Wrap(err, "id")
	}
	studentID, err := parseInt(cells[7])
	if err != nil {
		return models.Olympiad{}, errors.Wrap(err, "student id")
	}
	adminID, err := parseInt(cells[8])
	if err != nil {
		return models.Olympiad{}, errors.Wrap(err, "admin id")
	}

	return models.Olympiad{
		ID:          id,
		Title:       cells[1],
		Level:       cells[2],
		Description: cells[3],
		Venue:       cells[4],
		Date:        cells[5],
		Organizer:   cells[6],
		StudentID:   studentID,
		AdminID:     adminID,
		FilePath:    cells[9],
	}, nil
}

// parseInt accepts "7" and the "7.0" some spreadsheet editors write back.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, errors.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
