package xlsx

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"student_registry/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	HeaderName  = "اسم الطالب"
	HeaderPhone = "رقم التليفون"
	HeaderCode  = "كود الطالب"
	HeaderTime  = "تاريخ/وقت التسجيل"

	SheetName  = "الطلاب"
	TimeLayout = "2006/01/02 15:04:05"
)

var (
	ErrEmptyWorkbook   = errors.New("workbook has no rows")
	ErrCorruptWorkbook = errors.New("workbook cannot be read")

	errEmptyCell = errors.New("name or phone is empty")
)

// MissingColumnError в заголовке нет обязательного столбца
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found in header row", e.Column)
}

// Header порядок столбцов выгрузки
func Header() []string {
	return []string{HeaderName, HeaderPhone, HeaderCode, HeaderTime}
}

var colWidths = []float64{25, 15, 15, 25}

// FileName имя файла выгрузки
func FileName(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "students"
	}
	return base + ".xlsx"
}

// Codec кодек .xlsx. Location задает часовой пояс для столбца времени.
type Codec struct {
	Location *time.Location
}

func NewCodec(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	return &Codec{Location: loc}
}

// Encode пишет одну вкладку: заголовок и по строке на студента в переданном порядке.
// Если title не пустой, сверху добавляются строка заголовка и пустая строка.
func (c *Codec) Encode(w io.Writer, students []model.Student, title string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rtl := true
	if err := f.SetSheetView(SheetName, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return fmt.Errorf("sheet view: %w", err)
	}

	row := 1
	if title = strings.TrimSpace(title); title != "" {
		if err := c.writeTitle(f, title); err != nil {
			return err
		}
		row = 3
	}

	if err := setRow(f, row, toCells(Header())); err != nil {
		return err
	}
	for _, s := range students {
		row++
		cells := []interface{}{s.Name, s.Phone, s.Code, s.RegisteredAt.In(c.Location).Format(TimeLayout)}
		if err := setRow(f, row, cells); err != nil {
			return err
		}
	}

	for i, width := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column width %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (c *Codec) writeTitle(f *excelize.File, title string) error {
	if err := f.SetCellStr(SheetName, "A1", title); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(Header()))
	if err := f.MergeCell(SheetName, "A1", last+"1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("title style: %w", err)
	}
	return f.SetCellStyle(SheetName, "A1", last+"1", style)
}

func setRow(f *excelize.File, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ReadRows читает первую вкладку книги как строки ячеек
func (c *Codec) ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWorkbook, err)
	}
	return rows, nil
}

// Decode читает книгу и размечает строки данных.
func (c *Codec) Decode(r io.Reader) ([]model.RowResult, error) {
	rows, err := c.ReadRows(r)
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}

// ParseRows находит столбцы имени и телефона по вхождению подписи и
// превращает остальные строки в размеченные результаты.
func ParseRows(rows [][]string) ([]model.RowResult, error) {
	start := headerRow(rows)
	if start < 0 {
		return nil, ErrEmptyWorkbook
	}
	header := rows[start]
	nameCol := findColumn(header, HeaderName)
	if nameCol < 0 {
		return nil, &MissingColumnError{Column: HeaderName}
	}
	phoneCol := findColumn(header, HeaderPhone)
	if phoneCol < 0 {
		return nil, &MissingColumnError{Column: HeaderPhone}
	}

	results := make([]model.RowResult, 0, len(rows)-start-1)
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		entry := model.Entry{
			Name:  strings.TrimSpace(cellAt(row, nameCol)),
			Phone: strings.TrimSpace(cellAt(row, phoneCol)),
		}
		res := model.RowResult{Line: i + 1, Entry: entry}
		if entry.Name == "" || entry.Phone == "" {
			res.Err = errEmptyCell
		}
		results = append(results, res)
	}
	return results, nil
}

func findColumn(header []string, label string) int {
	for i, h := range header {
		if strings.Contains(strings.TrimSpace(h), label) {
			return i
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// headerRow первая строка с подписью имени или телефона; выгрузка с титулом
// начинается с заголовка таблицы и пустой строки. Если подписей нет нигде,
// заголовком считается первая непустая строка.
func headerRow(rows [][]string) int {
	first := -1
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		if first < 0 {
			first = i
		}
		if findColumn(row, HeaderName) >= 0 || findColumn(row, HeaderPhone) >= 0 {
			return i
		}
	}
	return first
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
