package xlsx

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"student_registry/internal/model"

	"github.com/xuri/excelize/v2"
)

var sample = []model.Student{
	{Name: "أحمد محمد", Phone: "+201012345678", Code: "MTD25-02", RegisteredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	{Name: "فاطمة علي", Phone: "+201187654321", Code: "MTD25-01", RegisteredAt: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)},
}

func TestEncode_HeaderAndRows(t *testing.T) {
	codec := NewCodec(time.UTC)
	var buf bytes.Buffer
	if err := codec.Encode(&buf, sample, ""); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	rows, err := codec.ReadRows(&buf)
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], Header()) {
		t.Errorf("header: %v", rows[0])
	}
	want := []string{"أحمد محمد", "+201012345678", "MTD25-02", "2025/03/01 12:00:00"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("first data row: %v", rows[1])
	}
}

func TestEncode_TitleVariantRoundTrip(t *testing.T) {
	codec := NewCodec(time.UTC)
	var buf bytes.Buffer
	if err := codec.Encode(&buf, sample, "بيانات الطلاب"); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	results, err := codec.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 rows, got %d", len(results))
	}
	if results[0].Entry.Name != "أحمد محمد" || results[0].Entry.Phone != "+201012345678" || !results[0].Valid() {
		t.Errorf("unexpected first row: %+v", results[0])
	}
	if results[0].Line != 4 {
		t.Errorf("line: want 4, got %d", results[0].Line)
	}
}

func TestParseRows_MissingPhoneColumn(t *testing.T) {
	rows := [][]string{
		{"اسم الطالب", "ملاحظات"},
		{"Ali", "x"},
	}
	_, err := ParseRows(rows)
	var missing *MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
	if missing.Column != HeaderPhone {
		t.Errorf("column: %q", missing.Column)
	}
	if !strings.Contains(err.Error(), HeaderPhone) {
		t.Errorf("error must name the column: %v", err)
	}
}

func TestParseRows_MissingNameColumn(t *testing.T) {
	_, err := ParseRows([][]string{{"Name", "Phone"}})
	var missing *MissingColumnError
	if !errors.As(err, &missing) || missing.Column != HeaderName {
		t.Fatalf("expected missing name column, got %v", err)
	}
}

func TestParseRows_TaggedResults(t *testing.T) {
	rows := [][]string{
		{"#", " رقم التليفون ", "اسم الطالب (ثلاثي)"},
		{"1", "0101234567", "Ali"},
		{"2", "", "NoPhone"},
		{},
		{"3", "0111111111"},
	}
	results, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	if !results[0].Valid() || results[0].Entry.Name != "Ali" || results[0].Entry.Phone != "0101234567" {
		t.Errorf("row 1: %+v", results[0])
	}
	if results[1].Valid() || results[2].Valid() {
		t.Errorf("rows with empty cells must be malformed: %+v", results[1:])
	}
	if results[2].Line != 5 {
		t.Errorf("line numbers must follow the sheet, got %d", results[2].Line)
	}
}

func TestParseRows_Empty(t *testing.T) {
	if _, err := ParseRows(nil); !errors.Is(err, ErrEmptyWorkbook) {
		t.Errorf("expected ErrEmptyWorkbook, got %v", err)
	}
	if _, err := ParseRows([][]string{{"", " "}}); !errors.Is(err, ErrEmptyWorkbook) {
		t.Errorf("expected ErrEmptyWorkbook for blank rows, got %v", err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	codec := NewCodec(nil)
	_, err := codec.Decode(strings.NewReader("not a zip"))
	if !errors.Is(err, ErrCorruptWorkbook) {
		t.Errorf("expected ErrCorruptWorkbook, got %v", err)
	}
}

func TestDecode_ForeignWorkbook(t *testing.T) {
	f := excelize.NewFile()
	_ = f.SetSheetRow("Sheet1", "A1", &[]interface{}{"رقم التليفون", "اسم الطالب"})
	_ = f.SetSheetRow("Sheet1", "A2", &[]interface{}{1012345678, "Mona"})
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	results, err := NewCodec(nil).Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(results) != 1 || results[0].Entry.Phone != "1012345678" || results[0].Entry.Name != "Mona" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("بيانات_الطلاب"); got != "بيانات_الطلاب.xlsx" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName(" "); got != "students.xlsx" {
		t.Errorf("FileName blank = %q", got)
	}
}
