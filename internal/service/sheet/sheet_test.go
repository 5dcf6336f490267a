package sheet

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"student_registry/internal/model"

	"go.uber.org/zap/zaptest"
)

var students = []model.Student{
	{Name: "Ali", Phone: "+20101234567", Code: "MTD25-02", RegisteredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	{Name: "Mona", Phone: "+20111111111", Code: "MTD25-01", RegisteredAt: time.Date(2025, 2, 28, 9, 30, 0, 0, time.UTC)},
}

func TestBuildValues_Default(t *testing.T) {
	values := BuildValues(students, nil, time.UTC)
	if len(values) != 3 {
		t.Fatalf("want 3 rows, got %d", len(values))
	}
	wantHeader := []interface{}{"اسم الطالب", "رقم التليفون", "كود الطالب", "تاريخ/وقت التسجيل"}
	if !reflect.DeepEqual(values[0], wantHeader) {
		t.Errorf("header: %v", values[0])
	}
	wantRow := []interface{}{"Mona", "+20111111111", "MTD25-01", "2025/02/28 09:30:00"}
	if !reflect.DeepEqual(values[2], wantRow) {
		t.Errorf("row: %v", values[2])
	}
}

func TestBuildValues_CustomOrderAndLocation(t *testing.T) {
	cairo := time.FixedZone("EET", 2*60*60)
	values := BuildValues(students[:1], CreateColumnMapFromOrder("Code, Name, Unknown, Code"), cairo)
	want := [][]interface{}{
		{"كود الطالب", "اسم الطالب"},
		{"MTD25-02", "Ali"},
	}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("values: %v", values)
	}

	values = BuildValues(students[:1], CreateColumnMapFromOrder("RegisteredAt"), cairo)
	if values[1][0] != "2025/03/01 12:00:00" {
		t.Errorf("time must be rendered in location: %v", values[1][0])
	}
}

func TestCreateColumnMapFromOrder_Fallback(t *testing.T) {
	if got := CreateColumnMapFromOrder("foo,bar"); !reflect.DeepEqual(got, NewDefaultColumnMap()) {
		t.Errorf("unknown fields must fall back to default: %v", got)
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's list"); got != "'Bob''s list'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

type fakeSheet struct {
	mu    sync.Mutex
	calls [][]model.Student
	done  chan struct{}
}

func (f *fakeSheet) ReplaceStudents(_ context.Context, s []model.Student) error {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

type fakeSource struct {
	students []model.Student
	err      error
}

func (f fakeSource) Students(context.Context) ([]model.Student, error) {
	return f.students, f.err
}

func TestSyncer_ForceUpdate(t *testing.T) {
	fs := &fakeSheet{done: make(chan struct{}, 4)}
	s := NewSyncer(fs, fakeSource{students: students}, zaptest.NewLogger(t), time.Hour)
	defer s.Stop()

	s.ForceUpdate()
	select {
	case <-fs.done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not run")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.calls) != 1 || len(fs.calls[0]) != 2 {
		t.Errorf("calls: %v", fs.calls)
	}
}

func TestSyncer_SourceError(t *testing.T) {
	fs := &fakeSheet{done: make(chan struct{}, 1)}
	s := NewSyncer(fs, fakeSource{err: errors.New("store down")}, zaptest.NewLogger(t), time.Hour)
	s.Sync()
	s.Stop()
	s.Stop() // повторная остановка безопасна

	if len(fs.calls) != 0 {
		t.Errorf("sheet must not be touched when the source fails")
	}
}
