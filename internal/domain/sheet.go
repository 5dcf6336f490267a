package domain

import (
	"context"
	"io"

	"student_registry/internal/model"
)

// SheetService зеркало таблицы студентов во внешнем табличном сервисе
type SheetService interface {
	ReplaceStudents(ctx context.Context, students []model.Student) error
}

// Spreadsheet кодек файла .xlsx
type Spreadsheet interface {
	Encode(w io.Writer, students []model.Student, title string) error
	Decode(r io.Reader) ([]model.RowResult, error)
}
