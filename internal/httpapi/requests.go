package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/pkg/validate"
)

// StudentRequest тело POST /v1/students и элемент пакета
type StudentRequest struct {
	Name         string     `json:"studentName" validate:"required"`
	Phone        string     `json:"phoneNumber" validate:"required"`
	Code         string     `json:"studentCode,omitempty" validate:"omitempty,alphanum"`
	RegisteredAt *time.Time `json:"timestamp,omitempty"`
}

func (s *StudentRequest) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

func (s *StudentRequest) Entry() model.Entry {
	e := model.Entry{Name: s.Name, Phone: s.Phone, Code: s.Code}
	if s.RegisteredAt != nil {
		e.RegisteredAt = *s.RegisteredAt
	}
	return e
}

// BulkRequest либо вставленный текст, либо список записей
type BulkRequest struct {
	Text     string           `json:"text,omitempty"`
	Students []StudentRequest `json:"students,omitempty"`
}

var errEmptyBulk = errors.New("text or students is required")

// Bind проверяет только форму запроса; записи с пустыми полями отсекает конвейер
// и учитывает как пропущенные
func (b *BulkRequest) Bind(_ *http.Request) error {
	if strings.TrimSpace(b.Text) == "" && len(b.Students) == 0 {
		return errEmptyBulk
	}
	return nil
}

func (b *BulkRequest) Entries() []model.Entry {
	entries := make([]model.Entry, 0, len(b.Students))
	for i := range b.Students {
		entries = append(entries, b.Students[i].Entry())
	}
	return entries
}

type PrefixRequest struct {
	Prefix string `json:"prefix" validate:"required"`
}

func (p *PrefixRequest) Bind(_ *http.Request) error {
	p.Prefix = strings.TrimSpace(p.Prefix)
	return validate.Struct(p)
}

// BatchResponse итог пакетной операции
type BatchResponse struct {
	Accepted  int             `json:"accepted"`
	Skipped   int             `json:"skipped"`
	Malformed int             `json:"malformed,omitempty"`
	Summary   string          `json:"summary"`
	Added     []model.Student `json:"added"`
	Rejected  []Rejected      `json:"rejected,omitempty"`
}

type Rejected struct {
	Index  int    `json:"index"`
	Name   string `json:"studentName"`
	Reason string `json:"reason"`
}

func newBatchResponse(res pipeline.BatchResult, summary string) BatchResponse {
	out := BatchResponse{
		Accepted: res.Accepted,
		Skipped:  res.Skipped,
		Summary:  summary,
		Added:    res.Added,
	}
	if out.Added == nil {
		out.Added = []model.Student{}
	}
	for _, rej := range res.Rejections {
		out.Rejected = append(out.Rejected, Rejected{Index: rej.Index, Name: rej.Entry.Name, Reason: rej.Err.Error()})
	}
	return out
}
