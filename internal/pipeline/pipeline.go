package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"student_registry/internal/model"
)

const (
	DefaultPrefix  = "MTD25"
	fallbackPrefix = "CODE"
)

// Snapshot полное состояние реестра на момент времени.
// Students хранится в порядке "новые первыми".
type Snapshot struct {
	Students []model.Student
	Counter  int
	Prefix   string
}

// Rejection причина, по которой элемент пакета пропущен
type Rejection struct {
	Index int
	Entry model.Entry
	Err   error
}

// BatchResult итог пакетного добавления
type BatchResult struct {
	Snapshot   Snapshot
	Added      []model.Student // в порядке обработки
	Accepted   int
	Skipped    int
	Rejections []Rejection
}

// Pipeline чистый конвейер сверки записей. Сам ничего не читает и не пишет.
type Pipeline struct {
	CountryCode string
	Now         func() time.Time
}

// New создает конвейер. Пустой countryCode заменяется на DefaultCountryCode.
func New(countryCode string) *Pipeline {
	if strings.TrimSpace(countryCode) == "" {
		countryCode = DefaultCountryCode
	}
	return &Pipeline{
		CountryCode: countryCode,
		Now:         time.Now,
	}
}

// NormalizePhone нормализует номер с кодом страны конвейера
func (p *Pipeline) NormalizePhone(raw string) string {
	return NormalizePhone(raw, p.CountryCode)
}

// GenerateCode формирует код вида PREFIX-07. Номер дополняется нулями до 2 знаков, но не обрезается.
func GenerateCode(prefix string, sequence int) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = fallbackPrefix
	}
	return fmt.Sprintf("%s-%02d", prefix, sequence)
}

// MaxIssuedSequence наибольший номер среди кодов вида PREFIX-NN с данным префиксом; 0, если таких нет
func MaxIssuedSequence(students []model.Student, prefix string) int {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = fallbackPrefix
	}
	head := prefix + "-"
	highest := 0
	for _, s := range students {
		digits, ok := strings.CutPrefix(s.Code, head)
		if !ok || digits == "" {
			continue
		}
		seq, err := strconv.Atoi(digits)
		if err != nil || seq < 0 {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest
}

// IsDuplicate ищет совпадение пары (имя, телефон) или кода среди store и уже принятых в пакете.
// Телефон кандидата должен быть уже нормализован.
func IsDuplicate(candidate model.Entry, priorBatch, store []model.Student) bool {
	name := foldKey(candidate.Name)
	phone := foldKey(candidate.Phone)
	code := foldKey(candidate.Code)

	match := func(s model.Student) bool {
		if foldKey(s.Name) == name && foldKey(s.Phone) == phone {
			return true
		}
		return code != "" && foldKey(s.Code) == code
	}
	for _, s := range priorBatch {
		if match(s) {
			return true
		}
	}
	for _, s := range store {
		if match(s) {
			return true
		}
	}
	return false
}

// validate проверяет запись и возвращает ее с нормализованными полями
func (p *Pipeline) validate(e model.Entry, priorBatch, store []model.Student) (model.Entry, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return e, ErrEmptyName
	}
	e.Phone = p.NormalizePhone(e.Phone)
	if !validPhone(e.Phone) {
		return e, ErrInvalidPhone
	}
	e.Code = strings.TrimSpace(e.Code)
	if e.Code != "" && !isAlphanumeric(e.Code) {
		return e, ErrInvalidCode
	}
	if IsDuplicate(e, priorBatch, store) {
		return e, ErrDuplicate
	}
	return e, nil
}

// build собирает запись. Собственный код не расходует счетчик.
func (p *Pipeline) build(e model.Entry, counter int, prefix string, now time.Time) (model.Student, int) {
	code := e.Code
	if code == "" {
		counter++
		code = GenerateCode(prefix, counter)
	}
	at := e.RegisteredAt
	if at.IsZero() {
		at = now
	}
	return model.Student{
		Name:         e.Name,
		Phone:        e.Phone,
		Code:         code,
		RegisteredAt: at,
	}, counter
}

// AddSingle добавляет одну запись. При ошибке снимок не меняется.
func (p *Pipeline) AddSingle(snap Snapshot, e model.Entry) (Snapshot, model.Student, error) {
	valid, err := p.validate(e, nil, snap.Students)
	if err != nil {
		return snap, model.Student{}, err
	}
	student, counter := p.build(valid, snap.Counter, snap.Prefix, p.Now())

	students := make([]model.Student, 0, len(snap.Students)+1)
	students = append(students, student)
	students = append(students, snap.Students...)

	return Snapshot{Students: students, Counter: counter, Prefix: snap.Prefix}, student, nil
}

// AddBatch добавляет пакет. Ошибочные элементы пропускаются и считаются,
// дубликаты проверяются и по уже принятым элементам этого же пакета.
func (p *Pipeline) AddBatch(snap Snapshot, entries []model.Entry) BatchResult {
	now := p.Now()
	counter := snap.Counter
	res := BatchResult{}

	for i, e := range entries {
		valid, err := p.validate(e, res.Added, snap.Students)
		if err != nil {
			res.Skipped++
			res.Rejections = append(res.Rejections, Rejection{Index: i, Entry: e, Err: err})
			continue
		}
		var student model.Student
		student, counter = p.build(valid, counter, snap.Prefix, now)
		res.Added = append(res.Added, student)
		res.Accepted++
	}

	students := make([]model.Student, 0, len(snap.Students)+len(res.Added))
	for i := len(res.Added) - 1; i >= 0; i-- {
		students = append(students, res.Added[i])
	}
	students = append(students, snap.Students...)

	res.Snapshot = Snapshot{Students: students, Counter: counter, Prefix: snap.Prefix}
	return res
}

// DeleteByCode удаляет не более одной записи с указанным кодом.
// Подтверждение пользователя проверяет вызывающий слой.
func DeleteByCode(students []model.Student, code string) ([]model.Student, bool) {
	out := make([]model.Student, 0, len(students))
	removed := false
	for _, s := range students {
		if !removed && s.Code == code {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out, removed
}

// SortForDisplay возвращает копию, отсортированную по времени регистрации (новые первыми)
func SortForDisplay(students []model.Student) []model.Student {
	out := make([]model.Student, len(students))
	copy(out, students)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out
}

// FilterBySearch ищет подстроку в имени или коде без учета регистра
func FilterBySearch(students []model.Student, query string) []model.Student {
	sorted := SortForDisplay(students)
	q := foldKey(query)
	if q == "" {
		return sorted
	}
	out := make([]model.Student, 0)
	for _, s := range sorted {
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Code), q) {
			out = append(out, s)
		}
	}
	return out
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
