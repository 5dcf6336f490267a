package sheet

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"student_registry/internal/model"
	"student_registry/internal/service/xlsx"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Поля записи студента, которые можно вывести в таблицу
const (
	FieldName         = "Name"
	FieldPhone        = "Phone"
	FieldCode         = "Code"
	FieldRegisteredAt = "RegisteredAt"
)

var fieldHeaders = map[string]string{
	FieldName:         xlsx.HeaderName,
	FieldPhone:        xlsx.HeaderPhone,
	FieldCode:         xlsx.HeaderCode,
	FieldRegisteredAt: xlsx.HeaderTime,
}

type SheetService struct {
	SpreadsheetID string
	TabID         string
	SheetName     string
	PauseMs       int // пауза между запросами в миллисекундах
	Location      *time.Location

	srv       *sheets.Service
	limiterMu sync.Mutex
	lastCall  time.Time
	colMap    ColumnMap
}

type ColumnMap map[string]int // например: "Name": 0, "Phone": 1, ...

// Создает ColumnMap по умолчанию, в порядке столбцов выгрузки .xlsx
func NewDefaultColumnMap() ColumnMap {
	return ColumnMap{
		FieldName:         0,
		FieldPhone:        1,
		FieldCode:         2,
		FieldRegisteredAt: 3,
	}
}

// Создает ColumnMap из строки порядка (например: "Code,Name,Phone,RegisteredAt").
// Неизвестные поля пропускаются.
func CreateColumnMapFromOrder(order string) ColumnMap {
	if strings.TrimSpace(order) == "" {
		return NewDefaultColumnMap()
	}
	m := make(ColumnMap)
	for _, field := range strings.Split(order, ",") {
		field = strings.TrimSpace(field)
		if _, ok := fieldHeaders[field]; !ok {
			continue
		}
		if _, dup := m[field]; dup {
			continue
		}
		m[field] = len(m)
	}
	if len(m) == 0 {
		return NewDefaultColumnMap()
	}
	return m
}

// Конструктор SheetService
func NewSheetService(ctx context.Context, base64Creds, spreadsheetID, tabID string, pauseMs int, colMap ColumnMap, loc *time.Location) (*SheetService, error) {
	credBytes, err := base64.StdEncoding.DecodeString(base64Creds)
	if err != nil {
		return nil, fmt.Errorf("не удается декодировать credentials из base64: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, credBytes, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("не удается создать credentials из JSON: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("не удается инициализировать сервис Google Sheets: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &SheetService{
		SpreadsheetID: spreadsheetID,
		TabID:         tabID,
		PauseMs:       pauseMs,
		Location:      loc,
		srv:           srv,
		lastCall:      time.Now(),
		colMap:        colMap,
	}

	if err := s.fetchSheetName(ctx); err != nil {
		return nil, fmt.Errorf("не удается получить имя листа: %w", err)
	}
	return s, nil
}

// fetchSheetName ищет имя листа по его ID. Пустой TabID: первый лист.
func (s *SheetService) fetchSheetName(ctx context.Context) error {
	s.Wait() // лимитер

	resp, err := s.srv.Spreadsheets.Get(s.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("ошибка получения информации о таблице: %w", err)
	}

	for _, sheet := range resp.Sheets {
		if s.TabID == "" || fmt.Sprint(sheet.Properties.SheetId) == s.TabID {
			s.SheetName = sheet.Properties.Title
			return nil
		}
	}
	return fmt.Errorf("лист с ID %s не найден", s.TabID)
}

// Лимитер: вызывает паузу между запросами
func (s *SheetService) Wait() {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	elapsed := time.Since(s.lastCall)
	pause := time.Duration(s.PauseMs) * time.Millisecond
	if elapsed < pause {
		time.Sleep(pause - elapsed)
	}
	s.lastCall = time.Now()
}

// ReplaceStudents очищает лист и записывает заголовок и все записи
func (s *SheetService) ReplaceStudents(ctx context.Context, students []model.Student) error {
	sheetRange := quoteSheet(s.SheetName)

	s.Wait()
	if _, err := s.srv.Spreadsheets.Values.Clear(s.SpreadsheetID, sheetRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("ошибка очистки листа: %w", err)
	}

	vr := &sheets.ValueRange{Values: BuildValues(students, s.colMap, s.Location)}
	s.Wait()
	_, err := s.srv.Spreadsheets.Values.Update(s.SpreadsheetID, sheetRange+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("ошибка записи в таблицу: %w", err)
	}
	return nil
}

// BuildValues строки листа: заголовок, затем по строке на запись
func BuildValues(students []model.Student, colMap ColumnMap, loc *time.Location) [][]interface{} {
	if len(colMap) == 0 {
		colMap = NewDefaultColumnMap()
	}
	if loc == nil {
		loc = time.UTC
	}

	header := make([]interface{}, len(colMap))
	for field, idx := range colMap {
		header[idx] = fieldHeaders[field]
	}
	values := make([][]interface{}, 0, len(students)+1)
	values = append(values, header)

	for _, st := range students {
		row := make([]interface{}, len(colMap))
		for field, idx := range colMap {
			switch field {
			case FieldName:
				row[idx] = st.Name
			case FieldPhone:
				row[idx] = st.Phone
			case FieldCode:
				row[idx] = st.Code
			case FieldRegisteredAt:
				row[idx] = st.RegisteredAt.In(loc).Format(xlsx.TimeLayout)
			}
		}
		values = append(values, row)
	}
	return values
}

// quoteSheet имя листа в нотации A1; одинарные кавычки внутри удваиваются
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
