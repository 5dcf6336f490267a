package model

import "time"

// Student запись о студенте (или о бронировании).
// JSON-имена полей совпадают с форматом хранилища, чтобы старые выгрузки читались без миграции.
type Student struct {
	Name         string    `json:"studentName"`
	Phone        string    `json:"phoneNumber"`
	Code         string    `json:"studentCode"`
	RegisteredAt time.Time `json:"timestamp"`
}

// Entry кандидат на добавление: сырые имя и телефон из формы, вставки или файла.
// Code и RegisteredAt необязательны.
type Entry struct {
	Name         string
	Phone        string
	Code         string
	RegisteredAt time.Time
}

// RowResult строка импортированного файла: либо валидная запись, либо причина отказа.
type RowResult struct {
	Line  int
	Entry Entry
	Err   error
}

// Valid сообщает, можно ли отправлять строку в пакетное добавление
func (r RowResult) Valid() bool {
	return r.Err == nil
}
