package pipeline

import (
	"strings"
	"unicode/utf8"

	"student_registry/internal/model"
)

// ParseBulkText разбирает вставленный текст: одна запись на строку, "имя, телефон".
// Телефон берется после последней запятой (обычной или арабской "،"), остальные запятые остаются в имени.
// Строка без запятой дает запись с пустым телефоном, которая потом будет пропущена.
func ParseBulkText(text string) []model.Entry {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var entries []model.Entry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.LastIndexAny(line, ",،")
		if idx < 0 {
			entries = append(entries, model.Entry{Name: line})
			continue
		}
		_, size := utf8.DecodeRuneInString(line[idx:])
		entries = append(entries, model.Entry{
			Name:  strings.TrimSpace(line[:idx]),
			Phone: strings.TrimSpace(line[idx+size:]),
		})
	}
	return entries
}
