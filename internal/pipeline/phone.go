package pipeline

import (
	"strings"
	"unicode"
)

const (
	DefaultCountryCode = "+20"

	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NormalizePhone приводит номер к международному виду.
// Номер, начинающийся с "+", возвращается как есть (после trim).
// Иначе остаются только цифры, снимается один ведущий 0 и добавляется код страны.
// Повторный вызов на уже нормализованном номере без "+" не идемпотентен.
func NormalizePhone(raw, countryCode string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+") {
		return s
	}
	digits := digitsOnly(s)
	if digits == "" {
		return ""
	}
	digits = strings.TrimPrefix(digits, "0")
	return countryCode + digits
}

// validPhone проверяет количество цифр в нормализованном номере
func validPhone(normalized string) bool {
	n := len(digitsOnly(normalized))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
