package validate

import (
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"studentName" validate:"required"`
	Code  string `json:"studentCode,omitempty" validate:"omitempty,alphanum"`
	Inner []item `json:"items" validate:"dive"`
}

type item struct {
	Phone string `json:"phoneNumber" validate:"required"`
}

func TestStruct(t *testing.T) {
	if err := Struct(&sample{Name: "Ali"}); err != nil {
		t.Errorf("valid struct: %v", err)
	}

	err := Struct(&sample{Code: "A-1", Inner: []item{{}}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"studentName required", "studentCode alphanum", "items[0].phoneNumber required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q must contain %q", err, want)
		}
	}
}

func TestStruct_NotStruct(t *testing.T) {
	if err := Struct(nil); err == nil {
		t.Error("nil must fail")
	}
	if err := Struct(42); err == nil {
		t.Error("int must fail")
	}
}
