package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"student_registry/internal/model"
	"student_registry/internal/service/xlsx"

	"github.com/olekukonko/tablewriter"
)

func writeTable(w io.Writer, students []model.Student, loc *time.Location) error {
	table := tablewriter.NewTable(w)
	table.Header("Code", "Name", "Phone", "Registered")
	for _, s := range students {
		if err := table.Append(s.Code, s.Name, s.Phone, s.RegisteredAt.In(loc).Format(xlsx.TimeLayout)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total: %d\n", len(students))
	return err
}

// writeJSON пишет записи в формате хранилища
func writeJSON(w io.Writer, students []model.Student) error {
	if students == nil {
		students = []model.Student{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(students)
}
