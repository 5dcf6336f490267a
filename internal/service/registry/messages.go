package registry

import (
	"errors"
	"fmt"

	"student_registry/internal/pipeline"
	"student_registry/internal/service/xlsx"
)

const (
	MsgConfirmDelete = "هل أنت متأكد من رغبتك في حذف هذا الطالب؟ لا يمكن التراجع عن هذا الإجراء."
	MsgGeneric       = "حدث خطأ غير متوقع. يرجى المحاولة مرة أخرى."
	MsgExportFailed  = "حدث خطأ أثناء محاولة تصدير الملف. يرجى المحاولة مرة أخرى."
)

var errText = map[error]string{
	pipeline.ErrEmptyName:    "اسم الطالب لا يمكن أن يكون فارغاً.",
	pipeline.ErrInvalidPhone: "رقم التليفون يجب أن يتكون من 7 إلى 15 رقماً.",
	pipeline.ErrInvalidCode:  "كود الطالب يجب أن يحتوي على حروف وأرقام فقط.",
	pipeline.ErrDuplicate:    "هذا الطالب مسجل بالفعل بنفس الاسم ورقم التليفون أو بنفس الكود.",
	ErrNotConfirmed:          "يجب تأكيد الحذف أولاً.",
	ErrNothingToExport:       "لا توجد بيانات لتصديرها.",
	xlsx.ErrEmptyWorkbook:    "الملف فارغ ولا يحتوي على بيانات.",
	xlsx.ErrCorruptWorkbook:  "تعذر قراءة الملف. تأكد من أنه ملف Excel صالح.",
}

// UserMessage текст для пользователя по ошибке любого класса.
// Ошибки окружения сводятся к общему сообщению.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var missing *xlsx.MissingColumnError
	if errors.As(err, &missing) {
		return fmt.Sprintf("الملف لا يحتوي على عمود \"%s\".", missing.Column)
	}
	for target, text := range errText {
		if errors.Is(err, target) {
			return text
		}
	}
	return MsgGeneric
}

// IsUserError true для ошибок валидации и структуры файла, false для ошибок окружения
func IsUserError(err error) bool {
	var missing *xlsx.MissingColumnError
	if errors.As(err, &missing) {
		return true
	}
	for target := range errText {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BatchSummary итоговое сообщение после пакетной операции
func BatchSummary(res pipeline.BatchResult) string {
	return fmt.Sprintf("تمت إضافة %d طالب بنجاح، وتم تخطي %d.", res.Accepted, res.Skipped)
}

// ImportSummary итог импорта с учетом строк, отброшенных при разборе файла
func ImportSummary(res ImportResult) string {
	msg := BatchSummary(res.Batch)
	if res.Malformed > 0 {
		msg += fmt.Sprintf(" (تم تجاهل %d صف غير مكتمل)", res.Malformed)
	}
	return msg
}
