package tg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"student_registry/internal/model"
	"student_registry/internal/service/registry"
	"student_registry/internal/service/xlsx"
	"student_registry/pkg/tgbotapisfm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (h *TGHandler) listHandler(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
	ctx, cancel := opContext()
	defer cancel()

	students, err := h.registry.Students(ctx)
	if err != nil {
		h.logger.Error("list students failed", zap.Error(err))
		return h.reply(bot, update, registry.MsgGeneric)
	}
	if len(students) == 0 {
		return h.reply(bot, update, "لا يوجد طلاب مسجلون بعد.")
	}
	return h.reply(bot, update, formatList(students, len(students)))
}

func (h *TGHandler) exportHandler(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
	ctx, cancel := opContext()
	defer cancel()

	var buf bytes.Buffer
	n, err := h.registry.Export(ctx, &buf, "")
	if errors.Is(err, registry.ErrNothingToExport) {
		return h.reply(bot, update, registry.UserMessage(err))
	}
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		return h.reply(bot, update, registry.MsgExportFailed)
	}

	doc := tgbotapi.NewDocument(chatID(update), tgbotapi.FileBytes{
		Name:  xlsx.FileName(h.exportBase),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("عدد الطلاب: %d", n)
	if _, err := bot.SendMessage(doc); err != nil {
		return h.reply(bot, update, registry.MsgExportFailed)
	}
	return nil
}

func (h *TGHandler) SearchEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update), "أدخل اسم الطالب أو الكود للبحث:")
				msg.ReplyMarkup = cancelKeyboard()
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		// пользователь остается в поиске до выхода в меню
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			ctx, cancel := opContext()
			defer cancel()

			found, err := h.registry.Search(ctx, update.Message.Text)
			if err != nil {
				h.logger.Error("search failed", zap.Error(err))
				return h.reply(bot, update, registry.MsgGeneric)
			}
			if len(found) == 0 {
				return h.reply(bot, update, "لا توجد نتائج.")
			}
			return h.reply(bot, update, formatList(found, len(found)))
		})),
	}
}

func (h *TGHandler) PrefixEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				ctx, cancel := opContext()
				defer cancel()
				prefix, err := h.registry.Prefix(ctx)
				if err != nil {
					h.logger.Error("read prefix failed", zap.Error(err))
					return h.showMenu(bot, update, registry.MsgGeneric)
				}
				msg := tgbotapi.NewMessage(chatID(update), fmt.Sprintf("البادئة الحالية: %s\nأدخل البادئة الجديدة:", prefix))
				msg.ReplyMarkup = cancelKeyboard()
				_, err = bot.SendMessage(msg)
				return err
			},
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			prefix := strings.TrimSpace(update.Message.Text)
			if prefix == "" {
				return h.reply(bot, update, "البادئة لا يمكن أن تكون فارغة.")
			}
			ctx, cancel := opContext()
			defer cancel()
			if err := h.registry.SetPrefix(ctx, prefix); err != nil {
				h.logger.Error("set prefix failed", zap.Error(err))
				return h.showMenu(bot, update, registry.MsgGeneric)
			}
			return h.showMenu(bot, update, fmt.Sprintf("تم تغيير البادئة إلى %s. الأكواد المسجلة سابقاً لن تتغير.", prefix))
		})),
	}
}

func (h *TGHandler) DeleteEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update), "أدخل كود الطالب المراد حذفه:")
				msg.ReplyMarkup = cancelKeyboard()
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			code := strings.TrimSpace(update.Message.Text)
			ctx, cancel := opContext()
			defer cancel()

			student, ok, err := h.findByCode(ctx, code)
			if err != nil {
				h.logger.Error("find student failed", zap.Error(err))
				return h.showMenu(bot, update, registry.MsgGeneric)
			}
			if !ok {
				return h.reply(bot, update, "لا يوجد طالب بهذا الكود.")
			}
			userID := update.Message.From.ID
			h.saveDraft(userID, Draft{Name: student.Name, Phone: student.Phone, Code: student.Code})
			return bot.EnterState(userID, StateDeleteConfirm, update)
		})),
	}
}

func (h *TGHandler) DeleteConfirmState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				d := h.draft(update.SentFrom().ID)
				msg := tgbotapi.NewMessage(chatID(update), fmt.Sprintf("%s\n\n%s | %s | %s",
					registry.MsgConfirmDelete, d.Name, d.Phone, d.Code))
				msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("نعم، احذف", cbDeleteYes),
					tgbotapi.NewInlineKeyboardButtonData("إلغاء", cbDeleteNo),
				))
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		CallbackHandlers: map[string]tgbotapisfm.Handler{
			cbDeleteYes: h.handler(h.deleteConfirmed),
			cbDeleteNo: h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				h.answer(bot, update)
				return h.showMenu(bot, update, "تم إلغاء الحذف.")
			}),
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			if update.CallbackQuery != nil {
				h.answer(bot, update)
				return nil
			}
			return h.reply(bot, update, "يرجى الضغط على أحد الزرين أعلاه.")
		})),
	}
}

func (h *TGHandler) deleteConfirmed(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
	h.answer(bot, update)
	d := h.draft(update.SentFrom().ID)
	if d.Code == "" {
		return h.showMenu(bot, update, "انتهت صلاحية طلب الحذف. يرجى المحاولة مرة أخرى.")
	}

	ctx, cancel := opContext()
	defer cancel()
	removed, err := h.registry.Delete(ctx, d.Code, true)
	if err != nil {
		h.logger.Error("delete failed", zap.Error(err), zap.String("code", d.Code))
		return h.showMenu(bot, update, registry.MsgGeneric)
	}
	if !removed {
		return h.showMenu(bot, update, "لا يوجد طالب بهذا الكود.")
	}
	h.metrics.ObserveDelete()
	return h.showMenu(bot, update, fmt.Sprintf("تم حذف الطالب %s.", d.Code))
}

// answer убирает индикатор загрузки на кнопке
func (h *TGHandler) answer(bot *tgbotapisfm.Bot, update tgbotapi.Update) {
	if update.CallbackQuery == nil {
		return
	}
	if err := bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
		h.logger.Warn("answer callback failed", zap.Error(err))
	}
}

// findByCode точное совпадение кода
func (h *TGHandler) findByCode(ctx context.Context, code string) (model.Student, bool, error) {
	students, err := h.registry.Students(ctx)
	if err != nil {
		return model.Student{}, false, err
	}
	for _, s := range students {
		if s.Code == code {
			return s, true, nil
		}
	}
	return model.Student{}, false, nil
}
