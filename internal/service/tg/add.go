package tg

import (
	"errors"
	"fmt"
	"strings"

	"student_registry/internal/metrics"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/registry"
	"student_registry/pkg/tgbotapisfm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (h *TGHandler) NameEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update), "أدخل اسم الطالب:")
				msg.ReplyMarkup = cancelKeyboard()
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			name := strings.TrimSpace(update.Message.Text)
			if name == "" {
				return h.reply(bot, update, registry.UserMessage(pipeline.ErrEmptyName))
			}
			userID := update.Message.From.ID
			d := h.draft(userID)
			d.Name = name
			h.saveDraft(userID, d)
			return bot.EnterState(userID, StatePhoneEnter, update)
		})),
	}
}

func (h *TGHandler) PhoneEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update), "أدخل رقم التليفون:")
				msg.ReplyMarkup = cancelKeyboard()
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			phone := strings.TrimSpace(update.Message.Text)
			if phone == "" {
				return h.reply(bot, update, registry.UserMessage(pipeline.ErrInvalidPhone))
			}
			userID := update.Message.From.ID
			d := h.draft(userID)
			d.Phone = phone
			h.saveDraft(userID, d)
			return bot.EnterState(userID, StateCodeEnter, update)
		})),
	}
}

func (h *TGHandler) CodeEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update), "أدخل كود الطالب، أو اضغط \"تخطي\" لإنشاء الكود تلقائياً:")
				msg.ReplyMarkup = cancelKeyboard(BtnSkip)
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		MessageHandlers: map[string]tgbotapisfm.Handler{
			key(BtnSkip): h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				return h.submit(bot, update, "")
			}),
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return h.submit(bot, update, update.Message.Text)
		})),
	}
}

// submit отправляет черновик в реестр. При ошибке телефона или кода пользователь
// остается в форме, остальные ошибки завершают диалог.
func (h *TGHandler) submit(bot *tgbotapisfm.Bot, update tgbotapi.Update, code string) error {
	userID := update.Message.From.ID
	d := h.draft(userID)
	if d.Name == "" {
		return h.showMenu(bot, update, registry.UserMessage(pipeline.ErrEmptyName))
	}

	ctx, cancel := opContext()
	defer cancel()
	student, err := h.registry.Add(ctx, model.Entry{Name: d.Name, Phone: d.Phone, Code: code})
	h.metrics.ObserveAdd(metrics.SourceTelegram, err)

	switch {
	case err == nil:
		return h.showMenu(bot, update, fmt.Sprintf("تم تسجيل الطالب بنجاح.\nالاسم: %s\nرقم التليفون: %s\nالكود: %s",
			student.Name, student.Phone, student.Code))
	case errors.Is(err, pipeline.ErrInvalidPhone):
		if rErr := h.reply(bot, update, registry.UserMessage(err)); rErr != nil {
			return rErr
		}
		return bot.EnterState(userID, StatePhoneEnter, update)
	case errors.Is(err, pipeline.ErrInvalidCode):
		return h.reply(bot, update, registry.UserMessage(err))
	case registry.IsUserError(err):
		return h.showMenu(bot, update, registry.UserMessage(err))
	}
	h.logger.Error("add student failed", zap.Error(err))
	return h.showMenu(bot, update, registry.MsgGeneric)
}

func ptr(h tgbotapisfm.Handler) *tgbotapisfm.Handler {
	return &h
}
