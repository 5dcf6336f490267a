package tg

import (
	"bytes"
	"io"
	"path"
	"strings"

	"student_registry/internal/metrics"
	"student_registry/internal/service/registry"
	"student_registry/pkg/tgbotapisfm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxUploadSize предел размера загружаемой книги
const maxUploadSize = 10 << 20

func (h *TGHandler) BulkEnterState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{
			Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
				msg := tgbotapi.NewMessage(chatID(update),
					"أرسل قائمة الطلاب، كل طالب في سطر بالشكل:\nالاسم، رقم التليفون\n\nأو أرسل ملف Excel (.xlsx) يحتوي على عمودي \"اسم الطالب\" و\"رقم التليفون\".")
				msg.ReplyMarkup = cancelKeyboard()
				_, err := bot.SendMessage(msg)
				return err
			},
		},
		CatchAllFunc: ptr(h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			if update.Message.Document != nil {
				return h.importDocument(bot, update, update.Message.Document)
			}
			return h.bulkText(bot, update, update.Message.Text)
		})),
	}
}

func (h *TGHandler) bulkText(bot *tgbotapisfm.Bot, update tgbotapi.Update, text string) error {
	if strings.TrimSpace(text) == "" {
		return h.reply(bot, update, "يرجى إرسال قائمة الطلاب أو ملف Excel.")
	}
	ctx, cancel := opContext()
	defer cancel()

	res, err := h.registry.AddBulkText(ctx, text)
	if err != nil {
		h.logger.Error("bulk add failed", zap.Error(err))
		return h.showMenu(bot, update, registry.MsgGeneric)
	}
	h.metrics.ObserveBatch(metrics.SourceTelegram, res)
	return h.showMenu(bot, update, registry.BatchSummary(res))
}

// importDocument скачивает книгу целиком и только потом передает ее в реестр
func (h *TGHandler) importDocument(bot *tgbotapisfm.Bot, update tgbotapi.Update, doc *tgbotapi.Document) error {
	if !strings.EqualFold(path.Ext(doc.FileName), ".xlsx") {
		return h.reply(bot, update, "يرجى إرسال ملف بصيغة .xlsx")
	}
	if doc.FileSize > maxUploadSize {
		return h.reply(bot, update, "حجم الملف كبير جداً.")
	}

	ctx, cancel := opContext()
	defer cancel()

	body, err := h.download(ctx, bot, doc.FileID)
	if err != nil {
		h.logger.Error("document download failed", zap.Error(err), zap.String("file", doc.FileName))
		return h.showMenu(bot, update, registry.MsgGeneric)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxUploadSize+1))
	body.Close()
	if err != nil {
		h.logger.Error("document read failed", zap.Error(err), zap.String("file", doc.FileName))
		return h.showMenu(bot, update, registry.MsgGeneric)
	}
	if len(data) > maxUploadSize {
		return h.reply(bot, update, "حجم الملف كبير جداً.")
	}

	res, err := h.registry.Import(ctx, bytes.NewReader(data))
	if err != nil {
		if registry.IsUserError(err) {
			h.metrics.ObserveImportFailure(err)
			return h.reply(bot, update, registry.UserMessage(err))
		}
		h.logger.Error("import failed", zap.Error(err), zap.String("file", doc.FileName))
		return h.showMenu(bot, update, registry.MsgGeneric)
	}
	h.metrics.ObserveBatch(metrics.SourceTelegram, res.Batch)
	return h.showMenu(bot, update, registry.ImportSummary(res))
}
