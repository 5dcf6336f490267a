package tg

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"student_registry/internal/metrics"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/registry"
	"student_registry/pkg/tgbotapisfm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Названия состояний
const (
	StateStart         = "start"
	StateNameEnter     = "name_enter"
	StatePhoneEnter    = "phone_enter"
	StateCodeEnter     = "code_enter"
	StateBulkEnter     = "bulk_enter"
	StateSearchEnter   = "search_enter"
	StatePrefixEnter   = "prefix_enter"
	StateDeleteEnter   = "delete_enter"
	StateDeleteConfirm = "delete_confirm"
)

// Кнопки меню
const (
	BtnAdd    = "➕ إضافة طالب"
	BtnBulk   = "📋 إضافة مجموعة / ملف Excel"
	BtnExport = "📤 تصدير Excel"
	BtnList   = "📃 قائمة الطلاب"
	BtnSearch = "🔍 بحث"
	BtnDelete = "🗑 حذف طالب"
	BtnPrefix = "🔤 تغيير البادئة"
	BtnCancel = "إلغاء"
	BtnSkip   = "تخطي"

	cbDeleteYes = "delete_yes"
	cbDeleteNo  = "delete_no"
)

const (
	opTimeout = 30 * time.Second
	listLimit = 30
)

// Registry операции реестра, которые нужны боту
type Registry interface {
	Add(ctx context.Context, e model.Entry) (model.Student, error)
	AddBulkText(ctx context.Context, text string) (pipeline.BatchResult, error)
	Import(ctx context.Context, src io.Reader) (registry.ImportResult, error)
	Export(ctx context.Context, w io.Writer, title string) (int, error)
	Students(ctx context.Context) ([]model.Student, error)
	Search(ctx context.Context, query string) ([]model.Student, error)
	Delete(ctx context.Context, code string, confirmed bool) (bool, error)
	Prefix(ctx context.Context) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
}

// Downloader скачивает документ, присланный пользователем
type Downloader func(ctx context.Context, bot *tgbotapisfm.Bot, fileID string) (io.ReadCloser, error)

type TGHandler struct {
	registry   Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
	drafts     *gocache.Cache
	admins     []int64
	exportBase string
	download   Downloader
}

// Draft черновик формы добавления
type Draft struct {
	Name  string
	Phone string
	Code  string // код студента на удаление в delete_confirm
}

type Options struct {
	Admins     []int64 // пусто: бот доступен всем
	ExportBase string
	Metrics    *metrics.Metrics
	Download   Downloader // nil: скачивание через Bot API
}

func NewTGHandler(reg Registry, logger *zap.Logger, opts Options) *TGHandler {
	download := opts.Download
	if download == nil {
		download = func(ctx context.Context, bot *tgbotapisfm.Bot, fileID string) (io.ReadCloser, error) {
			return bot.DownloadFile(ctx, fileID)
		}
	}
	return &TGHandler{
		registry:   reg,
		metrics:    opts.Metrics,
		logger:     logger,
		drafts:     gocache.New(24*time.Hour, 1*time.Hour),
		admins:     opts.Admins,
		exportBase: opts.ExportBase,
		download:   download,
	}
}

// ParseAdmins разбирает список id через запятую
func ParseAdmins(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func (h *TGHandler) StatesMap() map[string]tgbotapisfm.State {
	return map[string]tgbotapisfm.State{
		StateStart:         h.StartState(),
		StateNameEnter:     h.NameEnterState(),
		StatePhoneEnter:    h.PhoneEnterState(),
		StateCodeEnter:     h.CodeEnterState(),
		StateBulkEnter:     h.BulkEnterState(),
		StateSearchEnter:   h.SearchEnterState(),
		StatePrefixEnter:   h.PrefixEnterState(),
		StateDeleteEnter:   h.DeleteEnterState(),
		StateDeleteConfirm: h.DeleteConfirmState(),
	}
}

// StartState глобальное меню, доступно из любого состояния
func (h *TGHandler) StartState() tgbotapisfm.State {
	return tgbotapisfm.State{
		Global: true,
		MessageHandlers: map[string]tgbotapisfm.Handler{
			"/start":       h.handler(h.startHandler),
			"/cancel":      h.handler(h.cancelHandler),
			key(BtnCancel): h.handler(h.cancelHandler),
			key(BtnAdd):    h.enter(StateNameEnter),
			key(BtnBulk):   h.enter(StateBulkEnter),
			key(BtnSearch): h.enter(StateSearchEnter),
			key(BtnDelete): h.enter(StateDeleteEnter),
			key(BtnPrefix): h.enter(StatePrefixEnter),
			key(BtnExport): h.handler(h.exportHandler),
			key(BtnList):   h.handler(h.listHandler),
		},
	}
}

func (h *TGHandler) startHandler(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
	return h.showMenu(bot, update, "مرحباً! اختر الإجراء المطلوب من القائمة.")
}

func (h *TGHandler) cancelHandler(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
	return h.showMenu(bot, update, "تم الإلغاء.")
}

// showMenu сбрасывает диалог и показывает меню
func (h *TGHandler) showMenu(bot *tgbotapisfm.Bot, update tgbotapi.Update, text string) error {
	userID := update.SentFrom().ID
	bot.ClearUserState(userID)
	h.drafts.Delete(strconv.FormatInt(userID, 10))

	msg := tgbotapi.NewMessage(chatID(update), text)
	msg.ReplyMarkup = menuKeyboard()
	_, err := bot.SendMessage(msg)
	return err
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnAdd), tgbotapi.NewKeyboardButton(BtnBulk)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnList), tgbotapi.NewKeyboardButton(BtnSearch)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnExport), tgbotapi.NewKeyboardButton(BtnDelete)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(BtnPrefix)),
	)
}

func cancelKeyboard(extra ...string) tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(extra)+1)
	for _, label := range extra {
		row = append(row, tgbotapi.NewKeyboardButton(label))
	}
	row = append(row, tgbotapi.NewKeyboardButton(BtnCancel))
	return tgbotapi.NewReplyKeyboard(row)
}

// handler оборачивает обработчик проверкой доступа
func (h *TGHandler) handler(fn tgbotapisfm.HandlerFunc) tgbotapisfm.Handler {
	return tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
		if !h.allowed(update) {
			h.logger.Warn("access denied", zap.Int64("user_id", update.SentFrom().ID))
			return h.reply(bot, update, "غير مصرح لك باستخدام هذا البوت.")
		}
		return fn(bot, update)
	}}
}

// enter обработчик перехода в состояние
func (h *TGHandler) enter(state string) tgbotapisfm.Handler {
	return h.handler(func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
		h.drafts.Delete(strconv.FormatInt(update.SentFrom().ID, 10))
		return bot.EnterState(update.SentFrom().ID, state, update)
	})
}

func (h *TGHandler) allowed(update tgbotapi.Update) bool {
	if len(h.admins) == 0 {
		return true
	}
	from := update.SentFrom()
	return from != nil && slices.Contains(h.admins, from.ID)
}

func (h *TGHandler) reply(bot *tgbotapisfm.Bot, update tgbotapi.Update, text string) error {
	_, err := bot.SendMessage(tgbotapi.NewMessage(chatID(update), text))
	return err
}

func (h *TGHandler) draft(userID int64) Draft {
	var d Draft
	if x, found := h.drafts.Get(strconv.FormatInt(userID, 10)); found {
		d, _ = x.(Draft)
	}
	return d
}

func (h *TGHandler) saveDraft(userID int64, d Draft) {
	h.drafts.Set(strconv.FormatInt(userID, 10), d, gocache.DefaultExpiration)
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func key(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func chatID(update tgbotapi.Update) int64 {
	if chat := tgbotapisfm.ChatOf(update); chat != nil {
		return chat.ID
	}
	return update.SentFrom().ID
}

func formatStudent(s model.Student) string {
	return fmt.Sprintf("%s | %s | %s", s.Name, s.Phone, s.Code)
}

func formatList(students []model.Student, total int) string {
	var b strings.Builder
	for i, s := range students {
		if i == listLimit {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatStudent(s))
	}
	fmt.Fprintf(&b, "\nالإجمالي: %d", total)
	return b.String()
}
