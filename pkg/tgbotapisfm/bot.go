package tgbotapisfm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Config структура для конфигурации бота
type Config struct {
	Token           string           // Токен бота
	Expiration      time.Duration    // Время хранения состояний пользователя
	CleanupInterval time.Duration    // Интервал очистки кеша
	States          map[string]State // Карта состояний

	Endpoint   string       // Адрес Bot API в формате tgbotapi.APIEndpoint; пусто: api.telegram.org
	HTTPClient *http.Client // Клиент для запросов к API и скачивания файлов
	Limiter    *Limiter     // nil: ограничения Telegram по умолчанию
}

// Bot структура для бота
type Bot struct {
	BotAPI        *tgbotapi.BotAPI // API бота. Экспортируется для доступа к нему из вне
	expiration    time.Duration    // Время хранения состояний пользователя
	limiter       *Limiter         // Лимитер для ограничения количества запросов к API
	cache         *gocache.Cache   // Кеш для хранения состояний пользователей
	logger        *zap.Logger      // Логгер для записи событий
	client        *http.Client
	states        map[string]State // Состояния пользователя
	globalStates  []*State         // Состояния, в которые может перейти пользователь из любого другого
	updateHandler HandlerFunc      // Обработчик, который будет вызываться при получении любого обновления
	mu            sync.RWMutex     // Мьютекс для проверки состояния бота
	statesMu      sync.RWMutex     // Мьютекс для безопасного обновления состояний

	IgnoreList []int64 // Список ID пользователей, которые будут игнорироваться
}

// NewBot конструктор нового бота
// logger - необязательный параметр, если не передан, логи не пишутся
func NewBot(config Config, ignoreList []int64, logger ...*zap.Logger) (*Bot, error) {
	// Если карта состояний пуста, то нужно ее инициализировать, чтобы избежать ошибок
	if config.States == nil {
		config.States = make(map[string]State)
	}
	if config.Expiration < 0 {
		return nil, NewValidationError(ErrNegativeExpiration, config.Expiration)
	}
	if config.CleanupInterval < 0 {
		return nil, NewValidationError(ErrNegativeCleanup, config.CleanupInterval)
	}
	if config.Token == "" {
		return nil, ErrInvalidToken
	}
	if config.Endpoint == "" {
		config.Endpoint = tgbotapi.APIEndpoint
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if config.Limiter == nil {
		config.Limiter = NewLimiter()
	}

	botAPI, err := tgbotapi.NewBotAPIWithClient(config.Token, config.Endpoint, config.HTTPClient)
	if err != nil {
		return nil, NewValidationError(ErrTelegramInit, err)
	}

	zapLogger := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		zapLogger = logger[0]
	}

	app := Bot{
		BotAPI:     botAPI,
		limiter:    config.Limiter,
		cache:      gocache.New(config.Expiration, config.CleanupInterval),
		expiration: config.Expiration,
		logger:     zapLogger,
		client:     config.HTTPClient,
		IgnoreList: ignoreList,
	}
	app.ReplaceStates(config.States)

	return &app, nil
}

// SetLogger заменяет текущий логгер
// Должен вызываться до Start()
func (b *Bot) SetLogger(logger *zap.Logger) error {
	if !b.mu.TryRLock() {
		return NewValidationError(ErrBotStarted, "logger")
	}
	defer b.mu.RUnlock()

	b.logger = logger
	return nil
}

// SetUpdateHandler устанавливает обработчик обновлений
// Должен вызываться до Start()
func (b *Bot) SetUpdateHandler(handler HandlerFunc) error {
	if !b.mu.TryRLock() {
		return NewValidationError(ErrBotStarted, "update handler")
	}
	defer b.mu.RUnlock()

	b.updateHandler = handler
	return nil
}

// Start запускает обработку обновлений в горутине и возвращает канал для ошибок
func (b *Bot) Start(offset, timeout int) chan error {
	errChan := make(chan error, 1)

	if !b.mu.TryLock() {
		b.logger.Warn("Бот уже запущен")
		errChan <- ErrBotStarted
		return errChan
	}

	b.logger.Info("Запуск бота", zap.String("username", b.BotAPI.Self.UserName))
	go func() {
		if err := b.HandleUpdates(offset, timeout); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	return errChan
}

// Stop останавливает обработку обновлений
func (b *Bot) Stop() {
	b.BotAPI.StopReceivingUpdates() // Канал обновлений закроется, HandleUpdates завершится
	b.mu.Unlock()                   // Разблокируем мьютекс, заблокированный в Start()
	b.logger.Info("Остановка обработки обновлений")
}

// HandleUpdates запускает обработку всех обновлений поступающих боту из телеграмма
func (b *Bot) HandleUpdates(offset, timeout int) error {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeout
	updates := b.BotAPI.GetUpdatesChan(u)
	b.logger.Info("Запуск обработки обновлений")

	for update := range updates {
		if err := b.HandleUpdate(update); err != nil {
			return err
		}
	}
	return nil
}

// HandleUpdate маршрутизирует одно обновление: общий обработчик, глобальные состояния,
// затем состояние пользователя. Ошибка означает неисправность конфигурации бота.
func (b *Bot) HandleUpdate(update tgbotapi.Update) error {
	if b.updateHandler != nil {
		if err := b.updateHandler(b, update); err != nil {
			b.logger.Error("Ошибка в обработчике обновлений", zap.Error(err))
			return fmt.Errorf("update handler error: %w", err)
		}
	}

	from := update.SentFrom()
	if from == nil {
		return nil
	}
	if slices.Contains(b.IgnoreList, from.ID) {
		return nil
	}
	if chat := ChatOf(update); chat != nil && slices.Contains(b.IgnoreList, chat.ID) {
		return nil
	}

	globalStateFound, err := b.HandleGlobalStates(update)
	if err != nil {
		return fmt.Errorf("global state error: %w", err)
	}
	if globalStateFound {
		return nil
	}

	userStateName, err := b.GetUserState(from.ID)
	if err != nil {
		b.logger.Debug("user has no state", zap.Int64("user_id", from.ID), zap.Error(err))
		return nil
	}

	b.statesMu.RLock()
	userState, ok := b.states[userStateName]
	b.statesMu.RUnlock()
	if !ok {
		b.logger.Error("state not found in states map", zap.String("state", userStateName))
		return NewValidationError(ErrStateHandlerNotFound, userStateName)
	}

	if _, err := b.SelectHandler(update, &userState); err != nil {
		return fmt.Errorf("handle user state error: %w", err)
	}
	return nil
}

// GetUserState возвращает название состояния, в котором находится пользователь
func (b *Bot) GetUserState(userID int64) (string, error) {
	x, ok := b.cache.Get(strconv.FormatInt(userID, 10))
	if !ok {
		return "", ErrStateNotFound
	}

	userState, ok := x.(string)
	if !ok {
		return "", ErrInvalidStateType
	}

	return userState, nil
}

// SetUserState меняет состояние пользователя
func (b *Bot) SetUserState(userID int64, state string) error {
	b.statesMu.RLock()
	_, ok := b.states[state]
	b.statesMu.RUnlock()

	if !ok {
		return NewValidationError(ErrStateHandlerNotFound, state)
	}

	b.cache.Set(strconv.FormatInt(userID, 10), state, b.expiration)
	return nil
}

// ClearUserState сбрасывает состояние пользователя
func (b *Bot) ClearUserState(userID int64) {
	b.cache.Delete(strconv.FormatInt(userID, 10))
}

// EnterState меняет состояние пользователя и вызывает действие при входе
func (b *Bot) EnterState(userID int64, state string, update tgbotapi.Update) error {
	if err := b.SetUserState(userID, state); err != nil {
		return err
	}

	b.statesMu.RLock()
	newState := b.states[state]
	b.statesMu.RUnlock()

	if newState.AtEntranceFunc != nil {
		return newState.AtEntranceFunc.Handle(b, update)
	}
	return nil
}

// HandleGlobalStates проверяет подходит ли действие пользователя под
// глобальные состояния и если подходит, то выполняет его.
// Возвращает true, если обработчик нашелся и выполнился.
func (b *Bot) HandleGlobalStates(update tgbotapi.Update) (bool, error) {
	b.statesMu.RLock()
	globals := b.globalStates
	b.statesMu.RUnlock()

	for _, state := range globals {
		handlerIsFound, err := b.selectExact(update, state)
		if err != nil {
			b.logger.Error("failed to handle global state", zap.Error(err))
			continue
		}
		if handlerIsFound {
			return true, nil
		}
	}
	return false, nil
}

// selectExact как SelectHandler, но без CatchAllFunc: глобальное состояние
// не должно перехватывать ввод, предназначенный текущему состоянию пользователя
func (b *Bot) selectExact(update tgbotapi.Update, state *State) (bool, error) {
	exact := *state
	exact.CatchAllFunc = nil
	return b.SelectHandler(update, &exact)
}

func (b *Bot) SelectHandler(update tgbotapi.Update, userState *State) (bool, error) {
	switch {
	case update.Message != nil:
		return b.handleMessage(userState, update)
	case update.CallbackQuery != nil:
		return b.handleCallback(userState, update)
	}
	return false, nil
}

// handleMessage ищет команду в map'е и выполняет ее
func (b *Bot) handleMessage(userState *State, update tgbotapi.Update) (bool, error) {
	msg := update.Message
	key := strings.ToLower(strings.TrimSpace(msg.Text))

	if currentAction, ok := userState.MessageHandlers[key]; ok && key != "" {
		if err := currentAction.Handle(b, update); err != nil {
			b.logger.Error("failed to handle command", zap.Error(err))
		} else {
			b.logger.Info("command handled successfully",
				zap.String("command", key),
				zap.Int64("chat_id", msg.Chat.ID),
			)
		}
		return true, nil
	}

	if userState.CatchAllFunc != nil {
		if err := userState.CatchAllFunc.Handle(b, update); err != nil {
			b.logger.Error("failed to handle message", zap.Error(err))
		}
		return true, nil
	}

	b.logger.Debug("command not found", zap.Int64("chat_id", msg.Chat.ID))
	return false, nil
}

// handleCallback ищет callback в map'е и выполняет его
func (b *Bot) handleCallback(userState *State, update tgbotapi.Update) (bool, error) {
	cb := update.CallbackQuery

	if currentAction, ok := userState.CallbackHandlers[cb.Data]; ok {
		if err := currentAction.Handle(b, update); err != nil {
			b.logger.Error("failed to handle callback", zap.Error(err))
			return true, nil
		}
		b.logger.Info("callback handled successfully",
			zap.String("callback", cb.Data),
			zap.Int64("user_id", cb.From.ID),
		)
		return true, nil
	}

	if userState.CatchAllFunc != nil {
		if err := userState.CatchAllFunc.Handle(b, update); err != nil {
			b.logger.Error("failed to handle callback", zap.Error(err))
		}
		return true, nil
	}

	b.logger.Debug("callback not found", zap.String("callback", cb.Data), zap.Int64("user_id", cb.From.ID))
	return false, nil
}

// ReplaceStates безопасно заменяет все состояния бота на новые
func (b *Bot) ReplaceStates(newStates map[string]State) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	newGlobalStates := make([]*State, 0)
	for _, state := range newStates {
		if state.Global {
			stateCopy := state
			newGlobalStates = append(newGlobalStates, &stateCopy)
		}
	}

	b.states = newStates
	b.globalStates = newGlobalStates
	b.logger.Debug("Состояния бота обновлены", zap.Int("states", len(newStates)))
}

// SendMessage отправляет сообщение или файл с учетом лимитов Telegram
func (b *Bot) SendMessage(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.limiter.Wait(chatIDOf(c))
	msg, err := b.BotAPI.Send(c)
	if err != nil {
		b.logger.Error("failed to send message", zap.Error(err))
		return msg, fmt.Errorf("send: %w", err)
	}
	return msg, nil
}

// Request вызывает метод API без сообщения в ответе, например ответ на callback
func (b *Bot) Request(c tgbotapi.Chattable) error {
	b.limiter.Wait(0)
	if _, err := b.BotAPI.Request(c); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	return nil
}

// DownloadFile скачивает загруженный пользователем файл по file_id
func (b *Bot) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	b.limiter.Wait(0)
	url, err := b.BotAPI.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ChatOf чат, из которого пришло обновление, или nil.
// У нажатия инлайн-кнопки из inline-режима CallbackQuery.Message пустой,
// а tgbotapi.Update.FromChat его не проверяет.
func ChatOf(update tgbotapi.Update) *tgbotapi.Chat {
	if update.CallbackQuery != nil {
		if update.CallbackQuery.Message == nil {
			return nil
		}
		return update.CallbackQuery.Message.Chat
	}
	return update.FromChat()
}

func chatIDOf(c tgbotapi.Chattable) int64 {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		return v.ChatID
	case tgbotapi.DocumentConfig:
		return v.ChatID
	case tgbotapi.EditMessageTextConfig:
		return v.ChatID
	case tgbotapi.EditMessageReplyMarkupConfig:
		return v.ChatID
	}
	return 0
}
