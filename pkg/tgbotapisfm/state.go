package tgbotapisfm

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// HandlerFunc функция обработки обновления
type HandlerFunc func(bot *Bot, update tgbotapi.Update) error

// Handler обертка над HandlerFunc, чтобы в картах состояний хранить значения
type Handler struct {
	Handle HandlerFunc
}

// State состояние пользователя в диалоге
type State struct {
	Global bool // Обработчики глобального состояния проверяются до состояния пользователя

	AtEntranceFunc   *Handler           // Вызывается при входе в состояние
	CatchAllFunc     *Handler           // Вызывается, если подходящий обработчик не найден
	MessageHandlers  map[string]Handler // Ключ: текст сообщения в нижнем регистре без пробелов по краям
	CallbackHandlers map[string]Handler // Ключ: callback data
}
