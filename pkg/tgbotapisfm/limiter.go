package tgbotapisfm

import (
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Ограничения Telegram: около 30 сообщений в секунду на бота и одно в секунду на чат
const (
	DefaultGlobalInterval = time.Second / 30
	DefaultChatInterval   = time.Second
)

// Limiter выдерживает паузу между запросами к API, общую и по каждому чату
type Limiter struct {
	mu             sync.Mutex
	globalInterval time.Duration
	chatInterval   time.Duration
	lastCall       time.Time
	lastChatCall   *gocache.Cache // chatID -> time.Time, записи живут chatInterval

	sleep func(time.Duration)
	now   func() time.Time
}

func NewLimiter() *Limiter {
	return NewLimiterWithIntervals(DefaultGlobalInterval, DefaultChatInterval)
}

func NewLimiterWithIntervals(global, chat time.Duration) *Limiter {
	return &Limiter{
		globalInterval: global,
		chatInterval:   chat,
		lastChatCall:   gocache.New(chat, time.Minute),
		sleep:          time.Sleep,
		now:            time.Now,
	}
}

// Wait блокирует до момента, когда можно отправить запрос в чат chatID.
// chatID == 0 учитывает только общий интервал.
func (l *Limiter) Wait(chatID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	delay := l.globalInterval - now.Sub(l.lastCall)
	if chatID != 0 {
		if x, ok := l.lastChatCall.Get(strconv.FormatInt(chatID, 10)); ok {
			if d := l.chatInterval - now.Sub(x.(time.Time)); d > delay {
				delay = d
			}
		}
	}
	if delay > 0 {
		l.sleep(delay)
		now = now.Add(delay)
	}
	l.lastCall = now
	if chatID != 0 {
		l.lastChatCall.SetDefault(strconv.FormatInt(chatID, 10), now)
	}
}
