package sheet

import (
	"context"
	"sync"
	"time"

	"student_registry/internal/domain"
	"student_registry/internal/model"

	"go.uber.org/zap"
)

const syncTimeout = time.Minute

// StudentSource источник записей для зеркала
type StudentSource interface {
	Students(ctx context.Context) ([]model.Student, error)
}

// Syncer переписывает лист по таймеру и по сигналу ForceUpdate
type Syncer struct {
	logger *zap.Logger
	sheet  domain.SheetService
	source StudentSource

	ticker        *time.Ticker
	forceUpdateCh chan struct{}
	stopCh        chan struct{}
	doneCh        chan struct{}
	stopOnce      sync.Once
	mu            sync.Mutex
}

func NewSyncer(sheet domain.SheetService, source StudentSource, logger *zap.Logger, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s := &Syncer{
		logger:        logger,
		sheet:         sheet,
		source:        source,
		ticker:        time.NewTicker(interval),
		forceUpdateCh: make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go s.backgroundSync()
	return s
}

// Фоновая синхронизация
func (s *Syncer) backgroundSync() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.ticker.C:
			s.Sync()
		case <-s.forceUpdateCh:
			s.Sync()
		case <-s.stopCh:
			s.ticker.Stop()
			return
		}
	}
}

// Sync выгружает текущий список в лист
func (s *Syncer) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	students, err := s.source.Students(ctx)
	if err != nil {
		s.logger.Error("error reading students for sheet sync", zap.Error(err))
		return
	}
	if err := s.sheet.ReplaceStudents(ctx, students); err != nil {
		s.logger.Error("error writing students to sheet", zap.Error(err), zap.Int("rows", len(students)))
		return
	}
	s.logger.Debug("sheet synced", zap.Int("rows", len(students)))
}

// ForceUpdate немедленно запускает синхронизацию; повторные сигналы склеиваются
func (s *Syncer) ForceUpdate() {
	select {
	case s.forceUpdateCh <- struct{}{}:
	default:
	}
}

// Stop останавливает фоновую задачу и ждет завершения текущей синхронизации
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}
