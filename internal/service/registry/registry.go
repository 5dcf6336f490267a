package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"student_registry/internal/domain"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"
	"student_registry/pkg/masker"

	"go.uber.org/zap"
)

var (
	ErrNotConfirmed    = errors.New("deletion requires confirmation")
	ErrNothingToExport = errors.New("no students to export")
)

// Observer вызывается после каждой опубликованной мутации
type Observer func(snap pipeline.Snapshot)

// ImportResult итог импорта файла
type ImportResult struct {
	Batch     pipeline.BatchResult
	Malformed int // строки с пустым именем или телефоном, в пакет не попали
}

type Config struct {
	Namespace     string
	DefaultPrefix string
	CountryCode   string
}

// Registry связывает конвейер с хранилищем: читает снимок, выполняет одну операцию,
// публикует новый снимок и уведомляет наблюдателей. Операции выполняются строго по одной.
type Registry struct {
	logger   *zap.Logger
	state    *stateStore
	pipeline *pipeline.Pipeline
	codec    domain.Spreadsheet

	mu          sync.Mutex
	observersMu sync.RWMutex
	observers   []Observer
}

func New(cfg Config, kv domain.KVStore, codec domain.Spreadsheet, logger *zap.Logger) *Registry {
	prefix := cfg.DefaultPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = pipeline.DefaultPrefix
	}
	return &Registry{
		logger: logger,
		state: &stateStore{
			kv:            kv,
			namespace:     cfg.Namespace,
			defaultPrefix: prefix,
			logger:        logger,
		},
		pipeline: pipeline.New(cfg.CountryCode),
		codec:    codec,
	}
}

// Subscribe добавляет наблюдателя. Наблюдатель вызывается под блокировкой реестра
// и не должен обращаться к Registry.
func (r *Registry) Subscribe(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) notify(snap pipeline.Snapshot) {
	r.observersMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.observersMu.RUnlock()

	for _, o := range observers {
		o(snap)
	}
}

// mutate выполняет fn над текущим снимком и публикует результат, если fn вернула publish=true
func (r *Registry) mutate(ctx context.Context, fn func(snap pipeline.Snapshot) (pipeline.Snapshot, bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.state.load(ctx)
	if err != nil {
		return err
	}
	next, publish, err := fn(snap)
	if err != nil || !publish {
		return err
	}
	if err := r.state.save(ctx, next); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	r.notify(next)
	return nil
}

// Snapshot текущее состояние
func (r *Registry) Snapshot(ctx context.Context) (pipeline.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.load(ctx)
}

// Students все записи, новые первыми
func (r *Registry) Students(ctx context.Context) ([]model.Student, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.SortForDisplay(snap.Students), nil
}

// Search поиск по имени или коду
func (r *Registry) Search(ctx context.Context, query string) ([]model.Student, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.FilterBySearch(snap.Students, query), nil
}

// Add добавляет одну запись. Ошибки валидации: pipeline.Err*.
func (r *Registry) Add(ctx context.Context, e model.Entry) (model.Student, error) {
	var added model.Student
	err := r.mutate(ctx, func(snap pipeline.Snapshot) (pipeline.Snapshot, bool, error) {
		next, student, err := r.pipeline.AddSingle(snap, e)
		if err != nil {
			return snap, false, err
		}
		added = student
		return next, true, nil
	})
	if err != nil {
		r.logger.Info("student rejected", zap.String("phone", masker.Phone(e.Phone)), zap.Error(err))
		return model.Student{}, err
	}
	r.logger.Info("student added", zap.String("code", added.Code), zap.String("phone", masker.Phone(added.Phone)))
	return added, nil
}

// AddBatch добавляет пакет и публикует снимок один раз в конце
func (r *Registry) AddBatch(ctx context.Context, entries []model.Entry) (pipeline.BatchResult, error) {
	var res pipeline.BatchResult
	err := r.mutate(ctx, func(snap pipeline.Snapshot) (pipeline.Snapshot, bool, error) {
		res = r.pipeline.AddBatch(snap, entries)
		return res.Snapshot, res.Accepted > 0, nil
	})
	if err != nil {
		return pipeline.BatchResult{}, err
	}
	for _, rej := range res.Rejections {
		r.logger.Debug("batch entry skipped", zap.Int("index", rej.Index), zap.Error(rej.Err))
	}
	r.logger.Info("batch processed", zap.Int("accepted", res.Accepted), zap.Int("skipped", res.Skipped))
	return res, nil
}

// AddBulkText разбирает вставленный текст и добавляет его пакетом
func (r *Registry) AddBulkText(ctx context.Context, text string) (pipeline.BatchResult, error) {
	return r.AddBatch(ctx, pipeline.ParseBulkText(text))
}

// Import читает книгу целиком и только после успешного разбора передает строки в пакет.
// Структурная ошибка файла ничего не публикует.
func (r *Registry) Import(ctx context.Context, src io.Reader) (ImportResult, error) {
	rows, err := r.codec.Decode(src)
	if err != nil {
		r.logger.Warn("import rejected", zap.Error(err))
		return ImportResult{}, err
	}
	var (
		entries   []model.Entry
		malformed int
	)
	for _, row := range rows {
		if !row.Valid() {
			malformed++
			continue
		}
		entries = append(entries, row.Entry)
	}
	res, err := r.AddBatch(ctx, entries)
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Batch: res, Malformed: malformed}, nil
}

// Export пишет все записи в книгу, новые первыми. Возвращает число строк.
func (r *Registry) Export(ctx context.Context, w io.Writer, title string) (int, error) {
	students, err := r.Students(ctx)
	if err != nil {
		return 0, err
	}
	if len(students) == 0 {
		return 0, ErrNothingToExport
	}
	if err := r.codec.Encode(w, students, title); err != nil {
		r.logger.Error("export failed", zap.Error(err))
		return 0, fmt.Errorf("encode workbook: %w", err)
	}
	return len(students), nil
}

// Delete удаляет запись по коду. Без confirmed ничего не делает и возвращает ErrNotConfirmed.
func (r *Registry) Delete(ctx context.Context, code string, confirmed bool) (bool, error) {
	if !confirmed {
		return false, ErrNotConfirmed
	}
	code = strings.TrimSpace(code)
	removed := false
	err := r.mutate(ctx, func(snap pipeline.Snapshot) (pipeline.Snapshot, bool, error) {
		students, ok := pipeline.DeleteByCode(snap.Students, code)
		if !ok {
			return snap, false, nil
		}
		removed = true
		snap.Students = students
		return snap, true, nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.logger.Info("student deleted", zap.String("code", code))
	}
	return removed, nil
}

// Prefix текущий префикс кодов
func (r *Registry) Prefix(ctx context.Context) (string, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.Prefix, nil
}

// SetPrefix меняет префикс для следующих кодов. Уже выданные коды не меняются.
func (r *Registry) SetPrefix(ctx context.Context, prefix string) error {
	return r.mutate(ctx, func(snap pipeline.Snapshot) (pipeline.Snapshot, bool, error) {
		snap.Prefix = prefix
		return snap, true, nil
	})
}
