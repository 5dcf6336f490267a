package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"student_registry/internal/domain"
	"student_registry/internal/model"
	"student_registry/internal/pipeline"

	"go.uber.org/zap"
)

// Ключи состояния в хранилище
const (
	KeyStudents = "students"
	KeyCounter  = "studentCounter"
	KeyPrefix   = "studentCodePrefix"
)

// stateStore читает и пишет снимок в пространстве имен namespace
type stateStore struct {
	kv            domain.KVStore
	namespace     string
	defaultPrefix string
	logger        *zap.Logger
}

func (s *stateStore) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

// load читает снимок. Отсутствующее или битое значение заменяется значением по умолчанию.
func (s *stateStore) load(ctx context.Context) (pipeline.Snapshot, error) {
	snap := pipeline.Snapshot{
		Students: []model.Student{},
		Prefix:   s.defaultPrefix,
	}
	if err := readKey(ctx, s, KeyStudents, &snap.Students); err != nil {
		return snap, err
	}
	if snap.Students == nil {
		snap.Students = []model.Student{}
	}
	if err := readKey(ctx, s, KeyCounter, &snap.Counter); err != nil {
		return snap, err
	}
	if snap.Counter < 0 {
		s.logger.Warn("negative counter in store, resetting", zap.Int("counter", snap.Counter))
		snap.Counter = 0
	}
	if err := readKey(ctx, s, KeyPrefix, &snap.Prefix); err != nil {
		return snap, err
	}
	// счетчик не ниже уже выданных номеров, иначе следующий код совпадет с существующим
	if issued := pipeline.MaxIssuedSequence(snap.Students, snap.Prefix); snap.Counter < issued {
		s.logger.Warn("counter behind issued codes, advancing",
			zap.Int("counter", snap.Counter), zap.Int("issued", issued))
		snap.Counter = issued
	}
	return snap, nil
}

// readKey декодирует ключ в dst. При битом JSON dst не трогается.
func readKey[T any](ctx context.Context, s *stateStore, name string, dst *T) error {
	raw, found, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if !found {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("malformed value in store, using default", zap.String("key", name), zap.Error(err))
		return nil
	}
	*dst = v
	return nil
}

// save пишет все три ключа одной операцией
func (s *stateStore) save(ctx context.Context, snap pipeline.Snapshot) error {
	students := snap.Students
	if students == nil {
		students = []model.Student{}
	}
	rawStudents, err := json.Marshal(students)
	if err != nil {
		return fmt.Errorf("encode students: %w", err)
	}
	rawCounter, _ := json.Marshal(snap.Counter)
	rawPrefix, _ := json.Marshal(snap.Prefix)

	return s.kv.SetMany(ctx, map[string][]byte{
		s.key(KeyStudents): rawStudents,
		s.key(KeyCounter):  rawCounter,
		s.key(KeyPrefix):   rawPrefix,
	})
}
