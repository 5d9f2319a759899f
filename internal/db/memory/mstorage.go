package memory

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// entry одна запись хранилища: значение и журнал, привязанный к ключу.
// Мьютекс записи сериализует изменения только этого ключа.
type entry struct {
	mu    sync.Mutex
	value []byte
	log   [][]byte
}

// MStorage потокобезопасное хранилище ключ/значение в памяти.
//
// Блокировки взяты на уровне отдельных ключей, поэтому операции над разными ключами
// друг друга не ждут. Значения хранятся сериализованными в json, наружу всегда отдаются копии.
type MStorage struct {
	data sync.Map // map[string]*entry
	size atomic.Int64
}

func NewMemStorage() *MStorage {
	return &MStorage{}
}

// Len возвращает количество ключей.
func (m *MStorage) Len() int {
	return int(m.size.Load())
}

func (m *MStorage) load(key string) (*entry, bool) {
	v, ok := m.data.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*entry), true //nolint:forcetypeassert
}

// SetOptions опции для Set.
type SetOptions struct {
	Overwrite bool // Перезаписать значение, если ключ уже существует
}

// WithOverwrite разрешает перезапись существующего ключа.
func WithOverwrite() func(*SetOptions) {
	return func(o *SetOptions) {
		o.Overwrite = true
	}
}

func Get[T any](ctx context.Context, key string, m *MStorage) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	e, ok := m.load(key)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	raw := e.value
	e.mu.Unlock()

	return decode[T](key, raw)
}

// Set Сохраняет новую пару ключ/значение. Ключ обязан быть уникальным, иначе вернется ошибка ErrDuplicateKey.
// Из нескольких одновременных вставок одного ключа успешной будет ровно одна.
func Set[T any](ctx context.Context, key string, val *T, m *MStorage, opts ...func(*SetOptions)) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}
	var options SetOptions
	for _, opt := range opts {
		opt(&options)
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal json for object `%+v`", val)
	}

	actual, loaded := m.data.LoadOrStore(key, &entry{value: raw})
	if !loaded {
		m.size.Add(1)
		return nil
	}
	if !options.Overwrite {
		return ErrDuplicateKey
	}

	e := actual.(*entry) //nolint:forcetypeassert
	e.mu.Lock()
	e.value = raw
	e.mu.Unlock()
	return nil
}

// Update атомарно изменяет значение по ключу. fn вызывается под блокировкой ключа;
// если fn вернула ошибку, значение не меняется.
func Update[T any](ctx context.Context, key string, m *MStorage, fn func(*T) error) (*T, error) {
	return UpdateWithLog[T, struct{}](ctx, key, m, func(val *T) (*struct{}, error) {
		return nil, fn(val)
	})
}

// UpdateWithLog атомарно изменяет значение и добавляет запись в журнал ключа.
// Если fn вернула nil вместо записи журнала, изменяется только значение.
// Для наблюдателя изменение значения и добавление в журнал происходят одновременно.
func UpdateWithLog[T, E any](
	ctx context.Context,
	key string,
	m *MStorage,
	fn func(*T) (*E, error),
) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	e, ok := m.load(key)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	val, err := decode[T](key, e.value)
	if err != nil {
		return nil, err
	}
	logVal, fnErr := fn(val)
	if fnErr != nil {
		return nil, fnErr
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal json for object `%+v`", val)
	}
	var logRaw []byte
	if logVal != nil {
		if logRaw, err = json.Marshal(logVal); err != nil {
			return nil, errors.Wrapf(err, "failed to marshal json for log record `%+v`", logVal)
		}
	}

	e.value = raw
	if logRaw != nil {
		e.log = append(e.log, logRaw)
	}
	return val, nil
}

// UpdateAll проходит по всем значениям и сохраняет те, для которых fn вернула true.
// Возвращает количество измененных значений. Каждое значение блокируется отдельно.
func UpdateAll[T any](ctx context.Context, m *MStorage, fn func(*T) (bool, error)) (int64, error) {
	var (
		updated  int64
		rangeErr error
	)
	m.data.Range(func(k, v any) bool {
		if rangeErr = ctx.Err(); rangeErr != nil {
			return false
		}
		key := k.(string) //nolint:forcetypeassert
		e := v.(*entry)   //nolint:forcetypeassert

		e.mu.Lock()
		defer e.mu.Unlock()

		val, err := decode[T](key, e.value)
		if err != nil {
			rangeErr = err
			return false
		}
		changed, err := fn(val)
		if err != nil {
			rangeErr = err
			return false
		}
		if !changed {
			return true
		}
		raw, err := json.Marshal(val)
		if err != nil {
			rangeErr = errors.Wrapf(err, "failed to marshal json for object `%+v`", val)
			return false
		}
		e.value = raw
		updated++
		return true
	})
	return updated, rangeErr
}

// Append добавляет запись в журнал существующего ключа.
func Append[E any](ctx context.Context, key string, val *E, m *MStorage) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}
	e, ok := m.load(key)
	if !ok {
		return ErrNotFound
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal json for log record `%+v`", val)
	}

	e.mu.Lock()
	e.log = append(e.log, raw)
	e.mu.Unlock()
	return nil
}

// Log возвращает ленивую последовательность записей журнала ключа в порядке добавления.
//
// Каждый проход по последовательности заново снимает срез журнала на момент начала обхода,
// записи декодируются по одной. Для отсутствующего ключа последовательность пуста.
func Log[E any](ctx context.Context, key string, m *MStorage) iter.Seq2[*E, error] {
	return func(yield func(*E, error) bool) {
		e, ok := m.load(key)
		if !ok {
			return
		}

		// Журнал только растет, поэтому уже записанные элементы среза неизменны
		// и читать их после снятия блокировки безопасно.
		e.mu.Lock()
		snapshot := e.log[:len(e.log):len(e.log)]
		e.mu.Unlock()

		for _, raw := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			val, err := decode[E](key, raw)
			if !yield(val, err) || err != nil {
				return
			}
		}
	}
}

func decode[T any](key string, raw []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal json by key `%s`", key)
	}
	return &result, nil
}
