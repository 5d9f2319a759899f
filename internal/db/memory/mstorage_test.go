package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type target struct {
	Key string
	Val int
}

type record struct {
	N int
}

func TestSet(t *testing.T) {
	type args[T any] struct {
		key  string
		val  *T
		m    *MStorage
		opts []func(*SetOptions)
	}
	type testCase[T any] struct {
		name    string
		args    args[T]
		wantErr error
	}
	ms := NewMemStorage()
	tests := []testCase[target]{
		{
			name: "default",
			args: args[target]{
				key: "key1",
				val: &target{Key: "key1", Val: 1},
				m:   ms,
			},
		}, {
			name: "duplicate records",
			args: args[target]{
				key: "key1",
				val: &target{Key: "key1", Val: 2},
				m:   ms,
			},
			wantErr: ErrDuplicateKey,
		}, {
			name: "overwrite",
			args: args[target]{
				key:  "key1",
				val:  &target{Key: "key1", Val: 3},
				m:    ms,
				opts: []func(*SetOptions){WithOverwrite()},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Set[target](t.Context(), tt.args.key, tt.args.val, tt.args.m, tt.args.opts...)
			if err != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: Set() error = %+v, wantErr %+v", tt.name, err, tt.wantErr)
			}

			if tt.wantErr == nil {
				val, getErr := Get[target](t.Context(), tt.args.key, tt.args.m)
				if getErr != nil {
					t.Fatal(getErr)
				}
				if val.Key != tt.args.val.Key || val.Val != tt.args.val.Val {
					t.Errorf("%s: Set() Val = %+v, want %+v", tt.name, val, tt.args.val)
				}
			}
		})
	}
	assert.Equal(t, 1, ms.Len())
}

func TestSet_SingleWinner(t *testing.T) {
	ms := NewMemStorage()

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()
			if err := Set(t.Context(), "same", &target{Key: "same", Val: i}, ms); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, ms.Len())
}

func TestGet_NotFound(t *testing.T) {
	_, err := Get[target](t.Context(), "missing", NewMemStorage())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ms := NewMemStorage()
	require.NoError(t, Set(t.Context(), "k", &target{Key: "k"}, ms))

	t.Run("concurrent increments", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(100)
		for range 100 {
			go func() {
				defer wg.Done()
				_, err := Update(t.Context(), "k", ms, func(v *target) error {
					v.Val++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		val, err := Get[target](t.Context(), "k", ms)
		require.NoError(t, err)
		assert.Equal(t, 100, val.Val)
	})

	t.Run("fn error keeps value", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Update(t.Context(), "k", ms, func(v *target) error {
			v.Val = -1
			return boom
		})
		require.ErrorIs(t, err, boom)

		val, err := Get[target](t.Context(), "k", ms)
		require.NoError(t, err)
		assert.Equal(t, 100, val.Val)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := Update(t.Context(), "nope", ms, func(*target) error { return nil })
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateWithLog(t *testing.T) {
	ms := NewMemStorage()
	require.NoError(t, Set(t.Context(), "k", &target{Key: "k"}, ms))

	var wg sync.WaitGroup
	wg.Add(64)
	for range 64 {
		go func() {
			defer wg.Done()
			_, err := UpdateWithLog(t.Context(), "k", ms, func(v *target) (*record, error) {
				v.Val++
				return &record{N: v.Val}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	val, err := Get[target](t.Context(), "k", ms)
	require.NoError(t, err)

	var got []int
	for rec, logErr := range Log[record](t.Context(), "k", ms) {
		require.NoError(t, logErr)
		got = append(got, rec.N)
	}
	require.Len(t, got, val.Val)
	// Запись журнала делается в той же критической секции, что и инкремент,
	// поэтому номера идут строго по порядку.
	for i, n := range got {
		assert.Equal(t, i+1, n)
	}
}

func TestLog(t *testing.T) {
	ms := NewMemStorage()
	require.NoError(t, Set(t.Context(), "k", &target{Key: "k"}, ms))

	t.Run("missing key is empty", func(t *testing.T) {
		for range Log[record](t.Context(), "missing", ms) {
			t.Fatal("unexpected record")
		}
	})

	t.Run("append to missing key", func(t *testing.T) {
		require.ErrorIs(t, Append(t.Context(), "missing", &record{N: 1}, ms), ErrNotFound)
	})

	for i := range 3 {
		require.NoError(t, Append(t.Context(), "k", &record{N: i}, ms))
	}

	t.Run("restartable", func(t *testing.T) {
		seq := Log[record](t.Context(), "k", ms)
		count := func() int {
			n := 0
			for _, err := range seq {
				require.NoError(t, err)
				n++
			}
			return n
		}
		assert.Equal(t, 3, count())
		require.NoError(t, Append(t.Context(), "k", &record{N: 3}, ms))
		assert.Equal(t, 4, count())
	})

	t.Run("early stop", func(t *testing.T) {
		n := 0
		for range Log[record](t.Context(), "k", ms) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func TestUpdateAll(t *testing.T) {
	ms := NewMemStorage()
	for i := range 10 {
		key := string(rune('a' + i))
		require.NoError(t, Set(t.Context(), key, &target{Key: key, Val: i}, ms))
	}

	updated, err := UpdateAll(t.Context(), ms, func(v *target) (bool, error) {
		if v.Val%2 != 0 {
			return false, nil
		}
		v.Val = -1
		return true, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, updated)

	for i := range 10 {
		key := string(rune('a' + i))
		got, getErr := Get[target](t.Context(), key, ms)
		require.NoError(t, getErr)
		if i%2 == 0 {
			assert.Equal(t, -1, got.Val, key)
		} else {
			assert.Equal(t, i, got.Val, key)
		}
	}
}
