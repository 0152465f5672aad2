package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipr/internal/repository/memory"
)

// saturatedStorage reports every code as taken, simulating an exhausted
// namespace.
type saturatedStorage struct {
	*memory.MemStorage
}

func (s *saturatedStorage) CodeExists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func TestCodeAllocator_Random(t *testing.T) {
	alloc := NewCodeAllocator(memory.New(), 6)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := alloc.Allocate(context.Background(), "")
		require.NoError(t, err)
		assert.Len(t, code, 6)
		seen[code] = true
	}

	// 100 draws from a 62^6 space should never collide.
	assert.Len(t, seen, 100)
}

func TestCodeAllocator_DefaultLength(t *testing.T) {
	alloc := NewCodeAllocator(memory.New(), 0)

	code, err := alloc.Allocate(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, code, defaultCodeLength)
}

func TestCodeAllocator_Custom(t *testing.T) {
	storage := memory.New()
	alloc := NewCodeAllocator(storage, 6)
	ctx := context.Background()

	code, err := alloc.Allocate(ctx, "my-link_42")
	require.NoError(t, err)
	assert.Equal(t, "my-link_42", code)

	for _, bad := range []string{"ab", "has space", "näh", "this-code-is-way-over-twenty-chars"} {
		_, err := alloc.Allocate(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidInput, "code %q", bad)
	}
}

func TestCodeAllocator_CustomTaken(t *testing.T) {
	alloc := NewCodeAllocator(&saturatedStorage{memory.New()}, 6)

	_, err := alloc.Allocate(context.Background(), "wanted")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCodeAllocator_Exhausted(t *testing.T) {
	alloc := NewCodeAllocator(&saturatedStorage{memory.New()}, 6)

	_, err := alloc.Allocate(context.Background(), "")
	assert.ErrorIs(t, err, ErrAllocationExhausted)
}
