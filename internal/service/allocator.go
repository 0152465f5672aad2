package service

import (
	"context"
	"fmt"

	"snipr/internal/repository"
	"snipr/pkg/shortcode"
)

const (
	defaultCodeLength = 6

	// maxAllocationAttempts bounds the rejection-sampling loop. At 6
	// random base62 characters collisions are astronomically rare, so the
	// cap only guards pathological stores.
	maxAllocationAttempts = 10
)

// CodeAllocator produces unique short codes. Its uniqueness read is an
// optimization only; the storage layer's unique constraint on the code
// column is the real guarantee, so callers must treat a duplicate-key
// insert as retryable when the code was randomly generated.
type CodeAllocator struct {
	storage repository.Storage
	length  int
}

func NewCodeAllocator(storage repository.Storage, length int) *CodeAllocator {
	if length <= 0 {
		length = defaultCodeLength
	}
	return &CodeAllocator{
		storage: storage,
		length:  length,
	}
}

// Allocate returns a free short code. A desired custom code is validated
// and checked for uniqueness against all rows, soft-deleted included; an
// empty desired code triggers random generation with retries.
func (a *CodeAllocator) Allocate(ctx context.Context, desired string) (string, error) {
	if desired != "" {
		if err := shortcode.Validate(desired); err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}

		taken, err := a.storage.CodeExists(ctx, desired)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if taken {
			return "", ErrConflict
		}
		return desired, nil
	}

	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		code, err := shortcode.Generate(a.length)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		taken, err := a.storage.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrAllocationExhausted
}
