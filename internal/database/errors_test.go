package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func Test_isUniqueViolation(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "unique violation",
			err:      &pq.Error{Code: "23505"},
			expected: true,
		},
		{
			name:     "wrapped unique violation",
			err:      fmt.Errorf("insert chat: %w", &pq.Error{Code: "23505"}),
			expected: true,
		},
		{
			name:     "other pq error",
			err:      &pq.Error{Code: "23503"},
			expected: false,
		},
		{
			name:     "non-pq error",
			err:      errors.New("connection reset"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isUniqueViolation(tc.err))
		})
	}
}

func Test_mapError(t *testing.T) {
	tcases := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "nil stays nil",
			err:      nil,
			expected: nil,
		},
		{
			name:     "no rows becomes ErrNotFound",
			err:      sql.ErrNoRows,
			expected: ErrNotFound,
		},
		{
			name:     "wrapped no rows becomes ErrNotFound",
			err:      fmt.Errorf("select chat: %w", sql.ErrNoRows),
			expected: ErrNotFound,
		},
		{
			name:     "unique violation becomes ErrDuplicate",
			err:      &pq.Error{Code: "23505"},
			expected: ErrDuplicate,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, mapError(tc.err))
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		err := errors.New("connection reset")
		assert.Equal(t, err, mapError(err))
	})
}
