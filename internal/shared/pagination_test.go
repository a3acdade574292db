package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 31)
	require.Equal(t, 1, p.CurrentPage)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 3, p.LastPage)
	require.Equal(t, 31, p.Total)
}

func TestNewPaginationEmpty(t *testing.T) {
	p := NewPagination(2, 10, 0)
	require.Equal(t, 1, p.LastPage)
	require.Equal(t, 2, p.CurrentPage)
}

func TestOffset(t *testing.T) {
	require.Equal(t, 0, Offset(1, 15))
	require.Equal(t, 30, Offset(3, 15))
	require.Equal(t, 0, Offset(-1, 0))
}
