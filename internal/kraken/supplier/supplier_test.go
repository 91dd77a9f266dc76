package supplier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLiteralSupplierAlwaysHasValue(t *testing.T) {
	t.Parallel()

	s := Literal(42)
	v, ok := s.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Empty(t, s.DerivedFrom())
}

func TestVoidSupplierIsAlwaysEmpty(t *testing.T) {
	t.Parallel()

	s := Void[string]()
	_, ok := s.Value()
	require.False(t, ok)
	require.Empty(t, s.DerivedFrom())
}

func TestMapIsLazyAndPreservesLineage(t *testing.T) {
	t.Parallel()

	calls := 0
	base := Literal(10)
	mapped := Map(base, func(v int) int {
		calls++
		return v * 2
	})
	require.Equal(t, 0, calls, "map must not evaluate eagerly")

	v, ok := mapped.Value()
	require.True(t, ok)
	require.Equal(t, 20, v)
	require.Equal(t, 1, calls)

	require.Len(t, mapped.DerivedFrom(), 1)
	require.Same(t, base.Raw(), mapped.DerivedFrom()[0])
}

func TestMapIsIdempotent(t *testing.T) {
	t.Parallel()

	mapped := Map(Literal(3), func(v int) int { return v + 1 })
	first, _ := mapped.Value()
	second, _ := mapped.Value()
	require.Equal(t, first, second)
}

func TestMapPropagatesEmpty(t *testing.T) {
	t.Parallel()

	calls := 0
	mapped := Map(Void[int](), func(v int) int {
		calls++
		return v
	})
	_, ok := mapped.Value()
	require.False(t, ok)
	require.Equal(t, 0, calls, "f must not run over an Empty upstream")
}

func TestValueMismatchedTypeIsEmpty(t *testing.T) {
	t.Parallel()

	raw := Literal[any]("a string")
	typed := FromRaw[int](raw.Raw())
	_, ok := typed.Value()
	require.False(t, ok)
}
