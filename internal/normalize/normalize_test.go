package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase and punctuation", in: "Nurofen-Forte, 400mg", want: "nurofen forte 400mg"},
		{name: "keeps dosage digits", in: "Ибупрофен 200 мг", want: "ибупрофен 200 мг"},
		{name: "slash to space", in: "Vitamin A/D", want: "vitamin a d"},
		{name: "collapses whitespace", in: "  a   b\t c ", want: "a b c"},
		{name: "strips symbols", in: "Но-шпа® №24!", want: "но шпа 24"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   \t\n", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Light(tt.in))
		})
	}
}

func TestAggressive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "drops dosage and form", in: "Nurofen Forte 400mg tablets N12", want: "nurofen forte"},
		{name: "drops russian form words", in: "Ибупрофен таблетки 200 мг №20", want: "ибупрофен"},
		{name: "drops parenthesized segment", in: "Парацетамол (блистер) сироп 100 мл", want: "парацетамол"},
		{name: "drops route qualifier", in: "Аква Марис спрей назальный 30мл", want: "аква марис"},
		{name: "keeps brand words", in: "Терафлю Экстра", want: "терафлю экстра"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Aggressive(tt.in))
		})
	}
}

// Both modes must be idempotent: normalizing an already-normal key is a no-op.
func TestIdempotence(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Nurofen Forte 400mg tablets N12",
		"Ибупрофен, таблетки 200 мг №20",
		"Vitamin A/D (drops) 10 ml",
		"",
		"  already   plain text  ",
	}
	for _, in := range inputs {
		require.Equal(t, Light(in), Light(Light(in)), "light not idempotent for %q", in)
		require.Equal(t, Aggressive(in), Aggressive(Aggressive(in)), "aggressive not idempotent for %q", in)
	}
}

func TestApplySelectsMode(t *testing.T) {
	t.Parallel()

	in := "Нурофен 400 мг таблетки"
	require.Equal(t, Light(in), Apply(ModeLight, in))
	require.Equal(t, Aggressive(in), Apply(ModeAggressive, in))
}
