package formulary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingResolver answers from a map and counts the questions.
type countingResolver struct {
	answers map[string]string
	err     error
	calls   int
}

func (c *countingResolver) ResolveIngredient(_ context.Context, name string) (string, error) {
	c.calls++
	return c.answers[name], c.err
}

func TestResolveIngredient_BuiltinTable(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		want string
	}{
		{name: "Vfend", want: "Voriconazol"},
		{name: "VFEND 200mg comprimido", want: "Voriconazol"},
		{name: "voriconazol", want: "Voriconazol"},
		{name: "Anfotericina B lipossomal", want: "Anfotericina B"},
		{name: "Clavulin BD", want: "Amoxicilina e clavulanato"},
		{name: "Amoxicilina e clavulanato", want: "Amoxicilina e clavulanato"},
		{name: "Amoxicilina 500mg", want: "Amoxicilina"},
		{name: "Puran T4 50mcg", want: "Levotiroxina"},
		{name: "Desconhecidol", want: ""},
		{name: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ResolveIngredient(ctx, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_UserTableOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Voriconazol: [Vori]\nTacrolimo: [Prograf]\nFluconazol genérico: [Zoltec]\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := f.ResolveIngredient(ctx, "Prograf")
	require.NoError(t, err)
	assert.Equal(t, "Tacrolimo", got)

	got, err = f.ResolveIngredient(ctx, "Vori 200mg")
	require.NoError(t, err)
	assert.Equal(t, "Voriconazol", got)

	got, err = f.ResolveIngredient(ctx, "Zoltec")
	require.NoError(t, err)
	assert.Equal(t, "Fluconazol genérico", got)

	got, err = f.ResolveIngredient(ctx, "Vfend")
	require.NoError(t, err)
	assert.Equal(t, "Voriconazol", got, "built-in names stay known")
}

func TestLoad_MissingFileUsesBuiltin(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Positive(t, f.Len())
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "formulary.yaml")
}

func TestResolveIngredient_FallbackIsMemoised(t *testing.T) {
	model := &countingResolver{answers: map[string]string{"Tazocin": "Piperacilina e tazobactam"}}
	f, err := New(WithFallback(model))
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		got, err := f.ResolveIngredient(ctx, "Tazocin")
		require.NoError(t, err)
		assert.Equal(t, "Piperacilina e tazobactam", got)
	}
	assert.Equal(t, 1, model.calls)

	// Unknown answers are remembered too.
	for range 2 {
		got, err := f.ResolveIngredient(ctx, "xyz")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 2, model.calls)

	// The table is consulted before the fallback.
	_, err = f.ResolveIngredient(ctx, "Vfend")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)
}

func TestResolveIngredient_FallbackErrorsAreNotCached(t *testing.T) {
	model := &countingResolver{err: errors.New("timeout")}
	f, err := New(WithFallback(model))
	require.NoError(t, err)

	_, err = f.ResolveIngredient(context.Background(), "Tazocin")
	require.Error(t, err)

	model.err = nil
	model.answers = map[string]string{"Tazocin": "Piperacilina e tazobactam"}
	got, err := f.ResolveIngredient(context.Background(), "Tazocin")
	require.NoError(t, err)
	assert.Equal(t, "Piperacilina e tazobactam", got)
	assert.Equal(t, 2, model.calls)
}
