package validate_test

import (
	"strings"
	"testing"

	"github.com/Astemirdum/book-library/pkg/validate"
	"github.com/stretchr/testify/require"
)

func TestIsISBN(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"9780143424888", true},
		{"978-0-14-342488-8", true},
		{"014342488X", true},
		{"014342488x", true},
		{"12345", false},
		{"", false},
		{"97801434248ab", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, validate.IsISBN(tt.in), tt.in)
	}
}

func TestCustomValidator(t *testing.T) {
	t.Parallel()
	type req struct {
		ISBN     string `validate:"required,isbn"`
		Username string `validate:"required,min=3"`
	}
	v := validate.NewCustomValidator()
	require.NoError(t, v.Validate(req{ISBN: "9780143424888", Username: "alice"}))
	require.Error(t, v.Validate(req{ISBN: "nope", Username: "alice"}))
	require.Error(t, v.Validate(req{ISBN: "9780143424888", Username: "al"}))
}

func TestNormalizeISBN(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"9780143424888", "9780143424888"},
		{"978-0143424888", "9780143424888"},
		{"978 0 14 342488 8", "9780143424888"},
		{"0-14-342488-x", "014342488X"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, validate.NormalizeISBN(tt.in), tt.in)
	}
}

func TestCustomValidator_BcryptMax(t *testing.T) {
	t.Parallel()
	type req struct {
		Password string `validate:"required,bcryptmax"`
	}
	v := validate.NewCustomValidator()
	require.NoError(t, v.Validate(req{Password: strings.Repeat("a", 72)}))
	require.NoError(t, v.Validate(req{Password: strings.Repeat("é", 36)}))
	require.Error(t, v.Validate(req{Password: strings.Repeat("a", 73)}))
	require.Error(t, v.Validate(req{Password: strings.Repeat("é", 40)}))
}
