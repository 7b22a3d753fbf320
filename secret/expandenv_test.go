package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("SO_AUTH_TEST_KEY", "abc")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no vars", "plain", "plain"},
		{"braced", "${SO_AUTH_TEST_KEY}", "abc"},
		{"bare", "key=$SO_AUTH_TEST_KEY", "key=abc"},
		{"escaped dollar", "cost $$5", "cost $5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ExpandEnvStrict(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict_Missing(t *testing.T) {
	_, err := ExpandEnvStrict("${SO_AUTH_NOPE_B} ${SO_AUTH_NOPE_A} ${SO_AUTH_NOPE_A}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "SO_AUTH_NOPE_A, SO_AUTH_NOPE_B") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}
