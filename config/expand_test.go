package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	env := map[string]string{
		"LICENSING_JWT_KEY": "s3cret",
		"REDIS_HOST":        "redis",
		"EMPTY":             "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name    string
		in      string
		want    string
		missing string
	}{
		{"plain", "licensing-service", "licensing-service", ""},
		{"braced", "${LICENSING_JWT_KEY}", "s3cret", ""},
		{"bare", "$REDIS_HOST:6379", "redis:6379", ""},
		{"empty but set", "x${EMPTY}y", "xy", ""},
		{"escaped dollar", "pa$$word", "pa$word", ""},
		{"escaped reference", "$${NOT_SET}", "${NOT_SET}", ""},
		{"missing", "${NOT_SET}", "", "NOT_SET"},
		{"missing sorted and deduplicated", "${B_MISSING}${A_MISSING}${B_MISSING}", "", "A_MISSING, B_MISSING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvStrict(tt.in, lookup)
			if tt.missing != "" {
				if !errors.Is(err, ErrMissingEnv) {
					t.Fatalf("error = %v, want ErrMissingEnv", err)
				}
				if !strings.HasSuffix(err.Error(), tt.missing) {
					t.Errorf("error = %q, want it to list %s", err, tt.missing)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrict_OS(t *testing.T) {
	t.Setenv("CALLGUARD_TEST_VALUE", "from-env")

	got, err := ExpandEnvStrict("${CALLGUARD_TEST_VALUE}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("ExpandEnvStrict() = %q, want from-env", got)
	}
}
