package util

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		hexLength int
		wantLen   int
	}{
		{"outbox prefix", "outbox_", 32, 39},
		{"empty prefix", "", 8, 8},
		{"zero length", "x_", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.prefix)
			}
			if len(got) != tt.wantLen {
				t.Errorf("GenerateRandomID() length = %d, want %d", len(got), tt.wantLen)
			}
			if !isValidHex(got[len(tt.prefix):]) {
				t.Errorf("GenerateRandomID() = %v has non-hex suffix", got)
			}
		})
	}
}

func TestRandomIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)
	for i := 0; i < iterations; i++ {
		id := GenerateOutboxID()
		if seen[id] {
			t.Errorf("GenerateOutboxID() generated duplicate: %v", id)
		}
		seen[id] = true
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateOTP(6)
		if err != nil {
			t.Fatalf("GenerateOTP() error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("GenerateOTP() = %q, want 6 digits", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("GenerateOTP() = %q contains non-digit", code)
			}
		}
	}
	if _, err := GenerateOTP(0); err == nil {
		t.Error("GenerateOTP(0) should fail")
	}
}

func TestParseEnvHelpers(t *testing.T) {
	t.Setenv("YB_TEST_DURATION", "90s")
	t.Setenv("YB_TEST_BAD_DURATION", "soon")
	t.Setenv("YB_TEST_INT", "42")
	t.Setenv("YB_TEST_NEG_INT", "-1")
	t.Setenv("YB_TEST_BOOL", "Yes")
	t.Setenv("YB_TEST_FLOAT", "0.75")

	if got := ParseDurationEnv("YB_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("ParseDurationEnv = %v, want 90s", got)
	}
	if got := ParseDurationEnv("YB_TEST_BAD_DURATION", time.Minute); got != time.Minute {
		t.Errorf("ParseDurationEnv invalid = %v, want default", got)
	}
	if got := ParseDurationEnv("YB_TEST_UNSET", 5*time.Second); got != 5*time.Second {
		t.Errorf("ParseDurationEnv unset = %v, want default", got)
	}
	if got := ParseIntEnv("YB_TEST_INT", 1); got != 42 {
		t.Errorf("ParseIntEnv = %d, want 42", got)
	}
	if got := ParseIntEnv("YB_TEST_NEG_INT", 7); got != 7 {
		t.Errorf("ParseIntEnv negative = %d, want default", got)
	}
	if !ParseBoolEnv("YB_TEST_BOOL", false) {
		t.Error("ParseBoolEnv should accept Yes")
	}
	if got := ParseFloatEnv("YB_TEST_FLOAT", 0.1); got != 0.75 {
		t.Errorf("ParseFloatEnv = %v, want 0.75", got)
	}
}

func isValidHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
