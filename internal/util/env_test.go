package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("RESUMEPIPE_TEST_BOOL", "yes")
	if !ParseBoolEnv("RESUMEPIPE_TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}

	t.Setenv("RESUMEPIPE_TEST_BOOL", "off")
	if ParseBoolEnv("RESUMEPIPE_TEST_BOOL", true) {
		t.Error("expected off to parse as false")
	}

	t.Setenv("RESUMEPIPE_TEST_BOOL", "maybe")
	if !ParseBoolEnv("RESUMEPIPE_TEST_BOOL", true) {
		t.Error("expected invalid value to fall back to default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("RESUMEPIPE_TEST_INT", "7")
	if got := ParseIntEnv("RESUMEPIPE_TEST_INT", 5); got != 7 {
		t.Errorf("ParseIntEnv() = %d, want 7", got)
	}

	t.Setenv("RESUMEPIPE_TEST_INT", "seven")
	if got := ParseIntEnv("RESUMEPIPE_TEST_INT", 5); got != 5 {
		t.Errorf("ParseIntEnv() invalid = %d, want default 5", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("RESUMEPIPE_TEST_DURATION", "90m")
	if got := ParseDurationEnv("RESUMEPIPE_TEST_DURATION", time.Hour); got != 90*time.Minute {
		t.Errorf("ParseDurationEnv() = %v, want 90m", got)
	}

	t.Setenv("RESUMEPIPE_TEST_DURATION", "-1h")
	if got := ParseDurationEnv("RESUMEPIPE_TEST_DURATION", time.Hour); got != time.Hour {
		t.Errorf("ParseDurationEnv() negative = %v, want default", got)
	}
}

func TestParseListEnv(t *testing.T) {
	t.Setenv("RESUMEPIPE_TEST_LIST", " 42, ,7 ")
	got := ParseListEnv("RESUMEPIPE_TEST_LIST")
	if len(got) != 2 || got[0] != "42" || got[1] != "7" {
		t.Errorf("ParseListEnv() = %v, want [42 7]", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("RESUMEPIPE_TEST_STR", "")
	if got := GetEnv("RESUMEPIPE_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("GetEnv() = %q, want fallback", got)
	}
}
