package golib

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("GOLIB_TEST_STR", "  value  ")
	if got := GetEnv("GOLIB_TEST_STR", "fallback"); got != "value" {
		t.Errorf("got %q, want value", got)
	}
	if got := GetEnv("GOLIB_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("GOLIB_TEST_INT", "42")
	t.Setenv("GOLIB_TEST_BAD_INT", "forty-two")

	if got := GetEnvInt("GOLIB_TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if got := GetEnvInt("GOLIB_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("got %d, want fallback 7", got)
	}
	if got := GetEnvInt64("GOLIB_TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt64 got %d, want 42", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("GOLIB_TEST_BOOL", "true")
	t.Setenv("GOLIB_TEST_BAD_BOOL", "yes please")

	if !GetEnvBool("GOLIB_TEST_BOOL", false) {
		t.Error("got false, want true")
	}
	if !GetEnvBool("GOLIB_TEST_BAD_BOOL", true) {
		t.Error("unparseable value should return fallback")
	}
	if GetEnvBool("GOLIB_TEST_UNSET", false) {
		t.Error("unset value should return fallback")
	}
}

func TestNewLogger(t *testing.T) {
	for _, dev := range []bool{true, false} {
		l, err := NewLogger(dev)
		if err != nil {
			t.Fatalf("NewLogger(%v): %v", dev, err)
		}
		l.Infow("test", "development", dev)
	}
}
