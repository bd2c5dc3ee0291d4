package env

import (
	"reflect"
	"testing"
	"time"
)

func TestString_Default(t *testing.T) {
	got := String("ENV_STRING_DOES_NOT_EXIST", "fallback")
	if got != "fallback" {
		t.Fatalf("String()=%q, want fallback", got)
	}
}

func TestString_Override(t *testing.T) {
	t.Setenv("ENV_STRING_KEY", "value")
	got := String("ENV_STRING_KEY", "fallback")
	if got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
}

func TestStrings_SplitsAndTrims(t *testing.T) {
	t.Setenv("ENV_STRINGS_KEY", " a, b ,,c ")
	got := Strings("ENV_STRINGS_KEY", nil)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Strings()=%v", got)
	}
}

func TestStrings_Default(t *testing.T) {
	got := Strings("ENV_STRINGS_DOES_NOT_EXIST", []string{"x"})
	if !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("Strings()=%v, want [x]", got)
	}
}

func TestDuration_Default(t *testing.T) {
	got, err := Duration("ENV_DURATION_DOES_NOT_EXIST", 5*time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 5*time.Second {
		t.Fatalf("Duration()=%v, want 5s", got)
	}
}

func TestDuration_Override(t *testing.T) {
	t.Setenv("ENV_DURATION_KEY", "250ms")
	got, err := Duration("ENV_DURATION_KEY", 5*time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 250*time.Millisecond {
		t.Fatalf("Duration()=%v, want 250ms", got)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Setenv("ENV_DURATION_KEY_INVALID", "not-a-duration")
	if _, err := Duration("ENV_DURATION_KEY_INVALID", 5*time.Second); err == nil {
		t.Fatalf("Duration() expected error")
	}
}

func TestBool_Override(t *testing.T) {
	t.Setenv("ENV_BOOL_KEY", "false")
	got, err := Bool("ENV_BOOL_KEY", true)
	if err != nil {
		t.Fatalf("Bool() err=%v", err)
	}
	if got {
		t.Fatalf("Bool()=%v, want false", got)
	}
}

func TestBool_Invalid(t *testing.T) {
	t.Setenv("ENV_BOOL_KEY_INVALID", "nope")
	if _, err := Bool("ENV_BOOL_KEY_INVALID", false); err == nil {
		t.Fatalf("Bool() expected error")
	}
}

func TestInt_Override(t *testing.T) {
	t.Setenv("ENV_INT_KEY", "7")
	got, err := Int("ENV_INT_KEY", 42)
	if err != nil {
		t.Fatalf("Int() err=%v", err)
	}
	if got != 7 {
		t.Fatalf("Int()=%v, want 7", got)
	}
}

func TestInt_Invalid(t *testing.T) {
	t.Setenv("ENV_INT_KEY_INVALID", "nope")
	if _, err := Int("ENV_INT_KEY_INVALID", 42); err == nil {
		t.Fatalf("Int() expected error")
	}
}
