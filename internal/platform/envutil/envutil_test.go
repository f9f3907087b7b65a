package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "abc")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", " 42 ")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 42 {
		t.Fatalf("Int: want=42 got=%d", got)
	}
}

func TestSeconds(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_SECS", "0")
	if got := Seconds("ENVUTIL_TEST_SECS", time.Minute); got != time.Minute {
		t.Fatalf("Seconds: want=%s got=%s", time.Minute, got)
	}
	t.Setenv("ENVUTIL_TEST_SECS", "90")
	if got := Seconds("ENVUTIL_TEST_SECS", time.Minute); got != 90*time.Second {
		t.Fatalf("Seconds: want=%s got=%s", 90*time.Second, got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_LIST", " onrender.com, ,vercel.app ")
	got := List("ENVUTIL_TEST_LIST")
	if len(got) != 2 || got[0] != "onrender.com" || got[1] != "vercel.app" {
		t.Fatalf("List: got=%v", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool: want=false got=true")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool: want default true")
	}
}
