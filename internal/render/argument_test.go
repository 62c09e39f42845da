package render

import (
	"os"
	"testing"
	"unsafe"
)

type point struct{ X, Y int }

func TestValueScalars(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", `"hello"`},
		{"control chars", "a\x00b\nc\rd\x1ae\tf", `"a\0b\nc\rd\Ze\tf"`},
		{"int", 42, "42"},
		{"negative", int8(-3), "-3"},
		{"uint", uint64(7), "7"},
		{"float", 1.5, "1.5"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"nil", nil, "Unknown type variable"},
		{"struct", point{1, 2}, "Object render.point"},
		{"struct pointer", &point{1, 2}, "Object render.point"},
		{"chan", make(chan int), "Resource chan"},
		{"func", func() {}, "Resource func"},
		{"unsafe pointer", unsafe.Pointer(&point{}), "Resource pointer"},
		{"file", os.Stdout, "Resource stream"},
		{"nil pointer", (*int)(nil), "Unknown type variable"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Value(tt.in); got != tt.want {
				t.Fatalf("Value(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueContainers(t *testing.T) {
	t.Parallel()
	if got, want := Value([]any{"a", 1}), `array( 0 => "a", 1 => 1 )`; got != want {
		t.Fatalf("slice: got %q want %q", got, want)
	}
	if got, want := Value(map[string]int{"b": 2, "a": 1}), `array( "a" => 1, "b" => 2 )`; got != want {
		t.Fatalf("map: got %q want %q", got, want)
	}
	if got, want := Value(map[int]string{10: "x", 2: "y"}), `array( 2 => "y", 10 => "x" )`; got != want {
		t.Fatalf("int keys: got %q want %q", got, want)
	}
	if got, want := Value([]int{}), "array(  )"; got != want {
		t.Fatalf("empty: got %q want %q", got, want)
	}
}

func TestValueDepthLimit(t *testing.T) {
	t.Parallel()
	nested := []any{[]any{[]any{1}}}
	if got, want := Value(nested), "array( 0 => array( skipped ) )"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestValueSelfReferential(t *testing.T) {
	t.Parallel()
	m := map[string]any{}
	m["self"] = m
	if got, want := Value(m), `array( "self" => array( skipped ) )`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	s := make([]any, 1)
	s[0] = s
	if got, want := Value(s), "array( 0 => array( skipped ) )"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	var p any
	p = &p
	if got := Value(p); got != "Unknown type variable" {
		t.Fatalf("pointer cycle: got %q", got)
	}
}

func TestValuePointerToScalar(t *testing.T) {
	t.Parallel()
	n := 5
	if got := Value(&n); got != "5" {
		t.Fatalf("got %q", got)
	}
}
