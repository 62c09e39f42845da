package render

import (
	"net"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	// maxDepth is the container nesting level at which rendering stops.
	maxDepth = 2
	// maxDeref bounds pointer/interface chains like `p = &p`.
	maxDeref = 8

	unknownType = "Unknown type variable"
)

var controlReplacer = strings.NewReplacer(
	"\x00", `\0`,
	"\x0a", `\n`,
	"\x0d", `\r`,
	"\x1a", `\Z`,
	"\x09", `\t`,
)

var (
	fileType = reflect.TypeOf((*os.File)(nil))
	connType = reflect.TypeOf((*net.Conn)(nil)).Elem()
)

// Value renders an arbitrary value as stable, single-line text.
// It is total: every input produces a string and nothing panics.
func Value(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = unknownType
		}
	}()
	return valueAt(reflect.ValueOf(v), 0)
}

func valueAt(v reflect.Value, depth int) string {
	for i := 0; ; i++ {
		if !v.IsValid() {
			return unknownType
		}
		if isResource(v) {
			return "Resource " + resourceKind(v)
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
			break
		}
		if v.IsNil() || i >= maxDeref {
			return unknownType
		}
		if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
			return "Object " + typeName(v.Type())
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return `"` + controlReplacer.Replace(v.String()) + `"`
	case reflect.Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(v.Complex(), 'g', -1, 128)
	case reflect.Slice, reflect.Array, reflect.Map:
		return containerAt(v, depth)
	case reflect.Struct:
		return "Object " + typeName(v.Type())
	}
	return unknownType
}

func containerAt(v reflect.Value, depth int) string {
	var b strings.Builder
	b.WriteString("array( ")
	depth++
	if depth < maxDepth {
		comma := ""
		writePair := func(k, val reflect.Value) {
			b.WriteString(comma)
			b.WriteString(valueAt(k, 0))
			b.WriteString(" => ")
			b.WriteString(valueAt(val, depth))
			comma = ", "
		}
		if v.Kind() == reflect.Map {
			keys := v.MapKeys()
			sortKeys(keys)
			for _, k := range keys {
				writePair(k, v.MapIndex(k))
			}
		} else {
			for i := 0; i < v.Len(); i++ {
				writePair(reflect.ValueOf(i), v.Index(i))
			}
		}
	} else {
		b.WriteString("skipped")
	}
	b.WriteString(" )")
	return b.String()
}

// sortKeys orders map keys numerically when both are numbers, otherwise by
// their rendered text, so map output is stable between runs.
func sortKeys(keys []reflect.Value) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := numeric(keys[i])
		b, bok := numeric(keys[j])
		if aok && bok {
			return a < b
		}
		return valueAt(keys[i], 0) < valueAt(keys[j], 0)
	})
}

func numeric(v reflect.Value) (float64, bool) {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

func isResource(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Uintptr:
		return true
	}
	t := v.Type()
	return t == fileType || (t.Kind() != reflect.Interface && t.Implements(connType))
}

func resourceKind(v reflect.Value) string {
	t := v.Type()
	switch {
	case t == fileType:
		return "stream"
	case t.Kind() != reflect.Interface && t.Implements(connType):
		return "socket"
	case v.Kind() == reflect.Chan:
		return "chan"
	case v.Kind() == reflect.Func:
		return "func"
	}
	return "pointer"
}

// typeName is the package-qualified name with pointer markers removed.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
