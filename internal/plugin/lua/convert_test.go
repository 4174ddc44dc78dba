package lua

import (
	"context"
	"reflect"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestToGo(t *testing.T) {
	state := newTestState(t)
	err := state.DoString(context.Background(), `
		b = true
		i = 42
		f = 1.5
		s = "text"
		arr = {"a", "b", "c"}
		map = {name = "undo", depth = 2}
		fn = function() end
		cyc = {}
		cyc.self = cyc
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	tests := []struct {
		global string
		want   any
	}{
		{"b", true},
		{"i", int64(42)},
		{"f", 1.5},
		{"s", "text"},
		{"arr", []any{"a", "b", "c"}},
		{"map", map[string]any{"name": "undo", "depth": int64(2)}},
		{"fn", nil},
		{"missing", nil},
		{"cyc", map[string]any{"self": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.global, func(t *testing.T) {
			got := ToGo(state.GetGlobal(tt.global))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToGo(%s) = %#v, want %#v", tt.global, got, tt.want)
			}
		})
	}
}

func TestToLua(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	type point struct{ X, Y int }

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 7, int64(7)},
		{"uint8", uint8(3), int64(3)},
		{"float", 2.5, 2.5},
		{"string", "x", "x"},
		{"bytes", []byte("raw"), "raw"},
		{"duration", 5 * time.Second, "5s"},
		{"strings", []string{"a", "b"}, []any{"a", "b"}},
		{"map", map[string]int{"n": 1}, map[string]any{"n": int64(1)}},
		{"pointer", &[]int{1}, []any{int64(1)}},
		{"nil pointer", (*int)(nil), nil},
		{"lua value", glua.LString("kept"), "kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToGo(ToLua(L, tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToGo(ToLua(%v)) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	ud, ok := ToLua(L, point{1, 2}).(*glua.LUserData)
	if !ok || ud.Value != (point{1, 2}) {
		t.Errorf("ToLua(struct) = %v, want userdata", ud)
	}
}
