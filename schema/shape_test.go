package schema

import (
	"errors"
	"testing"

	hserrors "github.com/wippyai/hostshim/errors"
)

func TestKind_FlatCount(t *testing.T) {
	for k := KindU8; k <= KindHandle; k++ {
		want := 1
		if k == KindString || k == KindArray {
			want = 2
		}
		if got := k.FlatCount(); got != want {
			t.Errorf("%s.FlatCount() = %d, want %d", k, got, want)
		}
	}
}

func TestShape_NeedsMemory(t *testing.T) {
	tests := []struct {
		shape *Shape
		want  bool
	}{
		{ScalarShape(KindU32), false},
		{ScalarShape(KindF64), false},
		{EnumShape("errno", 76), false},
		{FlagsShape("oflags", 0xf), false},
		{IntShape("count", 0, 100), false},
		{HandleShape("fd", 1), false},
		{StringShape(), true},
		{ArrayShape(ScalarShape(KindU8)), true},
		{StructShape("iovec", 8, 4), true},
		{UnionShape("event", 16, 8), true},
		{PointerShape(ScalarShape(KindU32)), true},
		{ConstPointerShape(ScalarShape(KindU8)), true},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			if got := tt.shape.NeedsMemory(); got != tt.want {
				t.Errorf("NeedsMemory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShape_Layout(t *testing.T) {
	tests := []struct {
		name  string
		shape *Shape
		size  uint32
		align uint32
	}{
		{"u8", ScalarShape(KindU8), 1, 1},
		{"s16", ScalarShape(KindS16), 2, 2},
		{"u32", ScalarShape(KindU32), 4, 4},
		{"usize", ScalarShape(KindUSize), 4, 4},
		{"f64", ScalarShape(KindF64), 8, 8},
		{"small enum", EnumShape("errno", 76), 1, 1},
		{"wide enum", EnumShape("big", 70000), 4, 4},
		{"flags", FlagsShape("rights", 0x1ffff), 4, 4},
		{"byte int", IntShape("bool", 0, 1), 1, 1},
		{"signed int", IntShape("offset", -100, 100), 8, 8},
		{"struct", StructShape("stat", 24, 8), 24, 8},
		{"handle", HandleShape("fd", 0), 4, 4},
		{"string pair", StringShape(), 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, align := tt.shape.Layout()
			if size != tt.size || align != tt.align {
				t.Errorf("Layout() = (%d, %d), want (%d, %d)", size, align, tt.size, tt.align)
			}
		})
	}
}

func TestShape_Check(t *testing.T) {
	enum := EnumShape("errno", 76)
	if _, err := enum.Check(76); err != nil {
		t.Errorf("in-range discriminant rejected: %v", err)
	}
	if _, err := enum.Check(77); !errors.Is(err, &hserrors.Error{Phase: hserrors.PhaseMarshal, Kind: hserrors.KindInvalidEnum}) {
		t.Errorf("out-of-range discriminant: got %v, want invalid_enum", err)
	}

	flags := FlagsShape("oflags", 0b1011)
	if _, err := flags.Check(0b1011); err != nil {
		t.Errorf("valid flag bits rejected: %v", err)
	}
	if _, err := flags.Check(0b0100); !errors.Is(err, &hserrors.Error{Phase: hserrors.PhaseMarshal, Kind: hserrors.KindInvalidFlags}) {
		t.Errorf("invalid flag bits: got %v, want invalid_flags", err)
	}

	bounded := IntShape("fdcount", 0, 1024)
	if _, err := bounded.Check(1024); err != nil {
		t.Errorf("in-range int rejected: %v", err)
	}
	if _, err := bounded.Check(1025); !errors.Is(err, &hserrors.Error{Phase: hserrors.PhaseMarshal, Kind: hserrors.KindOverflow}) {
		t.Errorf("out-of-range int: got %v, want overflow", err)
	}

	// Scalars have no word-level check.
	if _, err := ScalarShape(KindU64).Check(^uint64(0)); err != nil {
		t.Errorf("scalar Check should pass through: %v", err)
	}
}

func TestShape_String(t *testing.T) {
	tests := []struct {
		shape *Shape
		want  string
	}{
		{ScalarShape(KindU32), "u32"},
		{EnumShape("errno", 76), "errno"},
		{EnumShape("", 3), "enum"},
		{ArrayShape(ScalarShape(KindU8)), "array<u8>"},
		{PointerShape(StructShape("iovec", 8, 4)), "ptr<iovec>"},
		{ConstPointerShape(ScalarShape(KindU8)), "const-ptr<u8>"},
	}
	for _, tt := range tests {
		if got := tt.shape.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
