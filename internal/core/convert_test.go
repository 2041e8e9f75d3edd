package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Coerce Tests
// ----------------------------------------------------------------------------

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		col      ColumnSpec
		input    string
		wantType ValueType
		wantText string
		wantErr  bool
	}{
		{name: "empty text is null", col: ColumnSpec{Type: FieldText}, input: "   ", wantType: ValueNull},
		{name: "text trimmed", col: ColumnSpec{Type: FieldText}, input: "  Alpha ", wantType: ValueString, wantText: "Alpha"},
		{name: "formula prefix removed", col: ColumnSpec{Type: FieldText}, input: `="00123"`, wantType: ValueString, wantText: "00123"},
		{name: "integer", col: ColumnSpec{Type: FieldNumeric}, input: "42", wantType: ValueNumber, wantText: "42"},
		{name: "currency number", col: ColumnSpec{Type: FieldNumeric}, input: "$1,234.50", wantType: ValueNumber, wantText: "1234.5"},
		{name: "accounting negative", col: ColumnSpec{Type: FieldNumeric}, input: "(12)", wantType: ValueNumber, wantText: "-12"},
		{name: "percent suffix", col: ColumnSpec{Type: FieldNumeric}, input: "25%", wantType: ValueNumber, wantText: "25"},
		{name: "bad number", col: ColumnSpec{Type: FieldNumeric}, input: "twelve", wantErr: true},
		{name: "bool yes", col: ColumnSpec{Type: FieldBool}, input: "Yes", wantType: ValueBool, wantText: "TRUE"},
		{name: "bool zero", col: ColumnSpec{Type: FieldBool}, input: "0", wantType: ValueBool, wantText: "FALSE"},
		{name: "bad bool", col: ColumnSpec{Type: FieldBool}, input: "maybe", wantErr: true},
		{name: "iso date", col: ColumnSpec{Type: FieldDate}, input: "2024-03-15", wantType: ValueDate, wantText: "2024-03-15"},
		{name: "us date", col: ColumnSpec{Type: FieldDate}, input: "3/15/2024", wantType: ValueDate, wantText: "2024-03-15"},
		{name: "serial date", col: ColumnSpec{Type: FieldDate}, input: "45366", wantType: ValueDate, wantText: "2024-03-15"},
		{name: "bad date", col: ColumnSpec{Type: FieldDate}, input: "someday", wantErr: true},
		{name: "enum case folded", col: ColumnSpec{Type: FieldEnum, EnumValues: []string{"string", "number"}}, input: "NUMBER", wantType: ValueString, wantText: "number"},
		{name: "bad enum", col: ColumnSpec{Type: FieldEnum, EnumValues: []string{"string"}}, input: "blob", wantErr: true},
		{name: "json compacted", col: ColumnSpec{Type: FieldJSON, Header: "Resources"}, input: `{ "a" : 1 }`, wantType: ValueJSON, wantText: `{"a":1}`},
		{name: "bad json", col: ColumnSpec{Type: FieldJSON, Header: "Resources"}, input: `{a:1}`, wantErr: true},
		{name: "list split", col: ColumnSpec{Type: FieldList, Separator: ","}, input: "a, b,,c", wantType: ValueJSON, wantText: `["a","b","c"]`},
		{name: "list newlines", col: ColumnSpec{Type: FieldList, Separator: "\n"}, input: "x\r\ny\n", wantType: ValueJSON, wantText: `["x","y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.col, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Coerce(%q) = %v, want error", tt.input, got.Text())
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce(%q) error: %v", tt.input, err)
			}
			if got.Type() != tt.wantType {
				t.Errorf("Coerce(%q) type = %s, want %s", tt.input, got.Type(), tt.wantType)
			}
			if got.Text() != tt.wantText {
				t.Errorf("Coerce(%q) text = %q, want %q", tt.input, got.Text(), tt.wantText)
			}
		})
	}
}

func TestParseDate_TwoDigitYear(t *testing.T) {
	got, ok := ParseDate("1/2/24")
	if !ok {
		t.Fatal("ParseDate(1/2/24) failed")
	}
	if got.Year() != 2024 {
		t.Errorf("year = %d, want 2024", got.Year())
	}

	old, ok := ParseDate("1/2/99")
	if !ok {
		t.Fatal("ParseDate(1/2/99) failed")
	}
	if old.Year() != 1999 {
		t.Errorf("year = %d, want 1999", old.Year())
	}
}

// ----------------------------------------------------------------------------
// Value Equality Tests
// ----------------------------------------------------------------------------

func TestValueEqual(t *testing.T) {
	day := time.Date(2024, 1, 31, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{name: "null equals null", a: Null(), b: Null(), want: true},
		{name: "blank text equals null", a: String("  "), b: Null(), want: true},
		{name: "empty list equals null", a: List(nil), b: Null(), want: true},
		{name: "text trimmed", a: String("Alpha "), b: String("Alpha"), want: true},
		{name: "text differs", a: String("Alpha"), b: String("alpha"), want: false},
		{name: "text vs null", a: String("x"), b: Null(), want: false},
		{name: "numbers numeric", a: Number(10), b: Number(10.0), want: true},
		{name: "number vs numeric text", a: Number(10), b: String("10"), want: true},
		{name: "numbers differ", a: Number(10), b: Number(11), want: false},
		{name: "zero is not null", a: Number(0), b: Null(), want: false},
		{name: "dates ignore time of day", a: Date(day), b: Date(day.Add(-10 * time.Hour)), want: true},
		{name: "bools", a: Bool(true), b: Bool(false), want: false},
		{name: "lists unordered", a: List([]string{"a", "b"}), b: List([]string{"b", "a"}), want: true},
		{name: "lists differ", a: List([]string{"a"}), b: List([]string{"a", "b"}), want: false},
		{name: "json key order", a: JSON([]byte(`{"a":1,"b":[1,2]}`)), b: JSON([]byte(`{"b":[2,1],"a":1}`)), want: true},
		{name: "json object arrays ordered", a: JSON([]byte(`[{"a":1},{"a":2}]`)), b: JSON([]byte(`[{"a":2},{"a":1}]`)), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueDisplay(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz"
	accented := strings.Repeat("é", 60)

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{name: "null", v: Null(), want: "(empty)"},
		{name: "empty list", v: List(nil), want: "(none)"},
		{name: "quoted text", v: String("Alpha"), want: `"Alpha"`},
		{name: "truncated text", v: String(long), want: `"` + long[:47] + `..."`},
		{name: "truncated multibyte text", v: String(accented), want: `"` + strings.Repeat("é", 47) + `..."`},
		{name: "multibyte text at limit", v: String(accented[:100]), want: `"` + accented[:100] + `"`},
		{name: "bool", v: Bool(true), want: "Yes"},
		{name: "number", v: Number(2.5), want: "2.5"},
		{name: "short list", v: List([]string{"a", "b"}), want: "a, b"},
		{name: "long list", v: List([]string{"a", "b", "c", "d", "e"}), want: "a, b, c (+2 more)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueJSONEnvelope(t *testing.T) {
	in := map[string]Value{
		"name":   String("Alpha"),
		"weight": Number(12.5),
		"flag":   Bool(true),
		"date":   Date(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		"doc":    JSON([]byte(`{"k":"v"}`)),
		"none":   Null(),
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out map[string]Value
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for k, v := range in {
		got := out[k]
		if got.Type() != v.Type() {
			t.Errorf("%s: type = %s, want %s", k, got.Type(), v.Type())
		}
		if !got.Equal(v) {
			t.Errorf("%s: value = %q, want %q", k, got.Text(), v.Text())
		}
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "  hello  ", want: "hello"},
		{input: "\ufeffName", want: "Name"},
		{input: `="007"`, want: "007"},
		{input: `= "x"`, want: `= "x"`},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
