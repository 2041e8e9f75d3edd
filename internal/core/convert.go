package core

// convert.go provides the typed cell value and the coercion of raw spreadsheet
// text into it.
//
// Spreadsheet cells are messy in the same ways CSV cells are:
//   - Multiple date formats (US, EU, ISO, Excel serial numbers)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Coerce never guesses across types: a cell that does not parse as its
// declared type yields an error, which the reader records as a ParseError.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ValueType tags the variant held by a Value.
type ValueType string

const (
	ValueNull   ValueType = "null"
	ValueString ValueType = "string"
	ValueNumber ValueType = "number"
	ValueBool   ValueType = "boolean"
	ValueDate   ValueType = "date"
	ValueJSON   ValueType = "json"
)

// DateLayout is the canonical date format for dates written to documents.
const DateLayout = "2006-01-02"

// Value is a typed cell value.
type Value struct {
	typ  ValueType
	str  string
	num  float64
	b    bool
	date time.Time
	raw  json.RawMessage
}

// Null returns the empty value.
func Null() Value { return Value{typ: ValueNull} }

// String returns a text value.
func String(s string) Value { return Value{typ: ValueString, str: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{typ: ValueNumber, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{typ: ValueBool, b: b} }

// Date returns a date value truncated to the day.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{typ: ValueDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// JSON returns a JSON value. The document is compacted; invalid JSON yields Null.
func JSON(raw []byte) Value {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Null()
	}
	return Value{typ: ValueJSON, raw: json.RawMessage(buf.Bytes())}
}

// List returns a list value, stored as a JSON array of strings.
func List(items []string) Value {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return Value{typ: ValueJSON, raw: raw}
}

// Type returns the variant tag.
func (v Value) Type() ValueType {
	if v.typ == "" {
		return ValueNull
	}
	return v.typ
}

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool { return v.Type() == ValueNull }

// Str returns the text of a string value.
func (v Value) Str() string { return v.str }

// Num returns the number of a numeric value.
func (v Value) Num() float64 { return v.num }

// Boolean returns the flag of a boolean value.
func (v Value) Boolean() bool { return v.b }

// Time returns the date of a date value.
func (v Value) Time() time.Time { return v.date }

// Raw returns the document of a JSON value.
func (v Value) Raw() json.RawMessage { return v.raw }

// Items returns the elements of a list value. Non-list values yield nil.
func (v Value) Items() []string {
	if v.Type() != ValueJSON {
		return nil
	}
	var items []string
	if err := json.Unmarshal(v.raw, &items); err != nil {
		return nil
	}
	return items
}

// Text returns the plain text form of the value, as written to a cell.
func (v Value) Text() string {
	switch v.Type() {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case ValueDate:
		return v.date.Format(DateLayout)
	case ValueJSON:
		return string(v.raw)
	default:
		return ""
	}
}

// blank reports whether the value carries no data. Whitespace-only text and
// empty lists count as blank so that they compare equal to Null.
func (v Value) blank() bool {
	switch v.Type() {
	case ValueNull:
		return true
	case ValueString:
		return strings.TrimSpace(v.str) == ""
	case ValueJSON:
		s := string(v.raw)
		return s == "[]" || s == "null" || s == ""
	default:
		return false
	}
}

// Equal compares two values the way a reviewer reading the sheet would:
// blank values are equal to each other, text is trimmed, numbers compare
// numerically and JSON compares structurally with primitive arrays treated
// as unordered sets.
func (v Value) Equal(o Value) bool {
	if v.blank() || o.blank() {
		return v.blank() && o.blank()
	}
	if v.Type() != o.Type() {
		return strings.TrimSpace(v.Text()) == strings.TrimSpace(o.Text())
	}

	switch v.Type() {
	case ValueString:
		return strings.TrimSpace(v.str) == strings.TrimSpace(o.str)
	case ValueNumber:
		return math.Abs(v.num-o.num) < 1e-9
	case ValueBool:
		return v.b == o.b
	case ValueDate:
		return v.date.Equal(o.date)
	case ValueJSON:
		var a, b any
		if json.Unmarshal(v.raw, &a) != nil || json.Unmarshal(o.raw, &b) != nil {
			return bytes.Equal(v.raw, o.raw)
		}
		return jsonEqual(a, b)
	}
	return false
}

// jsonEqual compares decoded JSON documents.
func jsonEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !jsonEqual(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		if primitiveArray(av) && primitiveArray(bv) {
			return sortedKey(av) == sortedKey(bv)
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func primitiveArray(items []any) bool {
	for _, it := range items {
		switch it.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func sortedKey(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x00")
}

// Display formats a value for change previews.
func (v Value) Display() string {
	if v.blank() {
		if v.Type() == ValueJSON {
			return "(none)"
		}
		return "(empty)"
	}
	switch v.Type() {
	case ValueString:
		if r := []rune(v.str); len(r) > 50 {
			return strconv.Quote(string(r[:47]) + "...")
		}
		return strconv.Quote(v.str)
	case ValueBool:
		if v.b {
			return "Yes"
		}
		return "No"
	case ValueJSON:
		if items := v.Items(); items != nil {
			if len(items) <= 3 {
				return strings.Join(items, ", ")
			}
			return fmt.Sprintf("%s (+%d more)", strings.Join(items[:3], ", "), len(items)-3)
		}
		return string(v.raw)
	default:
		return v.Text()
	}
}

// wireValue is the JSON envelope of a Value. The type tag keeps dates and
// JSON documents distinguishable after a round trip through a cache.
type wireValue struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"type": ..., "value": ...}; Null encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	var inner any
	switch v.Type() {
	case ValueNull:
		return []byte("null"), nil
	case ValueString:
		inner = v.str
	case ValueNumber:
		inner = v.num
	case ValueBool:
		inner = v.b
	case ValueDate:
		inner = v.date.Format(DateLayout)
	case ValueJSON:
		inner = v.raw
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Type(), Value: raw})
}

// UnmarshalJSON decodes the envelope written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Null()
		return nil
	}
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case ValueString:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return err
		}
		*v = String(s)
	case ValueNumber:
		var n float64
		if err := json.Unmarshal(w.Value, &n); err != nil {
			return err
		}
		*v = Number(n)
	case ValueBool:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case ValueDate:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return err
		}
		*v = Date(t)
	case ValueJSON:
		*v = JSON(w.Value)
	case ValueNull, "":
		*v = Null()
	default:
		return fmt.Errorf("unknown value type: %q", w.Type)
	}
	return nil
}

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
	}
)

// excelEpoch is day zero of the 1900 date system as used by spreadsheet serials.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Coerce converts raw cell text to the column's declared type.
// Empty cells yield Null. Text that does not parse yields an error.
func Coerce(col ColumnSpec, raw string) (Value, error) {
	s := CleanCell(raw)
	if s == "" {
		return Null(), nil
	}

	switch col.Type {
	case FieldText:
		return String(s), nil
	case FieldEnum:
		for _, allowed := range col.EnumValues {
			if strings.EqualFold(allowed, s) {
				return String(allowed), nil
			}
		}
		return Null(), fmt.Errorf("invalid enum value %q (allowed: %s)", s, strings.Join(col.EnumValues, ", "))
	case FieldNumeric:
		n, ok := ParseNumber(s)
		if !ok {
			return Null(), fmt.Errorf("invalid number %q", s)
		}
		return Number(n), nil
	case FieldBool:
		b, ok := ParseBool(s)
		if !ok {
			return Null(), fmt.Errorf("invalid boolean %q", s)
		}
		return Bool(b), nil
	case FieldDate:
		t, ok := ParseDate(s)
		if !ok {
			return Null(), fmt.Errorf("invalid date %q", s)
		}
		return Date(t), nil
	case FieldJSON:
		if !json.Valid([]byte(s)) {
			return Null(), fmt.Errorf("invalid json in %s", col.Header)
		}
		return JSON([]byte(s)), nil
	case FieldList:
		return List(SplitList(s, col.Separator)), nil
	default:
		return Null(), fmt.Errorf("unsupported field type %d", col.Type)
	}
}

// ParseNumber parses a number, tolerating currency symbols, thousands
// separators and accounting format (parentheses for negative).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\u20ac", "") // Euro
	s = strings.ReplaceAll(s, "\u00a3", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseBool accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// ParseDate supports ISO dates, common US/EU layouts, 2-digit years with a
// pivot, and spreadsheet serial numbers.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	currentYear := time.Now().Year()
	pivotYear := currentYear + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	// Serial numbers: whole days since the 1900 epoch, optional time fraction.
	if numericRegex.MatchString(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
			return excelEpoch.AddDate(0, 0, int(serial)), true
		}
	}

	return time.Time{}, false
}

// SplitList splits a list cell on sep and on newlines, trimming items and
// dropping empty ones.
func SplitList(s, sep string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		if r == '\n' || r == '\r' {
			return true
		}
		return sep != "" && sep != "\n" && strings.ContainsRune(sep, r)
	})
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			items = append(items, f)
		}
	}
	return items
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes a leading byte order mark
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
