package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// Validation error codes reported in dry runs.
const (
	CodeRequired          = "REQUIRED_FIELD"
	CodeOutOfRange        = "OUT_OF_RANGE"
	CodeInvalidFormat     = "INVALID_FORMAT"
	CodeParseError        = "PARSE_ERROR"
	CodeDuplicateKey      = "DUPLICATE_KEY"
	CodeDanglingReference = "DANGLING_REFERENCE"
	CodeTotalWeight       = "TOTAL_WEIGHT_EXCEEDED"
	CodeNameConflict      = "NAME_CONFLICT"
)

// MaxTotalWeight caps the sum of task weights in one entity.
const MaxTotalWeight = 100.0

var validate = validator.New()

// parseErrors converts reader problems on a row into validation errors.
func parseErrors(errs []core.ParseError) []core.ValidationError {
	out := make([]core.ValidationError, 0, len(errs))
	for _, pe := range errs {
		out = append(out, core.ValidationError{
			Sheet:   pe.Sheet,
			Row:     pe.Row,
			Column:  pe.Column,
			Value:   pe.Value,
			Message: pe.Message,
			Code:    CodeParseError,
		})
	}
	return out
}

// checkRow applies required and rule-tag checks to one row. Columns that
// failed to parse are skipped, their parse error already covers them.
func checkRow(def core.KindDefinition, row core.ParsedRow) []core.ValidationError {
	unreadable := make(map[string]bool, len(row.ParseErrors))
	for _, pe := range row.ParseErrors {
		unreadable[pe.Column] = true
	}

	var errs []core.ValidationError
	for _, col := range def.DataColumns() {
		if unreadable[col.Header] {
			continue
		}
		v := row.Field(col.Key)

		if isBlank(v) {
			if col.Required {
				errs = append(errs, core.ValidationError{
					Sheet:   row.Sheet,
					Row:     row.RowNumber,
					Column:  col.Header,
					Message: fmt.Sprintf("%s is required", col.Header),
					Code:    CodeRequired,
				})
			}
			continue
		}
		if col.Rules == "" {
			continue
		}

		for _, msg := range applyRules(col, v) {
			code := CodeInvalidFormat
			if v.Type() == core.ValueNumber {
				code = CodeOutOfRange
			}
			errs = append(errs, core.ValidationError{
				Sheet:   row.Sheet,
				Row:     row.RowNumber,
				Column:  col.Header,
				Value:   msg.value,
				Message: msg.text,
				Code:    code,
			})
		}
	}
	return errs
}

type ruleFailure struct {
	value string
	text  string
}

// applyRules runs the column's validator tag against the typed value.
func applyRules(col core.ColumnSpec, v core.Value) []ruleFailure {
	var field any
	switch {
	case v.Type() == core.ValueNumber:
		field = v.Num()
	case col.Type == core.FieldList:
		field = v.Items()
	default:
		field = v.Text()
	}

	err := validate.Var(field, col.Rules)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ruleFailure{{value: v.Text(), text: err.Error()}}
	}
	out := make([]ruleFailure, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ruleFailure{
			value: fmt.Sprint(fe.Value()),
			text:  ruleMessage(col, fe),
		})
	}
	return out
}

func ruleMessage(col core.ColumnSpec, fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", col.Header, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", col.Header, fe.Param())
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color such as #1f77b4", col.Header)
	case "url":
		return fmt.Sprintf("%s must contain valid URLs, %q is not one", col.Header, fe.Value())
	default:
		return fmt.Sprintf("%s fails rule %q", col.Header, fe.Tag())
	}
}

func isBlank(v core.Value) bool {
	return v.Equal(core.Null())
}

// naturalKey builds the duplicate-detection key of a row. Rows with an
// empty key are not compared.
func naturalKey(def core.KindDefinition, row core.ParsedRow) string {
	parts := make([]string, 0, len(def.NaturalKey))
	empty := true
	for _, key := range def.NaturalKey {
		k := nameKey(row.Field(key).Text())
		if k != "" {
			empty = false
		}
		parts = append(parts, k)
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "\x00")
}

// checkDuplicates flags rows repeating the natural key of an earlier row.
func checkDuplicates(def core.KindDefinition, rows []core.ParsedRow) map[int][]core.ValidationError {
	out := make(map[int][]core.ValidationError)
	first := make(map[string]int, len(rows))
	for i, row := range rows {
		key := naturalKey(def, row)
		if key == "" {
			continue
		}
		if prev, dup := first[key]; dup {
			out[i] = append(out[i], core.ValidationError{
				Sheet:   row.Sheet,
				Row:     row.RowNumber,
				Column:  keyHeader(def),
				Value:   row.Field(def.NaturalKey[len(def.NaturalKey)-1]).Text(),
				Message: fmt.Sprintf("duplicate %s, first used on row %d", strings.ToLower(keyHeader(def)), rows[prev].RowNumber),
				Code:    CodeDuplicateKey,
			})
			continue
		}
		first[key] = i
	}
	return out
}

func keyHeader(def core.KindDefinition) string {
	col, _ := def.Column(def.NaturalKey[len(def.NaturalKey)-1])
	return col.Header
}

// checkTotalWeight flags a document whose task weights sum past MaxTotalWeight.
func checkTotalWeight(rows []core.ParsedRow) *core.ValidationError {
	total := 0.0
	for _, row := range rows {
		if w := row.Field("weight"); w.Type() == core.ValueNumber {
			total += w.Num()
		}
	}
	if total <= MaxTotalWeight+1e-9 {
		return nil
	}
	def := core.MustGet(core.KindTask)
	return &core.ValidationError{
		Sheet:   def.Sheet,
		Row:     0,
		Column:  "Weight",
		Value:   core.Number(total).Text(),
		Message: fmt.Sprintf("task weights add up to %s, the limit is %s", core.Number(total).Text(), core.Number(MaxTotalWeight).Text()),
		Code:    CodeTotalWeight,
	}
}
