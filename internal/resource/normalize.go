package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const dateLayout = "2006-01-02"

var (
	validate   = validator.New()
	whitespace = regexp.MustCompile(`\s+`)
)

// errEmpty marks input that is present but carries no value.
var errEmpty = errors.New("empty value")

// normalizeValue converts raw JSON input into the stored form of f. Applying it to
// its own output returns the same value.
func normalizeValue(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, errEmpty
	}
	switch f.Kind {
	case KindNumber:
		return normalizeNumber(f, raw)
	case KindBool:
		return normalizeBool(f, raw)
	}

	s, err := stringOf(f, raw)
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errEmpty
	}

	switch f.Kind {
	case KindEmail:
		s = strings.ToLower(s)
		if err := validate.Var(s, "email"); err != nil {
			return nil, fmt.Errorf("%s must be a valid email address", f.Label)
		}
		return s, nil
	case KindEnum:
		s = strings.ToLower(s)
		for _, allowed := range f.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%s must be one of %s", f.Label, strings.Join(f.Enum, ", "))
	case KindDate:
		return normalizeDate(f, s)
	case KindRef:
		return s, nil
	}
	return applyCase(f.Case, s), nil
}

func applyCase(c Case, s string) string {
	switch c {
	case CaseUpper:
		return strings.ToUpper(s)
	case CaseLower:
		return strings.ToLower(s)
	case CaseTitle:
		// Casers keep state, so each call gets its own.
		return cases.Title(language.English).String(whitespace.ReplaceAllString(s, " "))
	default:
		return s
	}
}

func stringOf(f Field, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		if f.Kind == KindString {
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return "", fmt.Errorf("%s must be a string", f.Label)
}

func normalizeNumber(f Field, raw any) (any, error) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", f.Label)
		}
		n = parsed
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, errEmpty
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", f.Label)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("%s must be a number", f.Label)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("%s must be a finite number", f.Label)
	}
	if f.Range != nil && (n < f.Range.Min || n > f.Range.Max) {
		return nil, fmt.Errorf("%s must be between %s and %s", f.Label, formatNumber(f.Range.Min), formatNumber(f.Range.Max))
	}
	return n, nil
}

func normalizeBool(f Field, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", f.Label)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%s must be true or false", f.Label)
}

func normalizeDate(f Field, s string) (any, error) {
	for _, layout := range []string{dateLayout, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}
	return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD form", f.Label)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
