// Package normalize converts raw extracted values into canonical typed
// values. Extraction output is noisy: currency arrives in Brazilian
// formatting, booleans as natural-language tokens, numbers in either
// decimal convention. Normalization is pure; an unparseable value yields an
// Error, never a silent default.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lexflow/internal/catalog"
)

// Kind is the canonical representation family of a normalized value.
type Kind string

const (
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindText   Kind = "text"
	KindDate   Kind = "date"
	KindList   Kind = "list"
)

// Canonical is a normalized value. Exactly one of the payload fields is
// meaningful, selected by Kind. OptionUnknown marks a choice/list value
// outside the configured options; it is a warning, not an error, and must
// not block evaluation.
type Canonical struct {
	Kind          Kind
	Bool          bool
	Number        float64
	Text          string
	List          []string
	OptionUnknown bool
}

// IsEmpty reports whether the value is empty for its kind.
func (c Canonical) IsEmpty() bool {
	switch c.Kind {
	case KindText, KindDate:
		return strings.TrimSpace(c.Text) == ""
	case KindList:
		return len(c.List) == 0
	}
	return false
}

// Error reports a value that could not be normalized for its declared type.
type Error struct {
	Value        any
	DeclaredType catalog.VarType
	Reason       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot normalize %v as %s: %s", e.Value, e.DeclaredType, e.Reason)
}

// Value normalizes raw into the canonical form for the declared type.
// options is the configured option set for choice/list variables; it may be
// empty, in which case membership is not checked.
func Value(raw any, typ catalog.VarType, options []string) (Canonical, error) {
	switch typ {
	case catalog.TypeBoolean:
		b, err := parseBool(raw)
		if err != nil {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: err.Error()}
		}
		return Canonical{Kind: KindBool, Bool: b}, nil

	case catalog.TypeNumber:
		n, err := toNumber(raw, false)
		if err != nil {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: err.Error()}
		}
		return Canonical{Kind: KindNumber, Number: n}, nil

	case catalog.TypeCurrency:
		n, err := toNumber(raw, true)
		if err != nil {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: err.Error()}
		}
		return Canonical{Kind: KindNumber, Number: n}, nil

	case catalog.TypeDate:
		s, ok := raw.(string)
		if !ok {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: "date must be a string"}
		}
		iso, err := parseDate(s)
		if err != nil {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: err.Error()}
		}
		return Canonical{Kind: KindDate, Text: iso}, nil

	case catalog.TypeText:
		return Canonical{Kind: KindText, Text: toText(raw)}, nil

	case catalog.TypeChoice:
		text := strings.TrimSpace(toText(raw))
		c := Canonical{Kind: KindText, Text: text}
		if len(options) > 0 && !containsFold(options, text) {
			c.OptionUnknown = true
		}
		return c, nil

	case catalog.TypeList:
		items, err := toList(raw)
		if err != nil {
			return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: err.Error()}
		}
		c := Canonical{Kind: KindList, List: items}
		if len(options) > 0 {
			for _, item := range items {
				if !containsFold(options, item) {
					c.OptionUnknown = true
					break
				}
			}
		}
		return c, nil

	default:
		return Canonical{}, &Error{Value: raw, DeclaredType: typ, Reason: "unknown variable type"}
	}
}

func toText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, strings.TrimSpace(toText(item)))
		}
		return out, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value is not a list")
	}
}

func parseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "sim", "true":
			return true, nil
		case "não", "nao", "false":
			return false, nil
		}
		return false, fmt.Errorf("unrecognized boolean token %q", v)
	default:
		return false, fmt.Errorf("value is not a boolean")
	}
}

func toNumber(raw any, currency bool) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if currency {
			return parseCurrency(v)
		}
		return parseNumber(v)
	default:
		return 0, fmt.Errorf("value is not numeric")
	}
}

// parseCurrency accepts Brazilian formatting ("R$ 250.000,00") and plain
// decimals ("1500.00"). Currency symbols and thousand separators are
// stripped; a comma decimal separator maps to a dot. A string carrying more
// than one decimal marker is rejected.
func parseCurrency(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "R$", "")
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty currency value")
	}
	return parseSeparated(cleaned)
}

// parseNumber parses both "." and "," decimal conventions. A single
// trailing group of one or two digits after the last separator is treated
// as the decimal part; any earlier separators are thousand markers.
func parseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return parseSeparated(cleaned)
}

func parseSeparated(s string) (float64, error) {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign = s[:1]
		s = s[1:]
	}
	s = strings.ReplaceAll(s, " ", "")

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots == 0 && commas == 0:
		// plain integer
	case dots > 0 && commas > 0:
		// Mixed separators: the last one is decimal, the other kind must be
		// grouping. Two distinct decimal markers after the last grouping
		// separator is malformed.
		lastDot := strings.LastIndex(s, ".")
		lastComma := strings.LastIndex(s, ",")
		if lastComma > lastDot {
			if commas > 1 {
				return 0, fmt.Errorf("multiple decimal markers in %q", s)
			}
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			if dots > 1 {
				return 0, fmt.Errorf("multiple decimal markers in %q", s)
			}
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 0:
		resolved, err := resolveSingleSeparator(s, ",")
		if err != nil {
			return 0, err
		}
		s = resolved
	default:
		resolved, err := resolveSingleSeparator(s, ".")
		if err != nil {
			return 0, err
		}
		s = resolved
	}

	n, err := strconv.ParseFloat(sign+s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable numeric value %q", s)
	}
	return n, nil
}

// resolveSingleSeparator decides whether a lone separator kind is decimal
// or grouping. A single occurrence followed by one or two digits reads as a
// decimal point. Repeated occurrences must all delimit 3-digit groups to be
// grouping; anything else carries more than one decimal marker.
func resolveSingleSeparator(s, sep string) (string, error) {
	parts := strings.Split(s, sep)
	if len(parts) == 2 {
		tail := len(parts[1])
		if tail == 1 || tail == 2 {
			return strings.Replace(s, sep, ".", 1), nil
		}
		return strings.ReplaceAll(s, sep, ""), nil
	}
	for _, group := range parts[1:] {
		if len(group) != 3 {
			return "", fmt.Errorf("multiple decimal markers in %q", s)
		}
	}
	return strings.ReplaceAll(s, sep, ""), nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// parseDate canonicalizes to YYYY-MM-DD. Invalid formats are errors, never
// silently defaulted.
func parseDate(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date format %q", s)
}

// CoerceBool interprets an arbitrary rule-side value as a boolean using the
// same token rules as normalization. The second result reports success.
func CoerceBool(raw any) (bool, bool) {
	b, err := parseBool(raw)
	return b, err == nil
}

// CoerceNumber interprets an arbitrary rule-side value as a number. The
// second result reports success.
func CoerceNumber(raw any) (float64, bool) {
	n, err := toNumber(raw, false)
	return n, err == nil
}

// CoerceText renders an arbitrary rule-side value as comparable text.
func CoerceText(raw any) string {
	return strings.TrimSpace(toText(raw))
}

func containsFold(options []string, value string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), value) {
			return true
		}
	}
	return false
}
