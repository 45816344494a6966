package formats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rule is a parsed rule expression: a name and its literal arguments.
type Rule struct {
	Name string
	Args []any
}

var errUnknownRule = errors.New("unknown rule")

// ParseRule parses expressions like "between(10, 20)",
// "country-code" or "startsWith('ab')". Kebab-case names are converted to
// camel case. Arguments are bools, ints, floats, or strings with their
// surrounding quotes removed.
func ParseRule(expr string) (Rule, error) {
	expr = strings.TrimSpace(expr)
	name, rest, hasArgs := strings.Cut(expr, "(")
	if name = camel(strings.TrimSpace(name)); name == "" {
		return Rule{}, fmt.Errorf("empty rule name in %q", expr)
	}
	r := Rule{Name: name}
	if !hasArgs {
		return r, nil
	}
	body, ok := strings.CutSuffix(strings.TrimSpace(rest), ")")
	if !ok {
		return Rule{}, fmt.Errorf("unterminated argument list in %q", expr)
	}
	if strings.TrimSpace(body) == "" {
		return r, nil
	}
	for _, raw := range strings.Split(body, ",") {
		r.Args = append(r.Args, parseArg(strings.TrimSpace(raw)))
	}
	return r, nil
}

func parseArg(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return strings.Trim(s, `'"`)
}

func camel(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}

// ruleTags maps rule names to validator tag builders. Names not listed
// here are tried verbatim as validator tags.
var ruleTags = map[string]func(args []any) string{
	"phone":        fixed("e164"),
	"countryCode":  fixed("iso3166_1_alpha2"),
	"currencyCode": fixed("iso4217"),
	"alnum":        fixed("alphanum"),
	"digit":        fixed("numeric"),
	"macAddress":   fixed("mac"),
	"hexRgbColor":  fixed("hexcolor"),
	"between": func(args []any) string {
		return fmt.Sprintf("gte=%v,lte=%v", arg(args, 0), arg(args, 1))
	},
	"length": func(args []any) string {
		return fmt.Sprintf("min=%v,max=%v", arg(args, 0), arg(args, 1))
	},
	"min":        param("gte"),
	"max":        param("lte"),
	"startsWith": param("startswith"),
	"endsWith":   param("endswith"),
	"contains":   param("contains"),
	"in": func(args []any) string {
		words := make([]string, len(args))
		for i, a := range args {
			words[i] = fmt.Sprint(a)
		}
		return "oneof=" + strings.Join(words, " ")
	},
}

func fixed(tag string) func([]any) string {
	return func([]any) string { return tag }
}

func param(tag string) func([]any) string {
	return func(args []any) string { return fmt.Sprintf("%s=%v", tag, arg(args, 0)) }
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// Tag translates a rule into a validator tag.
func (r Rule) Tag() string {
	if build, ok := ruleTags[r.Name]; ok {
		return build(r.Args)
	}
	if len(r.Args) == 0 {
		return strings.ToLower(r.Name)
	}
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.ToLower(r.Name) + "=" + strings.Join(parts, " ")
}

// synthesize builds a validator for a rule expression, rejecting tags the
// validator does not know.
func (r *Registry) synthesize(expr string) (Validator, error) {
	rule, err := ParseRule(expr)
	if err != nil {
		return nil, err
	}
	tag := rule.Tag()
	if !r.knowsTag(tag) {
		return nil, fmt.Errorf("%w %q", errUnknownRule, rule.Name)
	}
	return Func(func(value any) (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		if f, isNum := toFloat(value); isNum {
			value = f
		}
		return r.rules.Var(value, tag) == nil
	}), nil
}

// knowsTag reports whether tag parses; the validator panics on undefined
// tags.
func (r *Registry) knowsTag(tag string) (known bool) {
	defer func() {
		if recover() != nil {
			known = false
		}
	}()
	_ = r.rules.Var("", "omitempty,"+tag)
	return true
}
