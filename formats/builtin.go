package formats

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
)

func builtins() map[key]Validator {
	always := Func(func(any) bool { return true })
	return map[key]Validator{
		// password is a UI hint, never a constraint
		{"string", "password"}: Func(func(v any) bool {
			_, ok := v.(string)
			return ok
		}),
		{"string", "binary"}: always,
		{"string", "byte"}:   Func(isBase64),
		{"integer", "int32"}: Func(inRange(math.MinInt32, math.MaxInt32)),
		{"integer", "int64"}: Func(isInt64),
		{"number", "float"}:  Func(isFinite),
		{"number", "double"}: Func(isFinite),
	}
}

func isBase64(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

func inRange(lo, hi float64) func(any) bool {
	return func(v any) bool {
		f, ok := toFloat(v)
		if !ok {
			return true
		}
		return f >= lo && f <= hi
	}
}

func isInt64(v any) bool {
	if n, ok := v.(json.Number); ok {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return true
		}
	}
	return inRange(math.MinInt64, math.MaxInt64)(v)
}

func isFinite(v any) bool {
	f, ok := toFloat(v)
	if !ok {
		return true
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
