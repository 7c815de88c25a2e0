/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package graph

import (
	"math"
	"strconv"
	"strings"
)

// LiteralValue is the statically known value of an expression: a string,
// float64, bool, Null, Undefined, BigInt, or one of the unknown markers.
type LiteralValue any

type unknownLiteral uint8

const (
	unknownAny unknownLiteral = iota
	unknownTruthy
	unknownFalsy
)

type nullLiteral struct{}
type undefinedLiteral struct{}

// BigInt is a bigint literal kept in source form.
type BigInt string

var (
	// Unknown means nothing is known about the value.
	Unknown LiteralValue = unknownAny
	// UnknownTruthy is an unknown value that is known to be truthy.
	UnknownTruthy LiteralValue = unknownTruthy
	// UnknownFalsy is an unknown value that is known to be falsy.
	UnknownFalsy LiteralValue = unknownFalsy
	Null         LiteralValue = nullLiteral{}
	Undefined    LiteralValue = undefinedLiteral{}
)

// MaxPathDepth bounds how deep literal and effect queries follow a path.
const MaxPathDepth = 7

// IsUnknown reports whether v is one of the unknown markers.
func IsUnknown(v LiteralValue) bool {
	_, ok := v.(unknownLiteral)
	return ok
}

// Truthiness returns the boolean coercion of v and whether it is known.
func Truthiness(v LiteralValue) (truthy bool, known bool) {
	switch v := v.(type) {
	case unknownLiteral:
		switch v {
		case unknownTruthy:
			return true, true
		case unknownFalsy:
			return false, true
		}
		return false, false
	case bool:
		return v, true
	case string:
		return v != "", true
	case float64:
		return v != 0 && !math.IsNaN(v), true
	case BigInt:
		return strings.TrimLeft(strings.TrimSuffix(string(v), "n"), "0") != "", true
	case nullLiteral, undefinedLiteral:
		return false, true
	}
	return false, false
}

// isNullish reports whether v is null or undefined, and whether that is known.
func isNullish(v LiteralValue) (nullish bool, known bool) {
	switch v.(type) {
	case nullLiteral, undefinedLiteral:
		return true, true
	case unknownLiteral:
		if v == UnknownTruthy {
			return false, true
		}
		return false, false
	}
	return false, true
}

func typeOf(v LiteralValue) (string, bool) {
	switch v.(type) {
	case string:
		return "string", true
	case float64:
		return "number", true
	case bool:
		return "boolean", true
	case BigInt:
		return "bigint", true
	case undefinedLiteral:
		return "undefined", true
	case nullLiteral:
		return "object", true
	}
	return "", false
}

func toNumber(v LiteralValue) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case nullLiteral:
		return 0, true
	case undefinedLiteral:
		return math.NaN(), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, true
		}
		return math.NaN(), true
	}
	return 0, false
}

func toJSString(v LiteralValue) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return formatNumber(v), true
	case bool:
		return strconv.FormatBool(v), true
	case nullLiteral:
		return "null", true
	case undefinedLiteral:
		return "undefined", true
	case BigInt:
		return strings.TrimSuffix(string(v), "n"), true
	}
	return "", false
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(f))))
}

// evalUnary folds a unary operator over a known operand.
func evalUnary(op string, v LiteralValue) LiteralValue {
	if op == "void" {
		return Undefined
	}
	if op == "!" {
		if truthy, known := Truthiness(v); known {
			return !truthy
		}
		return Unknown
	}
	if IsUnknown(v) {
		return Unknown
	}
	switch op {
	case "typeof":
		if t, ok := typeOf(v); ok {
			return t
		}
	case "-":
		if n, ok := toNumber(v); ok {
			return -n
		}
	case "+":
		if n, ok := toNumber(v); ok {
			return n
		}
	case "~":
		if n, ok := toNumber(v); ok {
			return float64(^toInt32(n))
		}
	}
	return Unknown
}

// evalBinary folds a binary operator over two known operands.
func evalBinary(op string, left, right LiteralValue) LiteralValue {
	if IsUnknown(left) || IsUnknown(right) {
		return Unknown
	}
	if _, ok := left.(BigInt); ok {
		return Unknown
	}
	if _, ok := right.(BigInt); ok {
		return Unknown
	}
	switch op {
	case "===":
		return strictEquals(left, right)
	case "!==":
		return !strictEquals(left, right)
	case "==":
		if eq, ok := looseEquals(left, right); ok {
			return eq
		}
		return Unknown
	case "!=":
		if eq, ok := looseEquals(left, right); ok {
			return !eq
		}
		return Unknown
	case "+":
		ls, lIsString := left.(string)
		rs, rIsString := right.(string)
		if lIsString || rIsString {
			if !lIsString {
				ls, _ = toJSString(left)
			}
			if !rIsString {
				rs, _ = toJSString(right)
			}
			return ls + rs
		}
	}
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return Unknown
	}
	switch op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		return l / r
	case "%":
		return math.Mod(l, r)
	case "**":
		return math.Pow(l, r)
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "&":
		return float64(toInt32(l) & toInt32(r))
	case "|":
		return float64(toInt32(l) | toInt32(r))
	case "^":
		return float64(toInt32(l) ^ toInt32(r))
	case "<<":
		return float64(toInt32(l) << (uint32(toInt32(r)) & 31))
	case ">>":
		return float64(toInt32(l) >> (uint32(toInt32(r)) & 31))
	case ">>>":
		return float64(uint32(toInt32(l)) >> (uint32(toInt32(r)) & 31))
	}
	return Unknown
}

func strictEquals(left, right LiteralValue) bool {
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		return ok && l == r
	}
	return left == right
}

func looseEquals(left, right LiteralValue) (bool, bool) {
	lNullish, _ := isNullish(left)
	rNullish, _ := isNullish(right)
	if lNullish || rNullish {
		return lNullish && rNullish, true
	}
	if _, ok := left.(string); ok {
		if _, ok := right.(string); ok {
			return left == right, true
		}
	}
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return false, false
	}
	return l == r, true
}
