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
	"strings"

	"bennypowers.dev/fascio/pathtrack"
)

type globalInfo struct {
	// pureCall means calling the member has no side effects.
	pureCall bool
	// pureConstruct means constructing it with new has no side effects.
	pureConstruct bool
}

const (
	obj  = iota // reading properties is safe
	pf          // pure function
	pc          // pure constructor, also pure when called
	pcnf        // pure constructor that throws when called without new
)

// knownGlobals lists host members whose access cannot throw, together with
// the call behavior the analysis may rely on. Anything missing is treated as
// unknown and possibly effectful.
var knownGlobals = []struct {
	path []string
	kind int
}{
	{[]string{"undefined"}, obj},
	{[]string{"NaN"}, obj},
	{[]string{"Infinity"}, obj},
	{[]string{"globalThis"}, obj},
	{[]string{"console"}, obj},

	{[]string{"Array"}, pc},
	{[]string{"Array", "isArray"}, pf},
	{[]string{"Array", "of"}, pf},
	{[]string{"Array", "from"}, obj},
	{[]string{"ArrayBuffer"}, pcnf},
	{[]string{"ArrayBuffer", "isView"}, pf},
	{[]string{"Boolean"}, pc},
	{[]string{"DataView"}, pcnf},
	{[]string{"Date"}, pc},
	{[]string{"Date", "now"}, pf},
	{[]string{"Date", "parse"}, pf},
	{[]string{"Date", "UTC"}, pf},
	{[]string{"Error"}, pc},
	{[]string{"EvalError"}, pc},
	{[]string{"RangeError"}, pc},
	{[]string{"ReferenceError"}, pc},
	{[]string{"SyntaxError"}, pc},
	{[]string{"TypeError"}, pc},
	{[]string{"URIError"}, pc},
	{[]string{"Function"}, obj},
	{[]string{"Map"}, pcnf},
	{[]string{"Set"}, pcnf},
	{[]string{"WeakMap"}, pcnf},
	{[]string{"WeakSet"}, pcnf},
	{[]string{"WeakRef"}, pcnf},
	{[]string{"Promise"}, obj},
	{[]string{"Promise", "resolve"}, pf},
	{[]string{"Promise", "reject"}, pf},
	{[]string{"Promise", "all"}, pf},
	{[]string{"Promise", "allSettled"}, pf},
	{[]string{"Promise", "any"}, pf},
	{[]string{"Promise", "race"}, pf},
	{[]string{"Proxy"}, obj},
	{[]string{"Reflect"}, obj},
	{[]string{"RegExp"}, pc},
	{[]string{"String"}, pc},
	{[]string{"String", "fromCharCode"}, pf},
	{[]string{"String", "fromCodePoint"}, pf},
	{[]string{"String", "raw"}, pf},
	{[]string{"Symbol"}, pf},
	{[]string{"Symbol", "for"}, pf},
	{[]string{"Symbol", "keyFor"}, pf},
	{[]string{"Symbol", "iterator"}, obj},
	{[]string{"Symbol", "asyncIterator"}, obj},
	{[]string{"Symbol", "toStringTag"}, obj},
	{[]string{"BigInt"}, pf},
	{[]string{"BigInt", "asIntN"}, pf},
	{[]string{"BigInt", "asUintN"}, pf},
	{[]string{"JSON"}, obj},
	{[]string{"JSON", "parse"}, pf},
	{[]string{"JSON", "stringify"}, pf},
	{[]string{"encodeURI"}, pf},
	{[]string{"encodeURIComponent"}, pf},
	{[]string{"decodeURI"}, pf},
	{[]string{"decodeURIComponent"}, pf},
	{[]string{"escape"}, pf},
	{[]string{"unescape"}, pf},
	{[]string{"isFinite"}, pf},
	{[]string{"isNaN"}, pf},
	{[]string{"parseFloat"}, pf},
	{[]string{"parseInt"}, pf},

	{[]string{"Number"}, pc},
	{[]string{"Number", "isFinite"}, pf},
	{[]string{"Number", "isInteger"}, pf},
	{[]string{"Number", "isNaN"}, pf},
	{[]string{"Number", "isSafeInteger"}, pf},
	{[]string{"Number", "parseFloat"}, pf},
	{[]string{"Number", "parseInt"}, pf},
	{[]string{"Number", "EPSILON"}, obj},
	{[]string{"Number", "MAX_SAFE_INTEGER"}, obj},
	{[]string{"Number", "MAX_VALUE"}, obj},
	{[]string{"Number", "MIN_SAFE_INTEGER"}, obj},
	{[]string{"Number", "MIN_VALUE"}, obj},
	{[]string{"Number", "NaN"}, obj},
	{[]string{"Number", "NEGATIVE_INFINITY"}, obj},
	{[]string{"Number", "POSITIVE_INFINITY"}, obj},

	{[]string{"Object"}, pc},
	{[]string{"Object", "create"}, pf},
	{[]string{"Object", "entries"}, pf},
	{[]string{"Object", "freeze"}, pf},
	{[]string{"Object", "fromEntries"}, pf},
	{[]string{"Object", "getOwnPropertyDescriptor"}, pf},
	{[]string{"Object", "getOwnPropertyDescriptors"}, pf},
	{[]string{"Object", "getOwnPropertyNames"}, pf},
	{[]string{"Object", "getOwnPropertySymbols"}, pf},
	{[]string{"Object", "getPrototypeOf"}, pf},
	{[]string{"Object", "is"}, pf},
	{[]string{"Object", "isExtensible"}, pf},
	{[]string{"Object", "isFrozen"}, pf},
	{[]string{"Object", "isSealed"}, pf},
	{[]string{"Object", "keys"}, pf},
	{[]string{"Object", "values"}, pf},
	{[]string{"Object", "prototype"}, obj},
	{[]string{"Object", "prototype", "hasOwnProperty"}, obj},
	{[]string{"Object", "prototype", "isPrototypeOf"}, obj},
	{[]string{"Object", "prototype", "propertyIsEnumerable"}, obj},
	{[]string{"Object", "prototype", "toString"}, obj},
	{[]string{"Object", "prototype", "valueOf"}, obj},

	{[]string{"Math"}, obj},
	{[]string{"Math", "E"}, obj},
	{[]string{"Math", "LN10"}, obj},
	{[]string{"Math", "LN2"}, obj},
	{[]string{"Math", "LOG10E"}, obj},
	{[]string{"Math", "LOG2E"}, obj},
	{[]string{"Math", "PI"}, obj},
	{[]string{"Math", "SQRT1_2"}, obj},
	{[]string{"Math", "SQRT2"}, obj},
	{[]string{"Math", "abs"}, pf},
	{[]string{"Math", "acos"}, pf},
	{[]string{"Math", "acosh"}, pf},
	{[]string{"Math", "asin"}, pf},
	{[]string{"Math", "asinh"}, pf},
	{[]string{"Math", "atan"}, pf},
	{[]string{"Math", "atan2"}, pf},
	{[]string{"Math", "atanh"}, pf},
	{[]string{"Math", "cbrt"}, pf},
	{[]string{"Math", "ceil"}, pf},
	{[]string{"Math", "clz32"}, pf},
	{[]string{"Math", "cos"}, pf},
	{[]string{"Math", "cosh"}, pf},
	{[]string{"Math", "exp"}, pf},
	{[]string{"Math", "expm1"}, pf},
	{[]string{"Math", "floor"}, pf},
	{[]string{"Math", "fround"}, pf},
	{[]string{"Math", "hypot"}, pf},
	{[]string{"Math", "imul"}, pf},
	{[]string{"Math", "log"}, pf},
	{[]string{"Math", "log10"}, pf},
	{[]string{"Math", "log1p"}, pf},
	{[]string{"Math", "log2"}, pf},
	{[]string{"Math", "max"}, pf},
	{[]string{"Math", "min"}, pf},
	{[]string{"Math", "pow"}, pf},
	{[]string{"Math", "random"}, pf},
	{[]string{"Math", "round"}, pf},
	{[]string{"Math", "sign"}, pf},
	{[]string{"Math", "sin"}, pf},
	{[]string{"Math", "sinh"}, pf},
	{[]string{"Math", "sqrt"}, pf},
	{[]string{"Math", "tan"}, pf},
	{[]string{"Math", "tanh"}, pf},
	{[]string{"Math", "trunc"}, pf},

	{[]string{"Int8Array"}, pcnf},
	{[]string{"Uint8Array"}, pcnf},
	{[]string{"Uint8ClampedArray"}, pcnf},
	{[]string{"Int16Array"}, pcnf},
	{[]string{"Uint16Array"}, pcnf},
	{[]string{"Int32Array"}, pcnf},
	{[]string{"Uint32Array"}, pcnf},
	{[]string{"Float32Array"}, pcnf},
	{[]string{"Float64Array"}, pcnf},
	{[]string{"BigInt64Array"}, pcnf},
	{[]string{"BigUint64Array"}, pcnf},
}

// globalLiterals are the globals whose value can be folded.
var globalLiterals = map[string]LiteralValue{
	"undefined": Undefined,
	"NaN":       math.NaN(),
	"Infinity":  math.Inf(1),
}

var knownGlobalTable = func() map[string]globalInfo {
	table := make(map[string]globalInfo, len(knownGlobals))
	for _, g := range knownGlobals {
		info := globalInfo{}
		switch g.kind {
		case pf:
			info.pureCall = true
		case pc:
			info.pureCall, info.pureConstruct = true, true
		case pcnf:
			info.pureConstruct = true
		}
		table[strings.Join(g.path, ".")] = info
	}
	return table
}()

func knownGlobal(path pathtrack.ObjectPath) (globalInfo, bool) {
	if path.IsUnknown() {
		return globalInfo{}, false
	}
	info, ok := knownGlobalTable[strings.Join(path, ".")]
	return info, ok
}

func isKnownGlobal(path pathtrack.ObjectPath) bool {
	_, ok := knownGlobal(path)
	return ok
}

// pureFunctions is a trie of dotted names configured as pure.
type pureFunctions struct {
	pure     bool
	children map[string]*pureFunctions
}

func newPureFunctions(names []string) *pureFunctions {
	root := &pureFunctions{}
	for _, name := range names {
		node := root
		for _, part := range strings.Split(name, ".") {
			if node.children == nil {
				node.children = map[string]*pureFunctions{}
			}
			next, ok := node.children[part]
			if !ok {
				next = &pureFunctions{}
				node.children[part] = next
			}
			node = next
		}
		node.pure = true
	}
	return root
}

// matches reports whether the dotted chain, or any prefix of it, was
// configured as pure.
func (p *pureFunctions) matches(chain []string) bool {
	node := p
	for _, part := range chain {
		next, ok := node.children[part]
		if !ok {
			return false
		}
		if next.pure {
			return true
		}
		node = next
	}
	return false
}
