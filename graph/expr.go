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
	"strconv"
	"strings"

	"bennypowers.dev/fascio/ast"
	"bennypowers.dev/fascio/pathtrack"
)

// unknownValuesKey deoptimizes every property value of an object without
// assuming that accessors were added to it.
const unknownValuesKey = "\x00values"

// nodeEntity answers analysis queries about the value an expression node
// produces. Identifiers and namespace members forward to their variables,
// literals with structure keep per-property state in the module.
type nodeEntity struct {
	m *Module
	n ast.Node
}

// entity returns the analysis entity of an expression. Nil stands for a
// missing initializer, which is undefined.
func (m *Module) entity(n ast.Node) Entity {
	if n == nil {
		return undefinedEntity
	}
	switch n := n.(type) {
	case *ast.ENumber:
		return valueEntity{n.Value}
	case *ast.EString:
		return valueEntity{n.Value}
	case *ast.EBoolean:
		return valueEntity{n.Value}
	case *ast.ENull:
		return valueEntity{Null}
	case *ast.EUndefined:
		return undefinedEntity
	case *ast.EBigInt:
		return valueEntity{BigInt(n.Raw)}
	case *ast.EFunction:
		return nodeEntity{m, n.Fn}
	case *ast.EClass:
		return nodeEntity{m, n.Class}
	}
	return nodeEntity{m, n}
}

// objectState is what the analysis learned about mutations of an object,
// array or class literal.
type objectState struct {
	// valuesUnknown means any property may hold any value.
	valuesUnknown bool
	// lostTrack means accessors may have been defined as well.
	lostTrack       bool
	deoptimizedKeys map[string]bool
	dependents      []Deoptimizable
}

func (m *Module) stateOf(n ast.Node) *objectState {
	s := m.objects[n]
	if s == nil {
		s = &objectState{deoptimizedKeys: map[string]bool{}}
		m.objects[n] = s
	}
	return s
}

func (s *objectState) knows(key string) bool {
	return !s.valuesUnknown && !s.lostTrack && key != pathtrack.UnknownKey && !s.deoptimizedKeys[key]
}

func (s *objectState) depend(origin Deoptimizable) {
	if origin != nil {
		s.dependents = append(s.dependents, origin)
	}
}

func (s *objectState) invalidate() {
	dependents := s.dependents
	s.dependents = nil
	for _, d := range dependents {
		d.DeoptimizeCache()
	}
}

// deoptimize records a mutation at path and reports whether the property
// values below path must be deoptimized too, at which sub-path.
func (s *objectState) deoptimize(path pathtrack.ObjectPath) (sub pathtrack.ObjectPath, all bool, ok bool) {
	if len(path) == 0 || s.lostTrack {
		return nil, false, false
	}
	key := path[0]
	if len(path) == 1 {
		switch key {
		case pathtrack.UnknownKey:
			s.lostTrack = true
			s.valuesUnknown = true
			s.invalidate()
			return pathtrack.UnknownPath, true, true
		case unknownValuesKey:
			if s.valuesUnknown {
				return nil, false, false
			}
			s.valuesUnknown = true
			s.invalidate()
			return pathtrack.UnknownPath, true, true
		}
		if !s.deoptimizedKeys[key] {
			s.deoptimizedKeys[key] = true
			s.invalidate()
		}
		return pathtrack.UnknownPath, false, true
	}
	return path[1:], key == pathtrack.UnknownKey, true
}

const (
	branchPending uint8 = iota
	branchKnown
	branchDeoptimized
)

// branchCache remembers the test value a conditional node was included
// with. Once the value goes stale it stays unknown for the rest of the
// build.
type branchCache struct {
	m     *Module
	node  ast.Node
	state uint8
	value LiteralValue
}

func (b *branchCache) DeoptimizeCache() {
	if b.state == branchDeoptimized {
		return
	}
	b.state = branchDeoptimized
	b.value = Unknown
	if b.node.IsIncluded() {
		b.m.graph.needsTreeshakingPass = true
	}
}

// testValue returns the cached literal value of the test expression that
// decides which branch of n runs.
func (m *Module) testValue(n ast.Node, test ast.Expr) LiteralValue {
	c := m.branches[n]
	if c == nil {
		c = &branchCache{m: m, node: n}
		m.branches[n] = c
	}
	switch c.state {
	case branchKnown:
		return c.value
	case branchDeoptimized:
		return Unknown
	}
	c.state = branchKnown
	value := m.entity(test).LiteralValueAtPath(pathtrack.EmptyPath, pathtrack.NewPathTracker(), c)
	if c.state == branchDeoptimized {
		return Unknown
	}
	c.value = value
	return value
}

type logicalBranch uint8

const (
	bothBranches logicalBranch = iota
	leftBranch
	rightBranch
)

// usedBranch returns the operand a logical expression evaluates to, given
// the value of its left side.
func usedBranch(op string, left LiteralValue) logicalBranch {
	switch op {
	case "??":
		nullish, known := isNullish(left)
		switch {
		case !known:
			return bothBranches
		case nullish:
			return rightBranch
		}
		return leftBranch
	case "||":
		truthy, known := Truthiness(left)
		switch {
		case !known:
			return bothBranches
		case truthy:
			return leftBranch
		}
		return rightBranch
	default:
		truthy, known := Truthiness(left)
		switch {
		case !known:
			return bothBranches
		case truthy:
			return rightBranch
		}
		return leftBranch
	}
}

func memberKey(e *ast.EMember) string {
	if e.Index != nil {
		return pathtrack.UnknownKey
	}
	return e.Name
}

func prepend(key string, path pathtrack.ObjectPath) pathtrack.ObjectPath {
	out := make(pathtrack.ObjectPath, 0, len(path)+1)
	return append(append(out, key), path...)
}

// calleeEntity splits a callee into the entity and the path the call
// interaction applies to, so method calls keep their receiver.
func (m *Module) calleeEntity(callee ast.Expr) (Entity, pathtrack.ObjectPath) {
	if member, ok := callee.(*ast.EMember); ok {
		if _, ns := m.nsMembers[member]; !ns {
			return m.entity(member.Object), pathtrack.ObjectPath{memberKey(member)}
		}
	}
	return m.entity(callee), pathtrack.EmptyPath
}

// receiver is the this value a call of callee receives.
func (m *Module) receiver(callee ast.Expr) Entity {
	if member, ok := callee.(*ast.EMember); ok {
		if _, ns := m.nsMembers[member]; !ns {
			return m.entity(member.Object)
		}
	}
	return nil
}

func (m *Module) callReturn(n *ast.ECall, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity {
	callee, path := m.calleeEntity(n.Callee)
	return callee.ReturnExpressionAtPath(path, tracker, origin)
}

// functionReturn is the value a call of fn produces, when a single return
// statement at the top of the body decides it.
func (m *Module) functionReturn(fn *ast.Function) Entity {
	if fn.Async || fn.Generator {
		return UnknownEntity
	}
	if fn.ExprBody != nil {
		return m.entity(fn.ExprBody)
	}
	returns := m.returns[fn]
	switch len(returns) {
	case 0:
		return undefinedEntity
	case 1:
		if m.parents[returns[0]] == ast.Node(fn.Body) {
			return m.entity(returns[0].Value)
		}
	}
	return UnknownEntity
}

func (m *Module) enclosingClass(n ast.Node) *ast.Class {
	for p := m.parents[n]; p != nil; p = m.parents[p] {
		if c, ok := p.(*ast.Class); ok {
			return c
		}
	}
	return nil
}

func (e nodeEntity) DeoptimizePath(path pathtrack.ObjectPath) {
	m := e.m
	switch n := e.n.(type) {
	case *ast.EIdentifier:
		if v := m.refs[n]; v != nil {
			v.DeoptimizePath(path)
		}
	case *ast.EThis:
		if v := m.thisRefs[n]; v != nil {
			v.DeoptimizePath(path)
		}
	case *ast.EMember:
		if v, ok := m.nsMembers[n]; ok {
			v.DeoptimizePath(path)
			return
		}
		m.entity(n.Object).DeoptimizePath(prepend(memberKey(n), path))
	case *ast.EObject:
		sub, all, ok := m.stateOf(n).deoptimize(path)
		if !ok || m.graph.deoptTracker.TrackEntityAtPathAndGetIfTracked(path, e) {
			return
		}
		for _, p := range n.Props {
			switch {
			case p.Kind == ast.PropSpread:
				if len(path) > 1 {
					m.entity(p.Value).DeoptimizePath(path)
				}
			case all || p.Computed || p.KeyName == path[0]:
				m.entity(p.Value).DeoptimizePath(sub)
			}
		}
	case *ast.EArray:
		state := m.stateOf(n)
		if len(path) == 1 {
			if _, index := arrayIndex(path[0]); index {
				state.deoptimizedKeys["length"] = true
			}
		}
		sub, all, ok := state.deoptimize(path)
		if !ok || m.graph.deoptTracker.TrackEntityAtPathAndGetIfTracked(path, e) {
			return
		}
		i, index := arrayIndex(path[0])
		for j, item := range n.Items {
			if item == nil {
				continue
			}
			if spread, ok := item.(*ast.ESpread); ok {
				m.entity(spread.Value).DeoptimizePath(pathtrack.UnknownPath)
				continue
			}
			if all || !index || i == j {
				m.entity(item).DeoptimizePath(sub)
			}
		}
	case *ast.Class:
		sub, all, ok := m.stateOf(n).deoptimize(path)
		if !ok || m.graph.deoptTracker.TrackEntityAtPathAndGetIfTracked(path, e) {
			return
		}
		for _, member := range n.Members {
			if member.Static && member.Value != nil && (all || member.Computed || member.KeyName == path[0]) {
				m.entity(member.Value).DeoptimizePath(sub)
			}
		}
	case *ast.ECall:
		if len(path) == 0 || m.graph.deoptTracker.TrackEntityAtPathAndGetIfTracked(path, e) {
			return
		}
		m.callReturn(n, pathtrack.NewPathTracker(), nil).DeoptimizePath(path)
	case *ast.EConditional:
		m.entity(n.Yes).DeoptimizePath(path)
		m.entity(n.No).DeoptimizePath(path)
	case *ast.ELogical:
		m.entity(n.Left).DeoptimizePath(path)
		m.entity(n.Right).DeoptimizePath(path)
	case *ast.ESequence:
		if len(n.Exprs) > 0 {
			m.entity(n.Exprs[len(n.Exprs)-1]).DeoptimizePath(path)
		}
	case *ast.EAssign:
		if n.Op == "=" {
			m.entity(n.Value).DeoptimizePath(path)
		}
	}
}

func (e nodeEntity) LiteralValueAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) LiteralValue {
	if len(path) > MaxPathDepth {
		return Unknown
	}
	m := e.m
	switch n := e.n.(type) {
	case *ast.EIdentifier:
		if v := m.refs[n]; v != nil {
			return v.LiteralValueAtPath(path, tracker, origin)
		}
	case *ast.EThis:
		if v := m.thisRefs[n]; v != nil {
			return v.LiteralValueAtPath(path, tracker, origin)
		}
		return undefinedEntity.LiteralValueAtPath(path, tracker, origin)
	case *ast.EMember:
		if v, ok := m.nsMembers[n]; ok {
			return v.LiteralValueAtPath(path, tracker, origin)
		}
		if key := memberKey(n); key != pathtrack.UnknownKey {
			return m.entity(n.Object).LiteralValueAtPath(prepend(key, path), tracker, origin)
		}
	case *ast.EObject:
		if len(path) == 0 {
			return UnknownTruthy
		}
		state := m.stateOf(n)
		if !state.knows(path[0]) {
			return Unknown
		}
		prop, exact := objectProperty(n, path[0])
		if !exact || prop == nil || prop.Kind == ast.PropGetter || prop.Kind == ast.PropSetter {
			return Unknown
		}
		state.depend(origin)
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() LiteralValue {
			return m.entity(prop.Value).LiteralValueAtPath(path[1:], tracker, origin)
		}, Unknown)
	case *ast.EArray:
		if len(path) == 0 {
			return UnknownTruthy
		}
		state := m.stateOf(n)
		if !state.knows(path[0]) || hasSpread(n.Items) {
			return Unknown
		}
		if path[0] == "length" {
			if len(path) > 1 {
				return Unknown
			}
			state.depend(origin)
			return float64(len(n.Items))
		}
		i, ok := arrayIndex(path[0])
		if !ok || i >= len(n.Items) {
			return Unknown
		}
		state.depend(origin)
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() LiteralValue {
			return m.entity(n.Items[i]).LiteralValueAtPath(path[1:], tracker, origin)
		}, Unknown)
	case *ast.Class:
		if len(path) == 0 {
			return UnknownTruthy
		}
		state := m.stateOf(n)
		member, exact := staticMember(n, path[0])
		if !state.knows(path[0]) || !exact || member == nil || member.Kind != ast.MemberField {
			return Unknown
		}
		state.depend(origin)
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() LiteralValue {
			return m.entity(member.Value).LiteralValueAtPath(path[1:], tracker, origin)
		}, Unknown)
	case *ast.Function, *ast.ERegExp, *ast.ENew:
		if len(path) == 0 {
			return UnknownTruthy
		}
	case *ast.ECall:
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() LiteralValue {
			return m.callReturn(n, tracker, origin).LiteralValueAtPath(path, tracker, origin)
		}, Unknown)
	case *ast.EConditional:
		truthy, known := Truthiness(m.entity(n.Test).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin))
		switch {
		case !known:
			return Unknown
		case truthy:
			return m.entity(n.Yes).LiteralValueAtPath(path, tracker, origin)
		}
		return m.entity(n.No).LiteralValueAtPath(path, tracker, origin)
	case *ast.ELogical:
		left := m.entity(n.Left).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin)
		switch usedBranch(n.Op, left) {
		case leftBranch:
			if len(path) == 0 {
				return left
			}
			return m.entity(n.Left).LiteralValueAtPath(path, tracker, origin)
		case rightBranch:
			return m.entity(n.Right).LiteralValueAtPath(path, tracker, origin)
		}
	case *ast.ESequence:
		if len(n.Exprs) > 0 {
			return m.entity(n.Exprs[len(n.Exprs)-1]).LiteralValueAtPath(path, tracker, origin)
		}
	case *ast.EAssign:
		if n.Op == "=" {
			return m.entity(n.Value).LiteralValueAtPath(path, tracker, origin)
		}
	case *ast.EUnary:
		if len(path) > 0 || n.Op == "delete" {
			return Unknown
		}
		return evalUnary(n.Op, m.entity(n.Value).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin))
	case *ast.EBinary:
		if len(path) > 0 {
			return Unknown
		}
		left := m.entity(n.Left).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin)
		right := m.entity(n.Right).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin)
		return evalBinary(n.Op, left, right)
	case *ast.ETemplate:
		if n.Tag != nil {
			return Unknown
		}
		var sb strings.Builder
		for i, quasi := range n.Quasis {
			sb.WriteString(quasi)
			if i >= len(n.Exprs) {
				continue
			}
			s, ok := toJSString(m.entity(n.Exprs[i]).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin))
			if !ok {
				return Unknown
			}
			sb.WriteString(s)
		}
		return valueEntity{sb.String()}.LiteralValueAtPath(path, tracker, origin)
	}
	return Unknown
}

func (e nodeEntity) ReturnExpressionAtPath(path pathtrack.ObjectPath, tracker *pathtrack.PathTracker, origin Deoptimizable) Entity {
	if len(path) > MaxPathDepth {
		return UnknownEntity
	}
	m := e.m
	switch n := e.n.(type) {
	case *ast.EIdentifier:
		if v := m.refs[n]; v != nil {
			return v.ReturnExpressionAtPath(path, tracker, origin)
		}
	case *ast.EThis:
		if v := m.thisRefs[n]; v != nil {
			return v.ReturnExpressionAtPath(path, tracker, origin)
		}
	case *ast.EMember:
		if v, ok := m.nsMembers[n]; ok {
			return v.ReturnExpressionAtPath(path, tracker, origin)
		}
		if key := memberKey(n); key != pathtrack.UnknownKey {
			return m.entity(n.Object).ReturnExpressionAtPath(prepend(key, path), tracker, origin)
		}
	case *ast.EObject:
		if len(path) == 0 {
			return UnknownEntity
		}
		state := m.stateOf(n)
		if !state.knows(path[0]) {
			return UnknownEntity
		}
		prop, exact := objectProperty(n, path[0])
		if !exact || prop == nil || prop.Kind == ast.PropGetter || prop.Kind == ast.PropSetter {
			return UnknownEntity
		}
		state.depend(origin)
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() Entity {
			return m.entity(prop.Value).ReturnExpressionAtPath(path[1:], tracker, origin)
		}, UnknownEntity)
	case *ast.Class:
		if len(path) == 0 {
			return UnknownEntity
		}
		state := m.stateOf(n)
		member, exact := staticMember(n, path[0])
		if !state.knows(path[0]) || !exact || member == nil || member.Value == nil {
			return UnknownEntity
		}
		state.depend(origin)
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() Entity {
			return m.entity(member.Value).ReturnExpressionAtPath(path[1:], tracker, origin)
		}, UnknownEntity)
	case *ast.Function:
		if len(path) == 0 {
			return m.functionReturn(n)
		}
	case *ast.ECall:
		return pathtrack.WithTrackedEntityAtPath(tracker, path, e, func() Entity {
			return m.callReturn(n, tracker, origin).ReturnExpressionAtPath(path, tracker, origin)
		}, UnknownEntity)
	case *ast.EConditional:
		truthy, known := Truthiness(m.entity(n.Test).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin))
		switch {
		case !known:
			return UnknownEntity
		case truthy:
			return m.entity(n.Yes).ReturnExpressionAtPath(path, tracker, origin)
		}
		return m.entity(n.No).ReturnExpressionAtPath(path, tracker, origin)
	case *ast.ELogical:
		left := m.entity(n.Left).LiteralValueAtPath(pathtrack.EmptyPath, tracker, origin)
		switch usedBranch(n.Op, left) {
		case leftBranch:
			return m.entity(n.Left).ReturnExpressionAtPath(path, tracker, origin)
		case rightBranch:
			return m.entity(n.Right).ReturnExpressionAtPath(path, tracker, origin)
		}
	case *ast.ESequence:
		if len(n.Exprs) > 0 {
			return m.entity(n.Exprs[len(n.Exprs)-1]).ReturnExpressionAtPath(path, tracker, origin)
		}
	case *ast.EAssign:
		if n.Op == "=" {
			return m.entity(n.Value).ReturnExpressionAtPath(path, tracker, origin)
		}
	}
	return UnknownEntity
}

func (e nodeEntity) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if len(path) > MaxPathDepth {
		return true
	}
	m := e.m
	switch n := e.n.(type) {
	case *ast.EIdentifier:
		if v := m.refs[n]; v != nil {
			return v.HasEffectsOnInteraction(path, in, ctx)
		}
		return true
	case *ast.EThis:
		if v := m.thisRefs[n]; v != nil {
			return v.HasEffectsOnInteraction(path, in, ctx)
		}
		return undefinedEntity.HasEffectsOnInteraction(path, in, ctx)
	case *ast.ESuper:
		c := m.enclosingClass(n)
		if c == nil || c.Extends == nil || len(path) > 0 {
			return true
		}
		if in.Kind == Called {
			construct := &Interaction{Kind: Called, New: true, Args: in.Args, Site: in.Site}
			return m.entity(c.Extends).HasEffectsOnInteraction(pathtrack.EmptyPath, construct, ctx)
		}
		return in.Kind != Accessed
	case *ast.EMember:
		if v, ok := m.nsMembers[n]; ok {
			return v.HasEffectsOnInteraction(path, in, ctx)
		}
		return m.entity(n.Object).HasEffectsOnInteraction(prepend(memberKey(n), path), in, ctx)
	case *ast.EObject:
		return m.objectEffects(e, n, path, in, ctx)
	case *ast.EArray:
		return m.arrayEffects(n, path, in, ctx)
	case *ast.Function:
		return m.functionEffects(n, path, in, ctx)
	case *ast.Class:
		return m.classEffects(e, n, path, in, ctx)
	case *ast.ECall:
		if in.Kind == Called {
			tracker := ctx.called
			if in.New {
				tracker = ctx.instantiated
			}
			if tracker.TrackEntityAtPathAndGetIfTracked(path, in.Site, e) {
				return false
			}
		} else {
			tracker := ctx.accessed
			if in.Kind == Assigned {
				tracker = ctx.assigned
			}
			if tracker.TrackEntityAtPathAndGetIfTracked(path, e) {
				return false
			}
		}
		return m.callReturn(n, pathtrack.NewPathTracker(), nil).HasEffectsOnInteraction(path, in, ctx)
	case *ast.ENew, *ast.ERegExp:
		return len(path) > 0 || in.Kind != Accessed
	case *ast.EConditional:
		truthy, known := Truthiness(m.entity(n.Test).LiteralValueAtPath(pathtrack.EmptyPath, pathtrack.NewPathTracker(), nil))
		switch {
		case !known:
			return m.entity(n.Yes).HasEffectsOnInteraction(path, in, ctx) ||
				m.entity(n.No).HasEffectsOnInteraction(path, in, ctx)
		case truthy:
			return m.entity(n.Yes).HasEffectsOnInteraction(path, in, ctx)
		}
		return m.entity(n.No).HasEffectsOnInteraction(path, in, ctx)
	case *ast.ELogical:
		left := m.entity(n.Left).LiteralValueAtPath(pathtrack.EmptyPath, pathtrack.NewPathTracker(), nil)
		switch usedBranch(n.Op, left) {
		case leftBranch:
			return m.entity(n.Left).HasEffectsOnInteraction(path, in, ctx)
		case rightBranch:
			return m.entity(n.Right).HasEffectsOnInteraction(path, in, ctx)
		}
		return m.entity(n.Left).HasEffectsOnInteraction(path, in, ctx) ||
			m.entity(n.Right).HasEffectsOnInteraction(path, in, ctx)
	case *ast.ESequence:
		if len(n.Exprs) > 0 {
			return m.entity(n.Exprs[len(n.Exprs)-1]).HasEffectsOnInteraction(path, in, ctx)
		}
	case *ast.EAssign:
		if n.Op == "=" {
			return m.entity(n.Value).HasEffectsOnInteraction(path, in, ctx)
		}
		return primitiveEffects(path, in)
	case *ast.EUnary, *ast.EBinary, *ast.EUpdate, *ast.ETemplate:
		if t, ok := n.(*ast.ETemplate); ok && t.Tag != nil {
			break
		}
		value := e.LiteralValueAtPath(pathtrack.EmptyPath, pathtrack.NewPathTracker(), nil)
		if !IsUnknown(value) {
			return valueEntity{value}.HasEffectsOnInteraction(path, in, ctx)
		}
		return primitiveEffects(path, in)
	}
	return len(path) > 0 || in.Kind != Accessed
}

// primitiveEffects covers a value known to be a non-nullish primitive.
func primitiveEffects(path pathtrack.ObjectPath, in *Interaction) bool {
	return in.Kind != Accessed || len(path) > 1
}

// objectProperty finds the property that decides key. It is not exact
// when a spread or computed key might provide the property instead.
func objectProperty(obj *ast.EObject, key string) (prop *ast.Property, exact bool) {
	if key == pathtrack.UnknownKey {
		return nil, false
	}
	for i := len(obj.Props) - 1; i >= 0; i-- {
		p := obj.Props[i]
		switch {
		case p.Kind == ast.PropSpread, p.Computed:
			return nil, false
		case p.KeyName == key:
			return p, true
		}
	}
	return nil, true
}

var objectPrototypeMethods = map[string]bool{
	"hasOwnProperty": true, "isPrototypeOf": true, "propertyIsEnumerable": true,
	"toLocaleString": true, "toString": true, "valueOf": true,
}

func (m *Module) objectEffects(e nodeEntity, obj *ast.EObject, path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if len(path) == 0 {
		return in.Kind == Called
	}
	state := m.stateOf(obj)
	key := path[0]
	if len(path) == 1 && in.Kind != Called {
		if state.lostTrack {
			return true
		}
		return m.accessorEffects(e, obj, key, in, ctx)
	}
	if !state.knows(key) {
		return true
	}
	prop, exact := objectProperty(obj, key)
	if !exact {
		return true
	}
	if prop == nil {
		return !(len(path) == 1 && objectPrototypeMethods[key])
	}
	if prop.Kind == ast.PropGetter || prop.Kind == ast.PropSetter {
		return true
	}
	return m.entity(prop.Value).HasEffectsOnInteraction(path[1:], in, ctx)
}

// accessorEffects checks the getters or setters a property access or
// assignment at key would run.
func (m *Module) accessorEffects(e nodeEntity, obj *ast.EObject, key string, in *Interaction, ctx *EffectsContext) bool {
	kind := ast.PropGetter
	if in.Kind == Assigned {
		kind = ast.PropSetter
	}
	for _, p := range obj.Props {
		if p.Kind != kind {
			continue
		}
		if p.Computed || key == pathtrack.UnknownKey || p.KeyName == key {
			call := &Interaction{Kind: Called, This: e, Site: p}
			if m.entity(p.Value).HasEffectsOnInteraction(pathtrack.EmptyPath, call, ctx) {
				return true
			}
		}
	}
	return false
}

var (
	arrayMutators = map[string]bool{
		"copyWithin": true, "fill": true, "pop": true, "push": true, "reverse": true,
		"shift": true, "sort": true, "splice": true, "unshift": true,
	}
	arrayPureMethods = map[string]bool{
		"at": true, "concat": true, "entries": true, "every": true, "filter": true,
		"find": true, "findIndex": true, "findLast": true, "findLastIndex": true,
		"flat": true, "flatMap": true, "forEach": true, "includes": true,
		"indexOf": true, "join": true, "keys": true, "lastIndexOf": true, "map": true,
		"reduce": true, "reduceRight": true, "slice": true, "some": true,
		"toLocaleString": true, "toReversed": true, "toSorted": true,
		"toSpliced": true, "toString": true, "values": true, "with": true,
	}
	arrayCallbackMethods = map[string]bool{
		"every": true, "filter": true, "find": true, "findIndex": true, "findLast": true,
		"findLastIndex": true, "flatMap": true, "forEach": true, "map": true,
		"reduce": true, "reduceRight": true, "some": true, "sort": true, "toSorted": true,
	}
)

func arrayIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	return i, err == nil && i >= 0 && strconv.Itoa(i) == key
}

func hasSpread(items []ast.Expr) bool {
	for _, item := range items {
		if _, ok := item.(*ast.ESpread); ok {
			return true
		}
	}
	return false
}

func (m *Module) arrayEffects(arr *ast.EArray, path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if len(path) == 0 {
		return in.Kind == Called
	}
	state := m.stateOf(arr)
	key := path[0]
	if len(path) == 1 {
		if in.Kind != Called {
			return state.lostTrack
		}
		if state.lostTrack {
			return true
		}
		if arrayMutators[key] {
			if in.This == nil || in.This.HasEffectsOnInteraction(pathtrack.UnknownPath, assignInteraction, ctx) {
				return true
			}
		} else if !arrayPureMethods[key] {
			return true
		}
		if arrayCallbackMethods[key] && len(in.Args) > 0 {
			callback := &Interaction{Kind: Called, Site: in.Site}
			return in.Args[0].HasEffectsOnInteraction(pathtrack.EmptyPath, callback, ctx)
		}
		return false
	}
	if !state.knows(key) || hasSpread(arr.Items) {
		return true
	}
	i, ok := arrayIndex(key)
	if !ok || i >= len(arr.Items) || arr.Items[i] == nil {
		return true
	}
	return m.entity(arr.Items[i]).HasEffectsOnInteraction(path[1:], in, ctx)
}

func (m *Module) functionEffects(fn *ast.Function, path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	switch len(path) {
	case 0:
		if in.Kind != Called {
			return false
		}
		return m.functionCallEffects(fn, in, ctx)
	case 1:
		if in.Kind != Called {
			return false
		}
		switch path[0] {
		case "call", "apply":
			var this Entity = UnknownEntity
			if len(in.Args) > 0 {
				this = in.Args[0]
			}
			return m.functionCallEffects(fn, &Interaction{Kind: Called, This: this, Site: in.Site}, ctx)
		case "bind":
			return false
		}
	}
	return true
}

// functionCallEffects checks the parameter defaults and body of fn as if it
// were called with the given interaction.
func (m *Module) functionCallEffects(fn *ast.Function, in *Interaction, ctx *EffectsContext) bool {
	if in.New && (fn.Arrow || fn.Async || fn.Generator) {
		return true
	}
	brokenFlow, ignore := ctx.brokenFlow, ctx.ignore
	ctx.brokenFlow = false
	ctx.ignore = ignoreFlags{labels: map[string]bool{}, returnYield: true, this: in.New}
	defer func() {
		ctx.brokenFlow, ctx.ignore = brokenFlow, ignore
	}()
	if fs := m.scopes[fn]; fs != nil && fs.this != nil {
		previous, replaced := ctx.replacedThis[fs.this]
		switch {
		case in.New:
			ctx.replacedThis[fs.this] = freshObject{}
		case in.This != nil:
			ctx.replacedThis[fs.this] = in.This
		default:
			ctx.replacedThis[fs.this] = UnknownEntity
		}
		defer func() {
			if replaced {
				ctx.replacedThis[fs.this] = previous
			} else {
				delete(ctx.replacedThis, fs.this)
			}
		}()
	}
	for _, p := range fn.Params {
		if m.hasEffects(p, ctx) {
			return true
		}
	}
	if fn.Generator {
		return false
	}
	if fn.ExprBody != nil {
		return m.hasEffects(fn.ExprBody, ctx)
	}
	if fn.Body != nil {
		return m.hasEffects(fn.Body, ctx)
	}
	return false
}

// staticMember finds the static class member named key. It is not exact
// when a computed static key might match.
func staticMember(c *ast.Class, key string) (*ast.ClassMember, bool) {
	if key == pathtrack.UnknownKey {
		return nil, false
	}
	var found *ast.ClassMember
	for _, member := range c.Members {
		if !member.Static || member.Kind == ast.MemberStaticBlock {
			continue
		}
		if member.Computed {
			return nil, false
		}
		if member.KeyName == key {
			found = member
		}
	}
	return found, true
}

func (m *Module) classEffects(e nodeEntity, c *ast.Class, path pathtrack.ObjectPath, in *Interaction, ctx *EffectsContext) bool {
	if len(path) == 0 {
		switch in.Kind {
		case Accessed, Assigned:
			return false
		}
		if !in.New {
			return true
		}
		return m.constructEffects(c, ctx)
	}
	state := m.stateOf(c)
	key := path[0]
	member, exact := staticMember(c, key)
	if len(path) == 1 && in.Kind != Called {
		if state.lostTrack || !exact {
			return true
		}
		if member == nil || member.Kind == ast.MemberField || member.Kind == ast.MemberMethod {
			return false
		}
		wanted := ast.MemberGetter
		if in.Kind == Assigned {
			wanted = ast.MemberSetter
		}
		if member.Kind != wanted {
			return true
		}
		call := &Interaction{Kind: Called, This: e, Site: member}
		return m.entity(member.Value).HasEffectsOnInteraction(pathtrack.EmptyPath, call, ctx)
	}
	if !state.knows(key) || member == nil || member.Value == nil {
		return true
	}
	switch member.Kind {
	case ast.MemberMethod, ast.MemberField:
		return m.entity(member.Value).HasEffectsOnInteraction(path[1:], in, ctx)
	}
	return true
}

// constructEffects checks what new C() runs: the superclass constructor,
// instance field initializers and the constructor body.
func (m *Module) constructEffects(c *ast.Class, ctx *EffectsContext) bool {
	if c.Extends != nil {
		construct := &Interaction{Kind: Called, New: true, Site: c}
		if m.entity(c.Extends).HasEffectsOnInteraction(pathtrack.EmptyPath, construct, ctx) {
			return true
		}
	}
	cs := m.scopes[c]
	previous, replaced := ctx.replacedThis[cs.this]
	ctx.replacedThis[cs.this] = freshObject{}
	defer func() {
		if replaced {
			ctx.replacedThis[cs.this] = previous
		} else {
			delete(ctx.replacedThis, cs.this)
		}
	}()
	for _, member := range c.Members {
		if member.Static {
			continue
		}
		switch member.Kind {
		case ast.MemberField:
			if member.Value != nil && m.hasEffects(member.Value, ctx) {
				return true
			}
		case ast.MemberMethod:
			if member.Computed || member.KeyName != "constructor" {
				continue
			}
			if fn, ok := member.Value.(*ast.EFunction); ok {
				construct := &Interaction{Kind: Called, New: true, Site: member}
				if m.functionCallEffects(fn.Fn, construct, ctx) {
					return true
				}
			}
		}
	}
	return false
}

// freshObject is the receiver of a constructor call: an empty object with
// the default prototype.
type freshObject struct{}

func (freshObject) DeoptimizePath(pathtrack.ObjectPath) {}

func (freshObject) LiteralValueAtPath(path pathtrack.ObjectPath, _ *pathtrack.PathTracker, _ Deoptimizable) LiteralValue {
	if len(path) == 0 {
		return UnknownTruthy
	}
	return Unknown
}

func (freshObject) ReturnExpressionAtPath(pathtrack.ObjectPath, *pathtrack.PathTracker, Deoptimizable) Entity {
	return UnknownEntity
}

func (freshObject) HasEffectsOnInteraction(path pathtrack.ObjectPath, in *Interaction, _ *EffectsContext) bool {
	if in.Kind == Called {
		return true
	}
	return len(path) > 1
}
