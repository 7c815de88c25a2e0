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

// Package pathtrack addresses sub-values by property path and guards
// recursive analyses against revisiting the same entity along the same path.
package pathtrack

import "strings"

// UnknownKey stands for a property whose name cannot be determined statically.
const UnknownKey = "\x00unknown"

// ObjectPath is an ordered list of property accesses.
type ObjectPath []string

var (
	// EmptyPath addresses the value itself.
	EmptyPath = ObjectPath{}
	// UnknownPath addresses an arbitrary property of the value.
	UnknownPath = ObjectPath{UnknownKey}
)

// Tail returns the path without its first key.
func (p ObjectPath) Tail() ObjectPath {
	if len(p) == 0 {
		return p
	}
	return p[1:]
}

// Head returns the first key of the path, or "" when the path is empty.
func (p ObjectPath) Head() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// IsUnknown reports whether any key of the path is unknown.
func (p ObjectPath) IsUnknown() bool {
	for _, key := range p {
		if key == UnknownKey {
			return true
		}
	}
	return false
}

// Append returns a new path with key added at the end.
func (p ObjectPath) Append(key string) ObjectPath {
	out := make(ObjectPath, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

func (p ObjectPath) String() string {
	parts := make([]string, len(p))
	for i, key := range p {
		if key == UnknownKey {
			parts[i] = "?"
		} else {
			parts[i] = key
		}
	}
	return strings.Join(parts, ".")
}

type node struct {
	entities map[any]struct{}
	children map[string]*node
}

func (n *node) at(path ObjectPath) *node {
	current := n
	for _, key := range path {
		if current.children == nil {
			current.children = make(map[string]*node)
		}
		next, ok := current.children[key]
		if !ok {
			next = &node{}
			current.children[key] = next
		}
		current = next
	}
	if current.entities == nil {
		current.entities = make(map[any]struct{})
	}
	return current
}

// PathTracker records which entities are being analyzed along which path.
// Entities must be comparable, which in practice means pointers.
type PathTracker struct {
	root node
}

// NewPathTracker returns an empty tracker.
func NewPathTracker() *PathTracker {
	return &PathTracker{}
}

// TrackEntityAtPathAndGetIfTracked marks entity at path and reports whether
// it was already marked. The mark persists.
func (t *PathTracker) TrackEntityAtPathAndGetIfTracked(path ObjectPath, entity any) bool {
	n := t.root.at(path)
	if _, ok := n.entities[entity]; ok {
		return true
	}
	n.entities[entity] = struct{}{}
	return false
}

// IsTracked reports whether entity is currently marked at path.
func (t *PathTracker) IsTracked(path ObjectPath, entity any) bool {
	_, ok := t.root.at(path).entities[entity]
	return ok
}

// WithTrackedEntityAtPath runs onUntracked with entity marked at path and
// removes the mark afterwards. If the entity is already marked, it returns
// ifTracked without calling onUntracked.
func WithTrackedEntityAtPath[T any](t *PathTracker, path ObjectPath, entity any, onUntracked func() T, ifTracked T) T {
	n := t.root.at(path)
	if _, ok := n.entities[entity]; ok {
		return ifTracked
	}
	n.entities[entity] = struct{}{}
	defer delete(n.entities, entity)
	return onUntracked()
}

// DiscriminatedPathTracker is a PathTracker whose marks are additionally
// keyed by a discriminator, typically the call site being analyzed.
type DiscriminatedPathTracker struct {
	root dnode
}

type dnode struct {
	entities map[any]map[any]struct{}
	children map[string]*dnode
}

// NewDiscriminatedPathTracker returns an empty tracker.
func NewDiscriminatedPathTracker() *DiscriminatedPathTracker {
	return &DiscriminatedPathTracker{}
}

func (n *dnode) at(path ObjectPath) *dnode {
	current := n
	for _, key := range path {
		if current.children == nil {
			current.children = make(map[string]*dnode)
		}
		next, ok := current.children[key]
		if !ok {
			next = &dnode{}
			current.children[key] = next
		}
		current = next
	}
	if current.entities == nil {
		current.entities = make(map[any]map[any]struct{})
	}
	return current
}

// TrackEntityAtPathAndGetIfTracked marks entity at (path, discriminator)
// and reports whether it was already marked.
func (t *DiscriminatedPathTracker) TrackEntityAtPathAndGetIfTracked(path ObjectPath, discriminator any, entity any) bool {
	n := t.root.at(path)
	set, ok := n.entities[discriminator]
	if !ok {
		set = make(map[any]struct{})
		n.entities[discriminator] = set
	}
	if _, ok := set[entity]; ok {
		return true
	}
	set[entity] = struct{}{}
	return false
}
