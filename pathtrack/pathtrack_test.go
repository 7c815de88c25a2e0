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
package pathtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct{ name string }

func TestTrackEntityAtPathAndGetIfTracked(t *testing.T) {
	tracker := NewPathTracker()
	a := &entity{"a"}
	b := &entity{"b"}

	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(ObjectPath{"x"}, a))
	assert.True(t, tracker.TrackEntityAtPathAndGetIfTracked(ObjectPath{"x"}, a))
	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(ObjectPath{"x"}, b), "different entity, same path")
	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(ObjectPath{"x", "y"}, a), "same entity, longer path")
	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(EmptyPath, a), "same entity, empty path")
}

func TestWithTrackedEntityAtPathReleasesMark(t *testing.T) {
	tracker := NewPathTracker()
	a := &entity{"a"}

	depth := 0
	var visit func() string
	visit = func() string {
		depth++
		return WithTrackedEntityAtPath(tracker, ObjectPath{"p"}, a, visit, "cycle")
	}
	assert.Equal(t, "cycle", visit())
	assert.Equal(t, 2, depth, "re-entry must short-circuit on the second visit")
	assert.False(t, tracker.IsTracked(ObjectPath{"p"}, a), "mark must be removed after the call")
}

func TestDiscriminatedPathTracker(t *testing.T) {
	tracker := NewDiscriminatedPathTracker()
	a := &entity{"a"}
	callSite1 := &entity{"call1"}
	callSite2 := &entity{"call2"}

	require.False(t, tracker.TrackEntityAtPathAndGetIfTracked(EmptyPath, callSite1, a))
	assert.True(t, tracker.TrackEntityAtPathAndGetIfTracked(EmptyPath, callSite1, a))
	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(EmptyPath, callSite2, a))
	assert.False(t, tracker.TrackEntityAtPathAndGetIfTracked(ObjectPath{"m"}, callSite1, a), "paths are tracked separately")
}

func TestObjectPath(t *testing.T) {
	p := ObjectPath{"a", UnknownKey}
	assert.True(t, p.IsUnknown())
	assert.Equal(t, "a.?", p.String())
	assert.Equal(t, "a", p.Head())
	assert.Equal(t, ObjectPath{UnknownKey}, p.Tail())

	q := p.Append("b")
	assert.Len(t, q, 3)
	assert.Len(t, p, 2, "Append must not mutate the receiver")
}
