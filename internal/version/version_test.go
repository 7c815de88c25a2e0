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
package version

import "testing"

func TestString(t *testing.T) {
	saved := []string{Version, GitTag, GitCommit, GitDirty}
	t.Cleanup(func() {
		Version, GitTag, GitCommit, GitDirty = saved[0], saved[1], saved[2], saved[3]
	})

	tests := []struct {
		name                        string
		version, tag, commit, dirty string
		want                        string
	}{
		{"ldflags win", "v1.2.0", "v1.1.0", "abcdef1234", "", "v1.2.0"},
		{"tag and short commit", "dev", "v0.3.0", "abcdef1234", "", "v0.3.0-abcdef1"},
		{"tag already names commit", "dev", "v0.3.0-abcdef1", "abcdef1", "", "v0.3.0-abcdef1"},
		{"dirty tree", "dev", "v0.3.0", "abc", "dirty", "v0.3.0-abc-dirty"},
		{"no git info", "dev", "unknown", "unknown", "", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, GitTag, GitCommit, GitDirty = tt.version, tt.tag, tt.commit, tt.dirty
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
