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
package logger

import "fmt"

// BuildError is a fatal diagnostic. It aborts the build and is surfaced to
// the caller unchanged, so errors.As can recover the code and location.
type BuildError struct {
	Msg
	cause error
}

// NewError creates a fatal error with the given code.
func NewError(code Code, id string, format string, args ...any) *BuildError {
	return &BuildError{Msg: Msg{Kind: Error, Code: code, ID: id, Text: fmt.Sprintf(format, args...)}}
}

func (e *BuildError) Error() string {
	return e.Msg.String()
}

// WithSpecifier records the import specifier that caused the error.
func (e *BuildError) WithSpecifier(specifier string) *BuildError {
	e.Specifier = specifier
	return e
}

// WithLocation attaches a source location.
func (e *BuildError) WithLocation(loc *Location) *BuildError {
	e.Location = loc
	return e
}

// WithCause records the collaborator error that triggered this one.
func (e *BuildError) WithCause(err error) *BuildError {
	e.cause = err
	return e
}

func (e *BuildError) Unwrap() error {
	return e.cause
}
