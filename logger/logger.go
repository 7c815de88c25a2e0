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

// Package logger collects build diagnostics. Every message carries a stable
// code so callers can filter or escalate specific conditions.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Code identifies a class of diagnostic.
type Code string

const (
	UnresolvedEntry              Code = "UNRESOLVED_ENTRY"
	UnresolvedImport             Code = "UNRESOLVED_IMPORT"
	ParseError                   Code = "PARSE_ERROR"
	LoadError                    Code = "LOAD_ERROR"
	IllegalReassignment          Code = "ILLEGAL_REASSIGNMENT"
	IllegalNamespaceReassignment Code = "ILLEGAL_NAMESPACE_REASSIGNMENT"
	ConstReassign                Code = "CONST_REASSIGN"
	DuplicateExport              Code = "DUPLICATE_EXPORT"
	CircularReexport             Code = "CIRCULAR_REEXPORT"
	InvalidExportOption          Code = "INVALID_EXPORT_OPTION"

	CircularDependency   Code = "CIRCULAR_DEPENDENCY"
	MissingExport        Code = "MISSING_EXPORT"
	MixedExports         Code = "MIXED_EXPORTS"
	EmptyBundle          Code = "EMPTY_BUNDLE"
	UnusedExternalImport Code = "UNUSED_EXTERNAL_IMPORT"
	ThisIsUndefined      Code = "THIS_IS_UNDEFINED"
	NamespaceConflict    Code = "NAMESPACE_CONFLICT"
	Eval                 Code = "EVAL"
)

// MsgKind is the severity of a message.
type MsgKind uint8

const (
	Error MsgKind = iota
	Warning
)

func (k MsgKind) String() string {
	switch k {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Location points into a module's source text.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`   // 1-based
	Column int    `json:"column"` // 0-based, in bytes
}

// Msg is a single diagnostic.
type Msg struct {
	Kind      MsgKind   `json:"-"`
	Code      Code      `json:"code"`
	Text      string    `json:"message"`
	ID        string    `json:"id,omitempty"`        // module that produced the message
	Specifier string    `json:"specifier,omitempty"` // offending import specifier, if any
	Cycle     []string  `json:"cycle,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

func (m Msg) String() string {
	var sb strings.Builder
	if m.Location != nil {
		fmt.Fprintf(&sb, "%s:%d:%d: ", m.Location.File, m.Location.Line, m.Location.Column)
	} else if m.ID != "" {
		fmt.Fprintf(&sb, "%s: ", m.ID)
	}
	fmt.Fprintf(&sb, "%s [%s] %s", m.Kind, m.Code, m.Text)
	return sb.String()
}

// LocationAt converts a byte offset into a line/column location.
func LocationAt(file string, source []byte, offset uint32) *Location {
	if int(offset) > len(source) {
		offset = uint32(len(source))
	}
	line := 1
	lineStart := 0
	for i := 0; i < int(offset); i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return &Location{File: file, Line: line, Column: int(offset) - lineStart}
}

// Log is a diagnostics sink. It is safe for concurrent use because the
// module loader reports from several goroutines at once.
type Log struct {
	AddMsg    func(Msg)
	HasErrors func() bool
	Done      func() []Msg
}

// NewDeferLog returns a Log that only accumulates messages.
func NewDeferLog() Log {
	return NewStreamLog(nil)
}

// NewStreamLog returns a Log that forwards each message to the given slog
// logger as it arrives, in addition to accumulating it. A nil logger
// disables streaming.
func NewStreamLog(sl *slog.Logger) Log {
	var mu sync.Mutex
	var msgs []Msg
	var hasErrors bool

	return Log{
		AddMsg: func(msg Msg) {
			mu.Lock()
			msgs = append(msgs, msg)
			if msg.Kind == Error {
				hasErrors = true
			}
			mu.Unlock()
			if sl != nil {
				emit(sl, msg)
			}
		},
		HasErrors: func() bool {
			mu.Lock()
			defer mu.Unlock()
			return hasErrors
		},
		Done: func() []Msg {
			mu.Lock()
			defer mu.Unlock()
			sorted := append([]Msg(nil), msgs...)
			sort.Stable(msgsArray(sorted))
			return sorted
		},
	}
}

func emit(sl *slog.Logger, msg Msg) {
	level := slog.LevelWarn
	if msg.Kind == Error {
		level = slog.LevelError
	}
	attrs := []slog.Attr{slog.String("code", string(msg.Code))}
	if msg.ID != "" {
		attrs = append(attrs, slog.String("id", msg.ID))
	}
	if msg.Specifier != "" {
		attrs = append(attrs, slog.String("specifier", msg.Specifier))
	}
	if msg.Location != nil {
		attrs = append(attrs,
			slog.String("file", msg.Location.File),
			slog.Int("line", msg.Location.Line),
			slog.Int("column", msg.Location.Column))
	}
	if len(msg.Cycle) > 0 {
		attrs = append(attrs, slog.String("cycle", strings.Join(msg.Cycle, " -> ")))
	}
	sl.LogAttrs(context.Background(), level, msg.Text, attrs...)
}

// Warn is shorthand for adding a warning.
func (log Log) Warn(code Code, id string, text string) {
	log.AddMsg(Msg{Kind: Warning, Code: code, ID: id, Text: text})
}

// Warnings returns only the warning messages from msgs.
func Warnings(msgs []Msg) []Msg {
	var out []Msg
	for _, msg := range msgs {
		if msg.Kind == Warning {
			out = append(out, msg)
		}
	}
	return out
}

// HasCode reports whether any message in msgs carries code.
func HasCode(msgs []Msg, code Code) bool {
	for _, msg := range msgs {
		if msg.Code == code {
			return true
		}
	}
	return false
}

// This type is just so we can use Go's native sort function
type msgsArray []Msg

func (a msgsArray) Len() int          { return len(a) }
func (a msgsArray) Swap(i int, j int) { a[i], a[j] = a[j], a[i] }

func (a msgsArray) Less(i int, j int) bool {
	ai, aj := a[i], a[j]
	li, lj := ai.Location, aj.Location
	if li == nil && lj != nil {
		return true
	}
	if li != nil && lj == nil {
		return false
	}
	if li != nil && lj != nil {
		if li.File != lj.File {
			return li.File < lj.File
		}
		if li.Line != lj.Line {
			return li.Line < lj.Line
		}
		if li.Column != lj.Column {
			return li.Column < lj.Column
		}
	}
	if ai.Kind != aj.Kind {
		return ai.Kind < aj.Kind
	}
	if ai.ID != aj.ID {
		return ai.ID < aj.ID
	}
	if ai.Code != aj.Code {
		return ai.Code < aj.Code
	}
	return ai.Text < aj.Text
}
