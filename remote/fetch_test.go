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
package remote

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCheckModuleResponse(t *testing.T) {
	const url = "https://esm.sh/lit"
	tests := []struct {
		name        string
		status      int
		contentType string
		size        int
		wantErr     string
		notFound    bool
	}{
		{name: "javascript", status: 200, contentType: "application/javascript; charset=utf-8", size: 10},
		{name: "text javascript", status: 200, contentType: "text/javascript", size: 10},
		{name: "typescript", status: 200, contentType: "application/typescript", size: 10},
		{name: "raw file host", status: 200, contentType: "text/plain; charset=utf-8", size: 10},
		{name: "no header", status: 200, size: 10},
		{name: "html fallback", status: 200, contentType: "text/html; charset=utf-8", size: 10, wantErr: `unexpected content type "text/html; charset=utf-8"`},
		{name: "image", status: 200, contentType: "image/png", size: 10, wantErr: "unexpected content type"},
		{name: "malformed", status: 200, contentType: "text/;;", size: 10, wantErr: "unexpected content type"},
		{name: "too large", status: 200, contentType: "text/javascript", size: 2048, wantErr: "module is 2048 bytes, limit is 1024"},
		{name: "not found", status: 404, contentType: "text/html", size: 10, wantErr: "HTTP 404", notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkModuleResponse(url, tt.status, tt.contentType, tt.size, 1024)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %q, want it to contain %q", err.Error(), tt.wantErr)
			}
			if err.IsNotFound() != tt.notFound {
				t.Errorf("IsNotFound() = %v", err.IsNotFound())
			}
		})
	}
}

func TestCheckModuleResponseUnlimited(t *testing.T) {
	if err := checkModuleResponse("https://a.test/x.js", 200, "text/javascript", 1<<30, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	f := NewHTTPFetcher()
	if got := f.timeout(context.Background()); got != DefaultTimeout {
		t.Errorf("got %v, want %v", got, DefaultTimeout)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if got := f.timeout(ctx); got <= 0 || got > time.Second {
		t.Errorf("got %v, want the context deadline", got)
	}
}
