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

// Package remote loads module sources over http(s).
package remote

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/tinywasm/fetch"
)

const (
	// DefaultMaxModuleSize caps the body of a fetched module.
	DefaultMaxModuleSize = 16 << 20
	// DefaultTimeout bounds a fetch whose context has no deadline.
	DefaultTimeout = 30 * time.Second
)

// acceptModules is sent as the Accept header of every module request.
const acceptModules = "text/javascript, application/javascript, application/typescript;q=0.9, */*;q=0.1"

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches module sources with tinywasm/fetch, which works in
// native and WASM builds alike. Responses that are not scripts, such as
// the HTML fallback pages some CDNs serve for missing files, are rejected.
type HTTPFetcher struct {
	// MaxSize is the largest body accepted, in bytes.
	MaxSize int
	// Timeout applies when the context carries no deadline.
	Timeout time.Duration
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{MaxSize: DefaultMaxModuleSize, Timeout: DefaultTimeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)

	req := fetch.Get(url).Header("Accept", acceptModules)
	if timeout := f.timeout(ctx); timeout > 0 {
		req = req.Timeout(int(timeout.Milliseconds()))
	}
	req.Send(func(resp *fetch.Response, err error) {
		if err != nil {
			done <- result{err: &FetchError{URL: url, Message: err.Error()}}
			return
		}
		body := resp.Body()
		if ferr := checkModuleResponse(url, resp.Status, resp.GetHeader("Content-Type"), len(body), f.MaxSize); ferr != nil {
			done <- result{err: ferr}
			return
		}
		done <- result{body: body}
	})

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Message: ctx.Err().Error(), cause: ctx.Err()}
	}
}

func (f *HTTPFetcher) timeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return f.Timeout
}

// checkModuleResponse rejects responses that cannot be a module source. A
// maxSize of zero or less disables the size check.
func checkModuleResponse(url string, status int, contentType string, size, maxSize int) *FetchError {
	if status != 200 {
		return &FetchError{URL: url, StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}
	}
	if maxSize > 0 && size > maxSize {
		return &FetchError{URL: url, Message: fmt.Sprintf("module is %d bytes, limit is %d", size, maxSize)}
	}
	if !isScriptType(contentType) {
		return &FetchError{URL: url, Message: fmt.Sprintf("unexpected content type %q", contentType)}
	}
	return nil
}

// isScriptType accepts JavaScript and TypeScript media types, plus the
// generic types raw file hosts use. A missing header is accepted.
func isScriptType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/plain", "application/octet-stream":
		return true
	}
	for _, kind := range []string{"javascript", "ecmascript", "typescript", "jsx"} {
		if strings.Contains(mediaType, kind) {
			return true
		}
	}
	return false
}

// FetchError is a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.cause }

// IsNotFound reports a 404 response.
func (e *FetchError) IsNotFound() bool {
	return e.StatusCode == 404
}
