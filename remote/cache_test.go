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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingFetcher struct {
	calls atomic.Int32
	delay time.Duration
	fail  map[string]error
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	return []byte("export default " + `"` + url + `";`), nil
}

func TestCachingFetcherCaches(t *testing.T) {
	next := &countingFetcher{}
	f, err := NewCachingFetcher(next, 0)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		body, err := f.Fetch(context.Background(), "https://esm.sh/lit")
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != `export default "https://esm.sh/lit";` {
			t.Errorf("unexpected body %q", body)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("fetched %d times, want 1", n)
	}
}

func TestCachingFetcherSharesInflightRequests(t *testing.T) {
	next := &countingFetcher{delay: 20 * time.Millisecond}
	f, err := NewCachingFetcher(next, 4)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, err := f.Fetch(context.Background(), "https://esm.sh/preact"); err != nil {
				t.Error(err)
			}
		})
	}
	wg.Wait()
	if n := next.calls.Load(); n != 1 {
		t.Errorf("fetched %d times, want 1", n)
	}
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	ctxErr  atomic.Value
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	<-f.release
	if err := ctx.Err(); err != nil {
		f.ctxErr.Store(err)
		return nil, err
	}
	return []byte(url), nil
}

func TestCachingFetcherCancelledCallerDoesNotFailOthers(t *testing.T) {
	next := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	f, err := NewCachingFetcher(next, 4)
	if err != nil {
		t.Fatal(err)
	}
	const url = "https://esm.sh/lit"

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, url)
		firstErr <- err
	}()
	<-next.started

	type result struct {
		body []byte
		err  error
	}
	second := make(chan result, 1)
	go func() {
		body, err := f.Fetch(context.Background(), url)
		second <- result{body, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("first caller: got %v, want context.Canceled", err)
	}
	close(next.release)

	got := <-second
	if got.err != nil {
		t.Fatalf("second caller failed: %v", got.err)
	}
	if string(got.body) != url {
		t.Errorf("unexpected body %q", got.body)
	}
	if err := next.ctxErr.Load(); err != nil {
		t.Errorf("shared fetch saw a cancelled context: %v", err)
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("fetched %d times, want 1", n)
	}
}

func TestCachingFetcherDoesNotCacheFailures(t *testing.T) {
	boom := &FetchError{URL: "https://example.com/x.js", StatusCode: 404}
	next := &countingFetcher{fail: map[string]error{"https://example.com/x.js": boom}}
	f, err := NewCachingFetcher(next, 4)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		_, err := f.Fetch(context.Background(), "https://example.com/x.js")
		var fe *FetchError
		if !errors.As(err, &fe) || !fe.IsNotFound() {
			t.Fatalf("expected a 404 FetchError, got %v", err)
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("fetched %d times, want 2", n)
	}
	if f.Len() != 0 {
		t.Errorf("cache holds %d entries after failures", f.Len())
	}
}

func TestCachingFetcherEvicts(t *testing.T) {
	next := &countingFetcher{}
	f, err := NewCachingFetcher(next, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, url := range []string{"https://a.test/1.js", "https://a.test/2.js", "https://a.test/3.js", "https://a.test/1.js"} {
		if _, err := f.Fetch(context.Background(), url); err != nil {
			t.Fatal(err)
		}
	}
	if n := next.calls.Load(); n != 4 {
		t.Errorf("fetched %d times, want 4 after eviction", n)
	}
	if f.Len() != 2 {
		t.Errorf("cache size %d, want 2", f.Len())
	}
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{URL: "https://a.test/x.js", StatusCode: 500, Message: "HTTP 500"}
	if got := err.Error(); got != "fetch https://a.test/x.js: HTTP 500" {
		t.Errorf("got %q", got)
	}
	err = &FetchError{URL: "https://a.test/x.js", Message: "connection refused"}
	if got := err.Error(); got != "fetch https://a.test/x.js: connection refused" {
		t.Errorf("got %q", got)
	}
}
