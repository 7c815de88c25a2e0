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

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of sources CachingFetcher keeps.
const DefaultCacheSize = 512

// CachingFetcher keeps recently fetched sources in an LRU cache and makes
// concurrent requests for the same URL share one fetch.
type CachingFetcher struct {
	next  Fetcher
	cache *lru.Cache[string, []byte]
	group singleflight.Group
}

// NewCachingFetcher wraps next. A size of zero means DefaultCacheSize.
func NewCachingFetcher(next Fetcher, size int) (*CachingFetcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingFetcher{next: next, cache: cache}, nil
}

// Fetch returns the cached body of url or fetches it. Failures are not
// cached. The shared fetch outlives the caller that started it, so a
// cancelled caller returns early without failing the others waiting on
// the same URL.
func (f *CachingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := f.cache.Get(url); ok {
		return body, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(url, func() (any, error) {
		if body, ok := f.cache.Get(url); ok {
			return body, nil
		}
		body, err := f.next.Fetch(shared, url)
		if err != nil {
			return nil, err
		}
		f.cache.Add(url, body)
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Len returns the number of cached sources.
func (f *CachingFetcher) Len() int {
	return f.cache.Len()
}
