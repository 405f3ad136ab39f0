// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prices

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/penny-vault/twrr/common"
)

const DefaultCacheSize = 1024

// Cache holds provider responses for the lifetime of a single resolver run
type Cache struct {
	lru    *lru.Cache
	hits   int
	misses int
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func cacheKey(provider, symbol string, begin, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", provider, symbol, begin.Format(common.DateFormat), end.Format(common.DateFormat))
}

func (c *Cache) Get(provider, symbol string, begin, end time.Time) ([]Quote, bool) {
	if c == nil {
		return nil, false
	}
	if val, ok := c.lru.Get(cacheKey(provider, symbol, begin, end)); ok {
		c.hits++
		return val.([]Quote), true
	}
	c.misses++
	return nil, false
}

func (c *Cache) Add(provider, symbol string, begin, end time.Time, quotes []Quote) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(provider, symbol, begin, end), quotes)
}

// Stats returns the number of cache hits and misses
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	return c.hits, c.misses
}
