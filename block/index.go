package block

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type indexKey struct {
	tip    Hash
	height uint64
}

// HeightIndex caches ancestor lookups so repeated height queries against the
// same tip do not re-walk long parent chains. It never changes what
// BlockAtHeight would return, only how fast it returns.
type HeightIndex struct {
	cache *lru.Cache[indexKey, *Block]
}

// NewHeightIndex creates an index holding up to size cached resolutions.
func NewHeightIndex(size int) (*HeightIndex, error) {
	cache, err := lru.New[indexKey, *Block](size)
	if err != nil {
		return nil, err
	}
	return &HeightIndex{cache: cache}, nil
}

// BlockAtHeight resolves the ancestor of tip at height h, consulting cached
// resolutions along the walk and recording the result for next time.
func (ix *HeightIndex) BlockAtHeight(tip *Block, h uint64) (*Block, bool) {
	if tip == nil || h > tip.Height() {
		return nil, false
	}

	key := indexKey{tip: tip.Hash(), height: h}
	if cached, ok := ix.cache.Get(key); ok {
		return cached, true
	}

	cur := tip
	for cur.Height() > h {
		if hit, ok := ix.cache.Get(indexKey{tip: cur.Hash(), height: h}); ok {
			cur = hit
			break
		}
		cur = cur.Parent()
		if cur == nil {
			return nil, false
		}
	}
	if cur.Height() != h {
		return nil, false
	}

	ix.cache.Add(key, cur)
	return cur, true
}
