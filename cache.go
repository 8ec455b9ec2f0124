package willvault

import (
	"encoding/json"
	"sync"
	"time"

	localcache "github.com/everwill/willvault/cache"
	"github.com/everwill/willvault/schema"
)

const willCacheExp = 2 * time.Minute

// Cache holds hot read state: the fee quote and recently served will
// summaries. Will entries are invalidated on every mutation.
type Cache struct {
	fees  schema.RespFees
	lock  sync.RWMutex
	wills *localcache.Cache
}

func NewCache() *Cache {
	wills, err := localcache.NewLocalCache(willCacheExp)
	if err != nil {
		panic(err)
	}
	return &Cache{wills: wills}
}

func (c *Cache) GetFees() schema.RespFees {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.fees
}

func (c *Cache) UpdateFees(fees schema.RespFees) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.fees = fees
}

func (c *Cache) GetWill(owner string) (schema.RespWill, bool) {
	by, err := c.wills.Cache.Get(owner)
	if err != nil {
		return schema.RespWill{}, false
	}
	resp := schema.RespWill{}
	if err := json.Unmarshal(by, &resp); err != nil {
		return schema.RespWill{}, false
	}
	return resp, true
}

func (c *Cache) UpdateWill(resp schema.RespWill) {
	by, err := json.Marshal(&resp)
	if err != nil {
		return
	}
	_ = c.wills.Cache.Set(resp.Owner, by)
}

func (c *Cache) InvalidateWill(owner string) {
	_ = c.wills.Cache.Delete(owner)
}
