package entitlement

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 4096

// localCache keeps per-identity expiry timestamps close to the process:
// an LRU in front of a JSON snapshot file that survives restarts.
// Stale entries are superseded on the next grant, never deleted.
type localCache struct {
	mu   sync.Mutex
	hot  *lru.Cache[int64, int64]
	path string
	disk map[int64]int64
}

func newLocalCache(path string) (*localCache, error) {
	hot, err := lru.New[int64, int64](cacheSize)
	if err != nil {
		return nil, err
	}

	c := &localCache{hot: hot, path: path, disk: make(map[int64]int64)}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.disk); err != nil {
		// Corrupt snapshot is not fatal; start cold.
		c.disk = make(map[int64]int64)
		return c, nil
	}
	for id, exp := range c.disk {
		c.hot.Add(id, exp)
	}
	return c, nil
}

func (c *localCache) get(identityID int64) (int64, bool) {
	if exp, ok := c.hot.Get(identityID); ok {
		return exp, true
	}
	c.mu.Lock()
	exp, ok := c.disk[identityID]
	c.mu.Unlock()
	if ok {
		c.hot.Add(identityID, exp)
	}
	return exp, ok
}

func (c *localCache) put(identityID, expiresAt int64) error {
	c.hot.Add(identityID, expiresAt)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.disk[identityID] = expiresAt
	return c.flushLocked()
}

// flushLocked writes the snapshot atomically (temp file + rename).
func (c *localCache) flushLocked() error {
	if c.path == "" {
		return nil
	}
	data, err := json.Marshal(c.disk)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
