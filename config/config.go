package config

import (
	"sync"
	"time"

	"github.com/everwill/willvault/common"
	"github.com/everwill/willvault/config/schema"
	"github.com/go-co-op/gocron"
)

var log = common.NewLog("config")

// Config is the operator-editable runtime configuration backed by its own db:
// fee settings the engine applies through governance, the rate limit
// whitelist and tuning params. The refresh jobs keep the in-memory copies
// current.
type Config struct {
	wdb         *Wdb
	lock        sync.RWMutex
	feeCfg      schema.FeeConfig
	ipWhiteList map[string]struct{}
	Param       schema.Param
	scheduler   *gocron.Scheduler
}

func New(dsn string, sqliteDir string, useSqlite bool) *Config {
	wdb := NewWdb(dsn, sqliteDir, useSqlite)
	if err := wdb.Migrate(); err != nil {
		panic(err)
	}
	fee, err := wdb.GetFee()
	if err != nil {
		panic(err)
	}
	param, err := wdb.GetParam()
	if err != nil {
		panic(err)
	}
	return &Config{
		wdb:         wdb,
		feeCfg:      fee,
		ipWhiteList: make(map[string]struct{}),
		Param:       param,
		scheduler:   gocron.NewScheduler(time.UTC),
	}
}

func (c *Config) GetFeeConfig() schema.FeeConfig {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.feeCfg
}

func (c *Config) GetIPWhiteList() *map[string]struct{} {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return &c.ipWhiteList
}

func (c *Config) Run() {
	go c.runJobs()
}

func (c *Config) Close() {
	c.scheduler.Stop()
	c.wdb.Close()
}
