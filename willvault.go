package willvault

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/everFinance/goether"
	"github.com/everwill/willvault/config"
	"github.com/everwill/willvault/ledger"
	"github.com/everwill/willvault/schema"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/panjf2000/ants/v2"
)

// WillVault hosts the will engine: the source with its registry, the ledger
// backend, snapshot and record persistence, the HTTP API and the background
// jobs. It is the EventSink every committed snapshot and event flows through.
type WillVault struct {
	source *Source
	ledger ledger.Ledger
	store  *Store
	wdb    *Wdb
	engine *gin.Engine
	cache  *Cache
	config *config.Config

	scheduler *gocron.Scheduler
	kwriters  map[string]*KWriter
	eventPool *ants.PoolWithFunc

	govSigner *goether.Signer
	NoAuth    bool // if true, skip request signature verification; default false
}

func New(
	boltDirPath, mySqlDsn string, sqliteDir string, useSqlite bool,
	govKeyPath string, noAuth bool,
	useS3 bool, s3AccKey, s3SecretKey, s3BucketPrefix, s3Region, s3Endpoint string,
	useMongoDb bool, mongoDbUri string,
	useKafka bool, kafkaUri string,
) *WillVault {
	var err error
	store := &Store{}
	if useS3 {
		store, err = NewS3Store(s3AccKey, s3SecretKey, s3Region, s3BucketPrefix, s3Endpoint)
	} else if useMongoDb {
		store, err = NewMongoStore(context.Background(), mongoDbUri)
	} else {
		store, err = NewBoltStore(boltDirPath)
	}
	if err != nil {
		panic(err)
	}

	wdb := &Wdb{}
	if useSqlite {
		wdb = NewSqliteDb(sqliteDir)
	} else {
		wdb = NewMysqlDb(mySqlDsn)
	}
	if err = wdb.Migrate(); err != nil {
		panic(err)
	}

	keyData, err := os.ReadFile(govKeyPath)
	if err != nil {
		panic(err)
	}
	govSigner, err := goether.NewSigner(strings.TrimSpace(string(keyData)))
	if err != nil {
		panic(err)
	}

	l := ledger.NewMemLedger()
	source := NewSource(govSigner.Address, l, SingleOwnerPolicy{Owner: govSigner.Address}, nil)

	w := &WillVault{
		source:    source,
		ledger:    l,
		store:     store,
		wdb:       wdb,
		engine:    gin.Default(),
		cache:     NewCache(),
		config:    config.New(mySqlDsn, sqliteDir, useSqlite),
		scheduler: gocron.NewScheduler(time.UTC),
		govSigner: govSigner,
		NoAuth:    noAuth,
	}

	if useKafka {
		w.kwriters, err = NewKWriters(kafkaUri)
		if err != nil {
			panic(err)
		}
	}
	fanout := w.config.Param.EventFanoutNum
	if fanout <= 0 {
		fanout = 10
	}
	w.eventPool, err = ants.NewPoolWithFunc(fanout, w.publishEvent)
	if err != nil {
		panic(err)
	}

	source.SetSink(w)
	w.applyFeeConfig()

	// replay live wills from the snapshot bucket
	snaps, err := store.LoadAllWillSnapshots()
	if err != nil {
		panic(err)
	}
	for _, snap := range snaps {
		if err := source.RestoreWill(snap); err != nil {
			log.Error("restore will failed", "owner", snap.Owner, "err", err)
		}
	}
	log.Info("wills restored", "num", len(snaps))
	return w
}

func (s *WillVault) Run(port string) {
	s.config.Run()
	go s.runAPI(port)
	go s.runJobs()
}

func (s *WillVault) Close() {
	s.scheduler.Stop()
	s.eventPool.Release()
	for _, kw := range s.kwriters {
		kw.Close()
	}
	s.config.Close()
	s.wdb.Close()
	if err := s.store.Close(); err != nil {
		log.Error("close store failed", "err", err)
	}
	log.Info("willvault closed")
}

// SaveWill implements EventSink.
func (s *WillVault) SaveWill(snap schema.WillSnapshot) {
	if err := s.store.SaveWillSnapshot(snap); err != nil {
		log.Error("save will snapshot failed", "owner", snap.Owner, "err", err)
	}
	rec, err := recordFromSnapshot(snap)
	if err != nil {
		log.Error("build will record failed", "owner", snap.Owner, "err", err)
		return
	}
	if err := s.wdb.SaveWillRecord(rec); err != nil {
		log.Error("save will record failed", "owner", snap.Owner, "err", err)
	}
	s.cache.InvalidateWill(snap.Owner)
}

// DropWill implements EventSink. The registry entry is gone; the snapshot is
// removed and the record row flips to the terminal state for indexing.
func (s *WillVault) DropWill(owner, willAddr string) {
	if err := s.store.DelWillSnapshot(owner); err != nil {
		log.Error("del will snapshot failed", "owner", owner, "err", err)
	}
	if err := s.wdb.UpdateWillState(willAddr, schema.WillExecuted); err != nil {
		log.Error("update will record state failed", "willAddr", willAddr, "err", err)
	}
	s.cache.InvalidateWill(owner)
}

// SaveEvent implements EventSink.
func (s *WillVault) SaveEvent(ev schema.WillEvent) {
	if err := s.wdb.InsertEvent(ev); err != nil {
		log.Error("insert event failed", "eventId", ev.EventId, "err", err)
	}
	if s.kwriters != nil {
		if err := s.eventPool.Invoke(ev); err != nil {
			log.Error("event fanout failed", "eventId", ev.EventId, "err", err)
		}
	}
}

func (s *WillVault) publishEvent(i interface{}) {
	ev, ok := i.(schema.WillEvent)
	if !ok {
		return
	}
	by, err := json.Marshal(&ev)
	if err != nil {
		return
	}
	kw, ok := s.kwriters[EventTopic]
	if !ok {
		return
	}
	if err := kw.Write(by); err != nil {
		log.Error("publish event to kafka failed", "eventId", ev.EventId, "err", err)
	}
}

// applyFeeConfig pushes the operator fee settings into the source through the
// governance account. Unchanged values are skipped so the event log only
// carries real changes.
func (s *WillVault) applyFeeConfig() {
	cfg := s.config.GetFeeConfig()
	cur := s.source.Fees()
	gov := s.govSigner.Address

	if cfg.BaseFee != "" && cfg.BaseFee != cur.BaseFee {
		if fee, err := parseAmount(cfg.BaseFee); err == nil {
			if err := s.source.SetBaseFee(gov, fee); err != nil {
				log.Error("apply base fee failed", "err", err)
			}
		}
	}
	if cfg.DiaryFee != "" && cfg.DiaryFee != cur.DiaryFee {
		if fee, err := parseAmount(cfg.DiaryFee); err == nil {
			if err := s.source.SetDiaryFee(gov, fee); err != nil {
				log.Error("apply diary fee failed", "err", err)
			}
		}
	}
	if cfg.TerminationFee != "" && cfg.TerminationFee != cur.TerminationFee {
		if fee, err := parseAmount(cfg.TerminationFee); err == nil {
			if err := s.source.SetTerminationFee(gov, fee); err != nil {
				log.Error("apply termination fee failed", "err", err)
			}
		}
	}
	if cfg.ExecutorAddr != "" && !strings.EqualFold(cfg.ExecutorAddr, cur.ExecutorAddr) {
		if err := s.source.SetExecutorAddr(gov, common.HexToAddress(cfg.ExecutorAddr)); err != nil {
			log.Error("apply executor addr failed", "err", err)
		}
	}
}

func parseAmount(amt string) (*big.Int, error) {
	if amt == "" {
		return big.NewInt(0), nil
	}
	val, ok := new(big.Int).SetString(amt, 10)
	if !ok || val.Sign() < 0 {
		return nil, schema.ErrBadAmount
	}
	return val, nil
}

func recordFromSnapshot(snap schema.WillSnapshot) (schema.WillRecord, error) {
	heirs, err := json.Marshal(snap.Heirs)
	if err != nil {
		return schema.WillRecord{}, err
	}
	percentages, err := json.Marshal(snap.Percentages)
	if err != nil {
		return schema.WillRecord{}, err
	}
	tokens, err := json.Marshal(snap.Tokens)
	if err != nil {
		return schema.WillRecord{}, err
	}
	nfts, err := json.Marshal(snap.NFTs)
	if err != nil {
		return schema.WillRecord{}, err
	}
	return schema.WillRecord{
		WillAddr:     snap.Addr,
		Owner:        snap.Owner,
		State:        snap.State,
		Diary:        snap.Diary,
		Interval:     snap.Interval,
		LastActivity: snap.LastActivity,
		GraceEnd:     snap.LastActivity + snap.Interval,
		ExecutorAddr: snap.ExecutorAddr,
		FeeBps:       snap.FeeBps,
		Heirs:        heirs,
		Percentages:  percentages,
		Tokens:       tokens,
		NFTs:         nfts,
	}, nil
}
