package willvault

import (
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	wvcommon "github.com/everwill/willvault/common"
	"github.com/everwill/willvault/schema"
	"github.com/panjf2000/ants/v2"
)

func (s *WillVault) runJobs() {
	wvcommon.NewMetricServer()

	s.scheduler.Every(1).Minute().SingletonMode().Do(s.updateMetrics)
	s.scheduler.Every(30).Seconds().SingletonMode().Do(s.refreshFees)
	s.scheduler.Every(1).Minute().SingletonMode().Do(s.executeDueWills)
	s.scheduler.Every(1).Day().At("00:01").SingletonMode().Do(s.rollupStatistic)

	s.scheduler.StartAsync()
}

func (s *WillVault) updateMetrics() {
	counts := map[string]int64{
		schema.WillEmpty:  0,
		schema.WillActive: 0,
	}
	escrowed := new(big.Int)
	for _, w := range s.source.Wills() {
		counts[w.State()]++
		escrowed.Add(escrowed, s.ledger.NativeBalance(w.Addr()))
	}
	metricWillsByState(counts)
	metricEscrowedNative(escrowed)
	metricSourceBalance(s.ledger.NativeBalance(s.source.Account()))
}

func (s *WillVault) refreshFees() {
	s.applyFeeConfig()
	s.cache.UpdateFees(s.source.Fees())
}

// executeDueWills runs the hosted executor: every will past its grace end
// that this node may execute gets executed. Inside the executor window that
// means the will's executor snapshot is this node's governance account; once
// the window has elapsed any caller qualifies.
func (s *WillVault) executeDueWills() {
	executor := s.govSigner.Address
	now := s.source.Now()
	due := make([]common.Address, 0)
	for _, w := range s.source.Wills() {
		if !dueForExecutor(w, executor, now) {
			continue
		}
		due = append(due, w.Owner())
	}
	if len(due) == 0 {
		return
	}

	var wg sync.WaitGroup
	p, _ := ants.NewPoolWithFunc(10, func(i interface{}) {
		defer wg.Done()
		owner := i.(common.Address)
		if _, _, err := s.source.ExecuteWill(executor, owner); err != nil {
			log.Warn("execute due will failed", "owner", owner.Hex(), "err", err)
			return
		}
		log.Info("executed due will", "owner", owner.Hex())
	})
	defer p.Release()

	for _, owner := range due {
		wg.Add(1)
		_ = p.Invoke(owner)
	}
	wg.Wait()
}

// dueForExecutor reports whether executor can run w's distribution now.
func dueForExecutor(w *Will, executor common.Address, now int64) bool {
	if w.State() != schema.WillActive {
		return false
	}
	if now < w.GraceEnd() {
		return false
	}
	if now < w.GraceEnd()+w.ExecutorWindow() && w.ExecutorAddr() != executor {
		return false
	}
	return true
}

// rollupStatistic upserts yesterday's per-day counters and publishes them to
// the statistic topic when kafka is enabled.
func (s *WillVault) rollupStatistic() {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -1)
	counts, err := s.wdb.CountEvents(start, end)
	if err != nil {
		log.Error("count events failed", "err", err)
		return
	}
	active := int64(0)
	for _, w := range s.source.Wills() {
		if w.State() == schema.WillActive {
			active++
		}
	}
	st := schema.WillStatistic{
		Date:     start,
		Created:  counts[schema.EventWillCreated],
		Executed: counts[schema.EventExecuted],
		Canceled: counts[schema.EventCancelled],
		Active:   active,
	}
	if err := s.wdb.SaveStatistic(st); err != nil {
		log.Error("save statistic failed", "err", err)
		return
	}
	if kw, ok := s.kwriters[StatsTopic]; ok {
		by, err := json.Marshal(&st)
		if err != nil {
			return
		}
		if err := kw.Write(by); err != nil {
			log.Error("publish statistic to kafka failed", "err", err)
		}
	}
}
