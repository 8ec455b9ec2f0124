package willvault

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/everwill/willvault/ledger"
	"github.com/everwill/willvault/schema"
	"github.com/stretchr/testify/assert"
)

func TestOneWillPerOwner(t *testing.T) {
	env := newTestEnv()
	env.ledger.MintNative(ownerAddr, amt(1000))

	_, err := env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA},
		Percentages: []int{100},
		Payment:     amt(100),
	})
	assert.NoError(t, err)

	_, err = env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirB},
		Percentages: []int{100},
		Payment:     amt(100),
	})
	assert.ErrorIs(t, err, schema.ErrWillExist)
}

func TestWithdrawFeesSplit(t *testing.T) {
	l := ledger.NewMemLedger()
	recipientA := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	recipientB := common.HexToAddress("0x0000000000000000000000000000000000000a02")
	s := NewSource(govAddr, l, SingleOwnerPolicy{Owner: govAddr}, []FeeSplit{
		{Recipient: recipientA, Percent: 90},
		{Recipient: recipientB, Percent: 10},
	})

	l.MintNative(govAddr, amt(101))
	_, err := s.WithdrawFees(strangerAddr)
	assert.ErrorIs(t, err, schema.ErrNotGovernor)

	amounts, err := s.WithdrawFees(govAddr)
	assert.NoError(t, err)
	// 90% floors to 90, the last recipient absorbs the remainder
	assert.Equal(t, amt(90), amounts[0])
	assert.Equal(t, amt(11), amounts[1])
	assert.Equal(t, amt(90), l.NativeBalance(recipientA))
	assert.Equal(t, amt(11), l.NativeBalance(recipientB))
	assert.Equal(t, amt(0), l.NativeBalance(govAddr))
}

func TestBadFeeSplitPanics(t *testing.T) {
	l := ledger.NewMemLedger()
	assert.Panics(t, func() {
		NewSource(govAddr, l, SingleOwnerPolicy{Owner: govAddr}, []FeeSplit{
			{Recipient: govAddr, Percent: 90},
		})
	})
}

func TestGovernanceSetters(t *testing.T) {
	env := newTestEnv()

	assert.ErrorIs(t, env.source.SetBaseFee(strangerAddr, amt(10)), schema.ErrNotGovernor)
	assert.ErrorIs(t, env.source.SetBaseFee(govAddr, amt(-1)), schema.ErrBadAmount)
	assert.ErrorIs(t, env.source.SetBaseFee(govAddr, nil), schema.ErrBadAmount)

	assert.NoError(t, env.source.SetBaseFee(govAddr, amt(10)))
	assert.NoError(t, env.source.SetDiaryFee(govAddr, amt(20)))
	assert.NoError(t, env.source.SetTerminationFee(govAddr, amt(5)))
	assert.NoError(t, env.source.SetExecutorAddr(govAddr, executorAddr))

	fees := env.source.Fees()
	assert.Equal(t, "10", fees.BaseFee)
	assert.Equal(t, "20", fees.DiaryFee)
	assert.Equal(t, "5", fees.TerminationFee)
	assert.Equal(t, int64(schema.ExecFeeBps), fees.ExecFeeBps)
	assert.Equal(t, executorAddr.Hex(), fees.ExecutorAddr)
}

func TestDiaryFeeApplied(t *testing.T) {
	env := newTestEnv()
	assert.NoError(t, env.source.SetBaseFee(govAddr, amt(10)))
	assert.NoError(t, env.source.SetDiaryFee(govAddr, amt(50)))
	env.ledger.MintNative(ownerAddr, amt(100))

	_, err := env.source.CreateWill(ownerAddr, CreateParams{
		Payment: amt(40),
		Diary:   true,
	})
	assert.ErrorIs(t, err, schema.ErrInsufficientFee)

	w, err := env.source.CreateWill(ownerAddr, CreateParams{
		Payment: amt(60),
		Diary:   true,
	})
	assert.NoError(t, err)
	assert.Equal(t, amt(50), env.ledger.NativeBalance(govAddr))
	assert.Equal(t, amt(10), env.ledger.NativeBalance(w.Addr()))
}

func TestExecutorSnapshotImmutable(t *testing.T) {
	env := newTestEnv()
	assert.NoError(t, env.source.SetExecutorAddr(govAddr, executorAddr))
	env.ledger.MintNative(ownerAddr, amt(1000))

	_, err := env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA},
		Percentages: []int{100},
		Interval:    3600,
		Payment:     amt(1000),
	})
	assert.NoError(t, err)

	// change the default afterwards, the deployed will keeps its snapshot
	newExecutor := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	assert.NoError(t, env.source.SetExecutorAddr(govAddr, newExecutor))

	env.advance(3600 + 10)
	_, _, err = env.source.ExecuteWill(newExecutor, ownerAddr)
	assert.ErrorIs(t, err, schema.ErrExecutorOnly)
	_, _, err = env.source.ExecuteWill(executorAddr, ownerAddr)
	assert.NoError(t, err)
}

func TestClearWillRecordAuth(t *testing.T) {
	env := newTestEnv()
	env.ledger.MintNative(ownerAddr, amt(100))

	_, err := env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA},
		Percentages: []int{100},
		Payment:     amt(100),
	})
	assert.NoError(t, err)

	// only the registered will itself may deregister
	assert.ErrorIs(t, env.source.ClearWillRecord(strangerAddr, ownerAddr), schema.ErrNotRegisteredWill)
	assert.ErrorIs(t, env.source.ClearWillRecord(ownerAddr, ownerAddr), schema.ErrNotRegisteredWill)

	_, err = env.source.WillOf(ownerAddr)
	assert.NoError(t, err)
}

func TestTwoPartyPolicy(t *testing.T) {
	a1 := common.HexToAddress("0x0000000000000000000000000000000000000101")
	a2 := common.HexToAddress("0x0000000000000000000000000000000000000102")
	b1 := common.HexToAddress("0x0000000000000000000000000000000000000103")
	b2 := common.HexToAddress("0x0000000000000000000000000000000000000104")
	policy := TwoPartyPolicy{APrimary: a1, ASecondary: a2, BPrimary: b1, BSecondary: b2}

	assert.True(t, policy.Authorized(a1))
	assert.True(t, policy.Authorized(a2))
	assert.True(t, policy.Authorized(b1))
	assert.True(t, policy.Authorized(b2))
	assert.False(t, policy.Authorized(strangerAddr))
}

func TestRestoreWill(t *testing.T) {
	env := newTestEnv()
	env.ledger.MintNative(ownerAddr, amt(1000))

	w, err := env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA, heirB},
		Percentages: []int{60, 40},
		Interval:    3600,
		Payment:     amt(1000),
	})
	assert.NoError(t, err)
	snap := w.Snapshot()

	// boot a fresh source over the same ledger
	restored := NewSource(govAddr, env.ledger, SingleOwnerPolicy{Owner: govAddr}, nil)
	restored.SetClock(func() int64 { return env.now })
	assert.NoError(t, restored.RestoreWill(snap))

	got, err := restored.WillOf(ownerAddr)
	assert.NoError(t, err)
	assert.Equal(t, w.Addr(), got.Addr())
	assert.Equal(t, schema.WillActive, got.State())
	assert.Equal(t, int64(3600), got.Interval())

	assert.ErrorIs(t, restored.RestoreWill(snap), schema.ErrWillExist)

	// executed snapshots never come back
	executed := snap
	executed.Owner = strangerAddr.Hex()
	executed.State = schema.WillExecuted
	assert.NoError(t, restored.RestoreWill(executed))
	_, err = restored.WillOf(strangerAddr)
	assert.ErrorIs(t, err, schema.ErrNotExist)

	// and the restored will still distributes
	env.advance(3600 + schema.DefaultExecutorWindow)
	_, _, err = restored.ExecuteWill(strangerAddr, ownerAddr)
	assert.NoError(t, err)
	assert.Equal(t, amt(597), env.ledger.NativeBalance(heirA))
	assert.Equal(t, amt(398), env.ledger.NativeBalance(heirB))
}

type recordingSink struct {
	saved   []schema.WillSnapshot
	dropped []string
	events  []schema.WillEvent
}

func (r *recordingSink) SaveWill(snap schema.WillSnapshot) { r.saved = append(r.saved, snap) }
func (r *recordingSink) DropWill(owner, willAddr string)   { r.dropped = append(r.dropped, owner) }
func (r *recordingSink) SaveEvent(ev schema.WillEvent)     { r.events = append(r.events, ev) }

func (r *recordingSink) eventTypes() []string {
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.EventType)
	}
	return types
}

func TestEventSinkFlow(t *testing.T) {
	env := newTestEnv()
	sink := &recordingSink{}
	env.source.SetSink(sink)
	env.ledger.MintNative(ownerAddr, amt(10000))

	_, err := env.source.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA},
		Percentages: []int{100},
		Interval:    3600,
		Payment:     amt(10000),
	})
	assert.NoError(t, err)
	assert.NoError(t, env.source.PingWill(ownerAddr, ownerAddr))

	env.advance(3600 + schema.DefaultExecutorWindow)
	_, _, err = env.source.ExecuteWill(strangerAddr, ownerAddr)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		schema.EventConfigured,
		schema.EventWillCreated,
		schema.EventPing,
		schema.EventWillCleared,
		schema.EventExecuted,
	}, sink.eventTypes())
	assert.Equal(t, []string{ownerAddr.Hex()}, sink.dropped)

	execEv := sink.events[len(sink.events)-1]
	assert.Equal(t, strangerAddr.Hex(), execEv.Caller)
	assert.Equal(t, "50", execEv.FeeAmount)
	assert.Equal(t, strangerAddr.Hex(), execEv.FeeRecipient)

	// every mutation committed a snapshot while the will was live
	assert.NotEmpty(t, sink.saved)
	last := sink.saved[len(sink.saved)-1]
	assert.Equal(t, schema.WillActive, last.State)
}

func (r *recordingSink) eventOfType(eventType string) (schema.WillEvent, bool) {
	for _, ev := range r.events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return schema.WillEvent{}, false
}

func TestEventBodies(t *testing.T) {
	recipientA := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	recipientB := common.HexToAddress("0x0000000000000000000000000000000000000a02")
	l := ledger.NewMemLedger()
	s := NewSource(govAddr, l, SingleOwnerPolicy{Owner: govAddr}, []FeeSplit{
		{Recipient: recipientA, Percent: 90},
		{Recipient: recipientB, Percent: 10},
	})
	now := int64(1000)
	s.SetClock(func() int64 { return now })
	sink := &recordingSink{}
	s.SetSink(sink)
	l.MintNative(ownerAddr, amt(1000))

	_, err := s.CreateWill(ownerAddr, CreateParams{
		Heirs:       []common.Address{heirA},
		Percentages: []int{100},
		Interval:    3600,
		Payment:     amt(1000),
		Diary:       true,
	})
	assert.NoError(t, err)

	created, ok := sink.eventOfType(schema.EventWillCreated)
	assert.True(t, ok)
	createdBody := schema.WillCreatedBody{}
	assert.NoError(t, json.Unmarshal(created.Body, &createdBody))
	assert.True(t, createdBody.HasDeferredMode)

	now += 600
	assert.NoError(t, s.PingWill(ownerAddr, ownerAddr))
	ping, ok := sink.eventOfType(schema.EventPing)
	assert.True(t, ok)
	pingBody := schema.PingBody{}
	assert.NoError(t, json.Unmarshal(ping.Body, &pingBody))
	assert.Equal(t, int64(1600), pingBody.NewTimestamp)

	l.MintNative(govAddr, amt(101))
	_, err = s.WithdrawFees(govAddr)
	assert.NoError(t, err)
	withdrawn, ok := sink.eventOfType(schema.EventFeesWithdrawn)
	assert.True(t, ok)
	withdrawnBody := schema.FeesWithdrawnBody{}
	assert.NoError(t, json.Unmarshal(withdrawn.Body, &withdrawnBody))
	assert.Equal(t, []string{recipientA.Hex(), recipientB.Hex()}, withdrawnBody.Recipients)
	assert.Equal(t, []string{"90", "11"}, withdrawnBody.Amounts)
}

func TestFeesConcurrentWithSetters(t *testing.T) {
	env := newTestEnv()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, env.source.SetBaseFee(govAddr, amt(int64(j))))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = env.source.Fees()
			}
		}()
	}
	wg.Wait()

	fees := env.source.Fees()
	assert.Equal(t, "49", fees.BaseFee)
}
