package willvault

import (
	"testing"
	"time"

	"github.com/everwill/willvault/schema"
	"github.com/stretchr/testify/assert"
)

func testWdb(t *testing.T) *Wdb {
	db := NewSqliteDb(t.TempDir())
	err := db.Migrate()
	assert.NoError(t, err)
	return db
}

func TestSaveWillRecordUpsert(t *testing.T) {
	db := testWdb(t)
	defer db.Close()

	rec := schema.WillRecord{
		WillAddr: "0xwill1",
		Owner:    "0xowner1",
		State:    schema.WillEmpty,
	}
	assert.NoError(t, db.SaveWillRecord(rec))

	rec.State = schema.WillActive
	rec.Interval = 3600
	assert.NoError(t, db.SaveWillRecord(rec))

	got, err := db.GetWillRecord("0xowner1")
	assert.NoError(t, err)
	assert.Equal(t, schema.WillActive, got.State)
	assert.Equal(t, int64(3600), got.Interval)

	byAddr, err := db.GetWillRecordByAddr("0xwill1")
	assert.NoError(t, err)
	assert.Equal(t, got.ID, byAddr.ID)

	assert.NoError(t, db.UpdateWillState("0xwill1", schema.WillExecuted))
	got, err = db.GetWillRecord("0xowner1")
	assert.NoError(t, err)
	assert.Equal(t, schema.WillExecuted, got.State)
}

func TestGetWillRecordsByState(t *testing.T) {
	db := testWdb(t)
	defer db.Close()

	assert.NoError(t, db.SaveWillRecord(schema.WillRecord{WillAddr: "0x1", Owner: "0xa", State: schema.WillActive}))
	assert.NoError(t, db.SaveWillRecord(schema.WillRecord{WillAddr: "0x2", Owner: "0xb", State: schema.WillActive}))
	assert.NoError(t, db.SaveWillRecord(schema.WillRecord{WillAddr: "0x3", Owner: "0xc", State: schema.WillEmpty}))

	recs, err := db.GetWillRecords(schema.WillActive, 10, 0)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = db.GetWillRecords("", 10, 0)
	assert.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = db.GetWillRecords("", 2, 0)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestInsertEventDedupe(t *testing.T) {
	db := testWdb(t)
	defer db.Close()

	ev := schema.WillEvent{
		EventId:   "uuid-1",
		EventType: schema.EventPing,
		Owner:     "0xowner1",
		WillAddr:  "0xwill1",
		Caller:    "0xowner1",
	}
	assert.NoError(t, db.InsertEvent(ev))
	assert.NoError(t, db.InsertEvent(ev)) // same eventId, silently dropped

	evs, err := db.GetEvents("0xowner1", 10, 0)
	assert.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestCountEvents(t *testing.T) {
	db := testWdb(t)
	defer db.Close()

	assert.NoError(t, db.InsertEvent(schema.WillEvent{EventId: "u1", EventType: schema.EventWillCreated, Owner: "0xa"}))
	assert.NoError(t, db.InsertEvent(schema.WillEvent{EventId: "u2", EventType: schema.EventWillCreated, Owner: "0xb"}))
	assert.NoError(t, db.InsertEvent(schema.WillEvent{EventId: "u3", EventType: schema.EventExecuted, Owner: "0xa"}))

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	counts, err := db.CountEvents(start, end)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), counts[schema.EventWillCreated])
	assert.Equal(t, int64(1), counts[schema.EventExecuted])

	counts, err = db.CountEvents(end, end.Add(time.Hour))
	assert.NoError(t, err)
	assert.Len(t, counts, 0)
}

func TestStatisticUpsert(t *testing.T) {
	db := testWdb(t)
	defer db.Close()

	date := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, db.SaveStatistic(schema.WillStatistic{Date: date, Created: 3, Active: 2}))
	assert.NoError(t, db.SaveStatistic(schema.WillStatistic{Date: date, Created: 5, Active: 4, Executed: 1}))

	sts, err := db.GetStatistics(date, date.AddDate(0, 0, 1))
	assert.NoError(t, err)
	assert.Len(t, sts, 1)
	assert.Equal(t, int64(5), sts[0].Created)
	assert.Equal(t, int64(4), sts[0].Active)
	assert.Equal(t, int64(1), sts[0].Executed)
}
