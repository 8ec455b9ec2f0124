package willvault

import (
	"path"
	"time"

	"github.com/everwill/willvault/schema"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sqliteName = "willvault.sqlite"

type Wdb struct {
	Db *gorm.DB
}

func NewMysqlDb(dsn string) *Wdb {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:          logger.Default.LogMode(logger.Error),
		CreateBatchSize: 200,
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect mysql db success")
	return &Wdb{Db: db}
}

func NewSqliteDb(dbDir string) *Wdb {
	db, err := gorm.Open(sqlite.Open(path.Join(dbDir, sqliteName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		panic(err)
	}
	log.Info("connect sqlite db success")
	return &Wdb{Db: db}
}

func (w *Wdb) Migrate() error {
	return w.Db.AutoMigrate(&schema.WillRecord{}, &schema.WillEvent{}, &schema.WillStatistic{})
}

func (w *Wdb) SaveWillRecord(rec schema.WillRecord) error {
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "will_addr"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func (w *Wdb) GetWillRecord(owner string) (rec schema.WillRecord, err error) {
	err = w.Db.Where("owner = ?", owner).Order("id desc").First(&rec).Error
	return
}

func (w *Wdb) GetWillRecordByAddr(willAddr string) (rec schema.WillRecord, err error) {
	err = w.Db.Where("will_addr = ?", willAddr).First(&rec).Error
	return
}

func (w *Wdb) UpdateWillState(willAddr, state string) error {
	return w.Db.Model(&schema.WillRecord{}).Where("will_addr = ?", willAddr).Update("state", state).Error
}

func (w *Wdb) GetWillRecords(state string, limit, offset int) ([]schema.WillRecord, error) {
	recs := make([]schema.WillRecord, 0, limit)
	tx := w.Db.Model(&schema.WillRecord{})
	if state != "" {
		tx = tx.Where("state = ?", state)
	}
	err := tx.Order("id desc").Limit(limit).Offset(offset).Find(&recs).Error
	return recs, err
}

func (w *Wdb) InsertEvent(ev schema.WillEvent) error {
	return w.Db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ev).Error
}

func (w *Wdb) GetEvents(owner string, limit, offset int) ([]schema.WillEvent, error) {
	evs := make([]schema.WillEvent, 0, limit)
	err := w.Db.Where("owner = ?", owner).Order("id desc").Limit(limit).Offset(offset).Find(&evs).Error
	return evs, err
}

func (w *Wdb) GetEventsByType(eventType string, limit, offset int) ([]schema.WillEvent, error) {
	evs := make([]schema.WillEvent, 0, limit)
	err := w.Db.Where("event_type = ?", eventType).Order("id desc").Limit(limit).Offset(offset).Find(&evs).Error
	return evs, err
}

// CountEvents groups events created in [start, end) by type.
func (w *Wdb) CountEvents(start, end time.Time) (map[string]int64, error) {
	type row struct {
		EventType string
		Num       int64
	}
	rows := make([]row, 0)
	err := w.Db.Model(&schema.WillEvent{}).
		Select("event_type, count(1) as num").
		Where("created_at >= ? and created_at < ?", start, end).
		Group("event_type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make(map[string]int64, len(rows))
	for _, r := range rows {
		res[r.EventType] = r.Num
	}
	return res, nil
}

func (w *Wdb) SaveStatistic(st schema.WillStatistic) error {
	return w.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		UpdateAll: true,
	}).Create(&st).Error
}

func (w *Wdb) GetStatistics(start, end time.Time) ([]schema.WillStatistic, error) {
	res := make([]schema.WillStatistic, 0, 31)
	err := w.Db.Where("date >= ? and date < ?", start, end).Order("date asc").Find(&res).Error
	return res, err
}

func (w *Wdb) Close() {
	sql, err := w.Db.DB()
	if err == nil {
		sql.Close()
	}
}
