package config

import (
	"path"

	"github.com/everwill/willvault/config/schema"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteName = "willvault-config.sqlite"

type Wdb struct {
	Db *gorm.DB
}

func NewWdb(dsn string, sqliteDir string, useSqlite bool) *Wdb {
	var db *gorm.DB
	var err error
	if useSqlite {
		db, err = gorm.Open(sqlite.Open(path.Join(sqliteDir, sqliteName)), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
	} else {
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Error),
			CreateBatchSize: 10,
		})
	}
	if err != nil {
		panic(err)
	}
	log.Info("connect config db success")
	return &Wdb{Db: db}
}

func (w *Wdb) Migrate() error {
	return w.Db.AutoMigrate(&schema.FeeConfig{}, &schema.IpRateWhitelist{}, &schema.Param{})
}

func (w *Wdb) GetFee() (fee schema.FeeConfig, err error) {
	err = w.Db.First(&fee).Error
	if err == gorm.ErrRecordNotFound {
		fee = schema.FeeConfig{
			BaseFee:        "0",
			DiaryFee:       "0",
			TerminationFee: "0",
		}
		return fee, nil
	}
	return
}

func (w *Wdb) GetAllAvailableIpRateWhitelist() (ips []schema.IpRateWhitelist, err error) {
	err = w.Db.Model(&schema.IpRateWhitelist{}).Where("available = ?", true).Find(&ips).Error
	return
}

func (w *Wdb) GetParam() (param schema.Param, err error) {
	err = w.Db.First(&param).Error
	if err == gorm.ErrRecordNotFound {
		param = schema.Param{
			EventFanoutNum: 10,
		}
		return param, nil
	}
	return
}

func (w *Wdb) Close() {
	sql, err := w.Db.DB()
	if err == nil {
		sql.Close()
	}
}
