package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

func MysqlDialector(url, scheme, user, passwd string) gorm.Dialector {
	return mysql.Open(user + ":" + passwd + "@tcp(" + url + ")/" +
		scheme + "?charset=utf8&parseTime=True")
}

func SqliteDialector(path string) gorm.Dialector {
	return sqlite.Open(path)
}

func NewDao(dialector gorm.Dialector, debug bool) (*Dao, error) {
	Logger := logger.Default.LogMode(logger.Silent)
	if debug {
		Logger = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: Logger})
	if err != nil {
		return nil, err
	}
	err = db.AutoMigrate(&EventRecord{}, &SnapshotRecord{})
	if err != nil {
		return nil, err
	}
	return &Dao{db: db}, nil
}

func (dao *Dao) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (dao *Dao) SaveEvent(record *EventRecord) error {
	return dao.db.Create(record).Error
}

func (dao *Dao) SaveSnapshot(record *SnapshotRecord) error {
	return dao.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conduit"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema", "state", "updated_at"}),
	}).Create(record).Error
}

// SelectEvents returns the newest events first. An empty conduit selects all conduits.
func (dao *Dao) SelectEvents(conduit string, limit int) ([]*EventRecord, error) {
	events := make([]*EventRecord, 0)
	tx := dao.db.Order("seq desc")
	if conduit != "" {
		tx = tx.Where("conduit = ?", conduit)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	res := tx.Find(&events)
	return events, res.Error
}

func (dao *Dao) SelectSnapshot(conduit string) (*SnapshotRecord, error) {
	snapshot := &SnapshotRecord{}
	res := dao.db.Where("conduit = ?", conduit).Take(snapshot)
	if res.Error != nil {
		return nil, res.Error
	}
	return snapshot, nil
}

func (dao *Dao) SelectSnapshots() ([]*SnapshotRecord, error) {
	snapshots := make([]*SnapshotRecord, 0)
	res := dao.db.Order("conduit").Find(&snapshots)
	return snapshots, res.Error
}

func (dao *Dao) MaxSeq() (uint64, error) {
	var seq uint64
	res := dao.db.Model(&EventRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&seq)
	return seq, res.Error
}
