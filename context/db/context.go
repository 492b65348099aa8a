package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDBPath    = "./sqlite.db"
	defaultPartition = "default"
)

// DBKey represents an interned key
type DBKey struct {
	gorm.Model
	Partition string `gorm:"column:partition_name;not null;uniqueIndex:idx_key_name;uniqueIndex:idx_key_id;size:255"`
	Name      []byte `gorm:"column:key_name;type:blob;not null;uniqueIndex:idx_key_name"`
	KeyID     int32  `gorm:"column:key_id;not null;uniqueIndex:idx_key_id"`
}

// TableName specifies the table name for DBKey
func (DBKey) TableName() string {
	return "keys"
}

// DBObject represents a container. ParentID/KeyID locate it inside its parent.
type DBObject struct {
	gorm.Model
	Partition string `gorm:"column:partition_name;not null;uniqueIndex:idx_object;index:idx_object_parent;size:255"`
	ObjectID  int32  `gorm:"column:object_id;not null;uniqueIndex:idx_object"`
	ParentID  int32  `gorm:"column:parent_id;not null;index:idx_object_parent"`
	KeyID     int32  `gorm:"column:key_id;not null;index:idx_object_parent"`
	TypeID    int32  `gorm:"column:type_id;not null"`
}

// TableName specifies the table name for DBObject
func (DBObject) TableName() string {
	return "objects"
}

// DBSlot represents a value stored in an object
type DBSlot struct {
	gorm.Model
	Partition string `gorm:"column:partition_name;not null;uniqueIndex:idx_slot;size:255"`
	ObjectID  int32  `gorm:"column:object_id;not null;uniqueIndex:idx_slot"`
	KeyID     int32  `gorm:"column:key_id;not null;uniqueIndex:idx_slot"`
	TypeID    int32  `gorm:"column:type_id;not null"`
	Value     []byte `gorm:"column:slot_value;type:blob"`
}

// TableName specifies the table name for DBSlot
func (DBSlot) TableName() string {
	return "slots"
}

// DBSequence holds the next object id of a partition. Ids are never reused.
type DBSequence struct {
	gorm.Model
	Partition string `gorm:"column:partition_name;not null;uniqueIndex;size:255"`
	NextID    int32  `gorm:"column:next_id;not null"`
}

// TableName specifies the table name for DBSequence
func (DBSequence) TableName() string {
	return "sequences"
}

// DBEvent represents an event in the database
type DBEvent struct {
	gorm.Model
	Partition string `gorm:"column:partition_name;not null;index;size:255"`
	Contract  string `gorm:"column:contract;not null;index;size:255"`
	Text      string `gorm:"column:event_text;not null"`
	Timestamp int64  `gorm:"column:event_time;not null"`
}

// TableName specifies the table name for DBEvent
func (DBEvent) TableName() string {
	return "events"
}

// Backend implements context.Backend using SQLite with GORM.
// Several contracts can share one database file; each uses its own partition.
type Backend struct {
	mu        sync.Mutex
	db        *gorm.DB
	partition string
}

var _ context.Backend = (*Backend)(nil)

func init() {
	context.Register(context.DBBackendType, func(params map[string]any) (context.Backend, error) {
		return NewBackend(params)
	})
}

// NewBackend opens (or creates) the database named by params["db_path"].
// params["partition"] selects the contract partition.
func NewBackend(params map[string]any) (*Backend, error) {
	if params == nil {
		params = make(map[string]any)
	}
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}
	partition := defaultPartition
	if p, ok := params["partition"].(string); ok && p != "" {
		partition = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &Backend{db: db, partition: partition}
	if err := b.initDB(); err != nil {
		return nil, err
	}
	slog.Debug("State database opened", "path", dbPath, "partition", partition)
	return b, nil
}

func (b *Backend) initDB() error {
	// Auto migrate the schemas with indexes
	err := b.db.AutoMigrate(
		&DBKey{},
		&DBObject{},
		&DBSlot{},
		&DBSequence{},
		&DBEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	root := DBObject{Partition: b.partition, ObjectID: int32(types.ObjectIDRoot)}
	err = b.db.Where(&DBObject{Partition: b.partition, ObjectID: int32(types.ObjectIDRoot)}).
		Attrs(DBObject{ParentID: int32(types.ObjectIDNull), TypeID: int32(types.TypeMap)}).
		FirstOrCreate(&root).Error
	if err != nil {
		return fmt.Errorf("failed to create root object: %w", err)
	}

	seq := DBSequence{Partition: b.partition}
	err = b.db.Where(&DBSequence{Partition: b.partition}).
		Attrs(DBSequence{NextID: int32(types.ObjectIDRoot) + 1}).
		FirstOrCreate(&seq).Error
	if err != nil {
		return fmt.Errorf("failed to create object sequence: %w", err)
	}
	return nil
}

// Partition returns the partition this backend reads and writes
func (b *Backend) Partition() string {
	return b.partition
}

func (b *Backend) KeyID(name []byte) (types.Key32, bool, error) {
	var key DBKey
	result := b.db.Where("partition_name = ? AND key_name = ?", b.partition, name).First(&key)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to get key: %w", result.Error)
	}
	return types.Key32(key.KeyID), true, nil
}

func (b *Backend) KeyName(id types.Key32) ([]byte, bool, error) {
	var key DBKey
	result := b.db.Where("partition_name = ? AND key_id = ?", b.partition, int32(id)).First(&key)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to get key: %w", result.Error)
	}
	return key.Name, true, nil
}

func (b *Backend) KeyCount() (int, error) {
	var count int64
	if err := b.db.Model(&DBKey{}).Where("partition_name = ?", b.partition).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return int(count), nil
}

func (b *Backend) PutKey(name []byte, id types.Key32) error {
	key := &DBKey{Partition: b.partition, Name: name, KeyID: int32(id)}
	if err := b.db.Create(key).Error; err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	return nil
}

func (b *Backend) Object(id types.ObjectID) (types.TypeID, bool, error) {
	var obj DBObject
	result := b.db.Where("partition_name = ? AND object_id = ?", b.partition, int32(id)).First(&obj)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to get object: %w", result.Error)
	}
	return types.TypeID(obj.TypeID), true, nil
}

func (b *Backend) Child(parent types.ObjectID, key types.Key32) (types.ObjectID, bool, error) {
	var obj DBObject
	result := b.db.Where("partition_name = ? AND parent_id = ? AND key_id = ?", b.partition, int32(parent), int32(key)).First(&obj)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if result.Error != nil {
		return 0, false, fmt.Errorf("failed to get child: %w", result.Error)
	}
	return types.ObjectID(obj.ObjectID), true, nil
}

func (b *Backend) CreateChild(parent types.ObjectID, key types.Key32, typeID types.TypeID) (types.ObjectID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var id types.ObjectID
	err := b.db.Transaction(func(tx *gorm.DB) error {
		var seq DBSequence
		if err := tx.Where("partition_name = ?", b.partition).First(&seq).Error; err != nil {
			return err
		}
		id = types.ObjectID(seq.NextID)
		if err := tx.Model(&seq).Update("next_id", seq.NextID+1).Error; err != nil {
			return err
		}
		return tx.Create(&DBObject{
			Partition: b.partition,
			ObjectID:  int32(id),
			ParentID:  int32(parent),
			KeyID:     int32(key),
			TypeID:    int32(typeID),
		}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create object: %w", err)
	}
	return id, nil
}

func (b *Backend) Slot(objID types.ObjectID, key types.Key32) (context.Slot, bool, error) {
	var slot DBSlot
	result := b.db.Where("partition_name = ? AND object_id = ? AND key_id = ?", b.partition, int32(objID), int32(key)).First(&slot)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return context.Slot{}, false, nil
	}
	if result.Error != nil {
		return context.Slot{}, false, fmt.Errorf("failed to get slot: %w", result.Error)
	}
	return toSlot(slot), true, nil
}

func toSlot(s DBSlot) context.Slot {
	value := s.Value
	if value == nil {
		value = []byte{}
	}
	return context.Slot{Key: types.Key32(s.KeyID), TypeID: types.TypeID(s.TypeID), Value: value}
}

func (b *Backend) PutSlot(objID types.ObjectID, slot context.Slot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	value := slot.Value
	if value == nil {
		value = []byte{}
	}
	var row DBSlot
	result := b.db.Where("partition_name = ? AND object_id = ? AND key_id = ?", b.partition, int32(objID), int32(slot.Key)).First(&row)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		row = DBSlot{
			Partition: b.partition,
			ObjectID:  int32(objID),
			KeyID:     int32(slot.Key),
			TypeID:    int32(slot.TypeID),
			Value:     value,
		}
		if err := b.db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create slot: %w", err)
		}
	case result.Error != nil:
		return fmt.Errorf("failed to get slot: %w", result.Error)
	default:
		// overwriting keeps the row, and with it the slot's position
		err := b.db.Model(&row).Updates(map[string]any{
			"type_id":    int32(slot.TypeID),
			"slot_value": value,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update slot: %w", err)
		}
	}
	return nil
}

func (b *Backend) DeleteSlot(objID types.ObjectID, key types.Key32) error {
	result := b.db.Unscoped().
		Where("partition_name = ? AND object_id = ? AND key_id = ?", b.partition, int32(objID), int32(key)).
		Delete(&DBSlot{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete slot: %w", result.Error)
	}
	return nil
}

func (b *Backend) Slots(objID types.ObjectID) ([]context.Slot, error) {
	var rows []DBSlot
	err := b.db.Where("partition_name = ? AND object_id = ?", b.partition, int32(objID)).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	out := make([]context.Slot, len(rows))
	for i, row := range rows {
		out[i] = toSlot(row)
	}
	return out, nil
}

func (b *Backend) Clear(objID types.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db.Transaction(func(tx *gorm.DB) error {
		return b.clear(tx, objID)
	})
}

func (b *Backend) clear(tx *gorm.DB, objID types.ObjectID) error {
	var children []DBObject
	if err := tx.Where("partition_name = ? AND parent_id = ?", b.partition, int32(objID)).Find(&children).Error; err != nil {
		return fmt.Errorf("failed to list children: %w", err)
	}
	for _, child := range children {
		if err := b.clear(tx, types.ObjectID(child.ObjectID)); err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&child).Error; err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}
	err := tx.Unscoped().Where("partition_name = ? AND object_id = ?", b.partition, int32(objID)).Delete(&DBSlot{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete slots: %w", err)
	}
	return nil
}

func (b *Backend) AddEvent(event context.Event) error {
	row := &DBEvent{
		Partition: b.partition,
		Contract:  event.Contract,
		Text:      event.Text,
		Timestamp: event.Timestamp,
	}
	if err := b.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (b *Backend) Events() ([]context.Event, error) {
	var rows []DBEvent
	if err := b.db.Where("partition_name = ?", b.partition).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]context.Event, len(rows))
	for i, row := range rows {
		out[i] = context.Event{Contract: row.Contract, Text: row.Text, Timestamp: row.Timestamp}
	}
	return out, nil
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
