// Package store persists storefront entities through gorm. Every exported
// operation runs in its own transaction.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Auditor receives change events. audit.Dispatcher implements it.
type Auditor interface {
	Record(e audit.Event)
}

// SalesCache caches per-product sales totals. A miss returns a version that
// the following SetSalesTotal passes back; an invalidation in between makes
// that write invisible to later reads.
type SalesCache interface {
	GetSalesTotal(ctx context.Context, productID uuid.UUID) (total, version int64, ok bool, err error)
	SetSalesTotal(ctx context.Context, productID uuid.UUID, version, total int64) error
	InvalidateSalesTotal(ctx context.Context, productID uuid.UUID) error
}

type Store struct {
	db      *gorm.DB
	logger  *zap.Logger
	auditor Auditor
	cache   SalesCache
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithAuditor(a Auditor) Option {
	return func(s *Store) { s.auditor = a }
}

func WithSalesCache(c SalesCache) Option {
	return func(s *Store) { s.cache = c }
}

// New wraps an open gorm handle.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database selected by cfg.Driver.
func Open(cfg *config.DatabaseConfig, logger *zap.Logger, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger.Named("gorm"), 200*time.Millisecond),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return New(db, append([]Option{WithLogger(logger)}, opts...)...), nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or alters every table, including join tables.
// userProductKeys link users to the products they browsed or reviewed. They are
// added after AutoMigrate because users and products already reference each
// other through organizations.
var userProductKeys = []struct{ name, column string }{
	{"fk_users_browsing_history", "browsing_history_id"},
	{"fk_users_reviewed_product", "reviewed_product_id"},
}

func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	// sqlite cannot add a constraint to an existing table
	if db.Dialector.Name() == "sqlite" {
		return nil
	}
	for _, fk := range userProductKeys {
		if db.Migrator().HasConstraint(&models.User{}, fk.name) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE users ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES products(id) ON DELETE CASCADE",
			fk.name, fk.column)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", fk.name, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func (p Page) normalize() (offset, limit int) {
	limit = p.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit, limit
}

// Deactivate clears the is_active flag of the row of model identified by id.
func (s *Store) Deactivate(ctx context.Context, model interface{}, entity string, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(model).Where("uuid = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%s: %w", entity, apperr.ErrNotFound)
		}
		return tx.Model(model).Where("uuid = ?", id).Update("is_active", false).Error
	})
	if err != nil {
		return apperr.Classify(err, entity)
	}
	s.record("deactivate", entity, id, nil)
	return nil
}

func (s *Store) record(action, entity string, id uuid.UUID, data map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(audit.Event{
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Data:     data,
	})
}

func findByUUID[T any](ctx context.Context, db *gorm.DB, entity string, id uuid.UUID, preloads ...string) (*T, error) {
	var v T
	q := db.WithContext(ctx)
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.Where("uuid = ?", id).First(&v).Error; err != nil {
		return nil, apperr.Classify(err, entity)
	}
	return &v, nil
}

func list[T any](ctx context.Context, db *gorm.DB, entity string, p Page, preloads ...string) ([]T, int64, error) {
	var total int64
	if err := db.WithContext(ctx).Model(new(T)).Count(&total).Error; err != nil {
		return nil, 0, apperr.Classify(err, entity)
	}

	offset, limit := p.normalize()
	q := db.WithContext(ctx)
	for _, pl := range preloads {
		q = q.Preload(pl)
	}
	items := make([]T, 0)
	if err := q.Order("id").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, apperr.Classify(err, entity)
	}
	return items, total, nil
}

// insert creates v without touching its associations.
func insert(tx *gorm.DB, v interface{}) error {
	return tx.Omit(clause.Associations).Create(v).Error
}

// save writes the listed columns of v, zero values included.
func save(tx *gorm.DB, v interface{}, columns ...string) error {
	return tx.Model(v).Select(columns).Omit(clause.Associations).Updates(v).Error
}

func requireRow(tx *gorm.DB, model interface{}, field string, id uint) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.MissingReference(field)
	}
	return nil
}

// requireRows checks that every id exists and returns them de-duplicated.
func requireRows(tx *gorm.DB, model interface{}, field string, ids []uint) ([]uint, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return unique, nil
	}
	var count int64
	if err := tx.Model(model).Where("id IN ?", unique).Count(&count).Error; err != nil {
		return nil, err
	}
	if int(count) != len(unique) {
		return nil, apperr.MissingReference(field)
	}
	return unique, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// replaceLinks rewrites the join rows of one owner in a many-to-many table.
func replaceLinks(tx *gorm.DB, table, ownerCol string, ownerID uint, otherCol string, otherIDs []uint) error {
	if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, ownerCol), ownerID).Error; err != nil {
		return err
	}
	if len(otherIDs) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(otherIDs))
	for _, id := range otherIDs {
		rows = append(rows, map[string]interface{}{ownerCol: ownerID, otherCol: id})
	}
	return tx.Table(table).Create(rows).Error
}
