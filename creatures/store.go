package creatures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pokaimon_back/apperr"

	"gorm.io/gorm"
)

// Store persists creatures with gorm. Every mutation is a single-row statement;
// no operation spans a transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the creatures table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Creature{}); err != nil {
		return fmt.Errorf("creatures: migrate tables: %w", err)
	}
	return nil
}

// Insert stores c and fills in its store-assigned fields.
func (s *Store) Insert(ctx context.Context, c *Creature) error {
	if c.Powers == nil {
		c.Powers = []Power{}
	}
	if c.ActionImages == nil {
		c.ActionImages = ActionImages{}
	}
	c.LikeCount = 0
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.Persistence("Failed to save creature", err)
	}
	return nil
}

// ListNewestFirst returns every creature ordered by descending id.
func (s *Store) ListNewestFirst(ctx context.Context) ([]Creature, error) {
	creatures := []Creature{}
	if err := s.db.WithContext(ctx).Order("id desc").Find(&creatures).Error; err != nil {
		return nil, apperr.Persistence("Failed to fetch gallery", err)
	}
	return creatures, nil
}

// GetByID loads one creature or returns a not-found error.
func (s *Store) GetByID(ctx context.Context, id uint64) (*Creature, error) {
	var c Creature
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Not found")
		}
		return nil, apperr.Persistence("Failed to load creature", err)
	}
	return &c, nil
}

// IncrementLike atomically adds one to like_count and returns the updated row.
func (s *Store) IncrementLike(ctx context.Context, id uint64) (*Creature, error) {
	result := s.db.WithContext(ctx).
		Model(&Creature{}).
		Where("id = ?", id).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", 1))
	if result.Error != nil {
		return nil, apperr.Persistence("Failed to like", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("Not found")
	}
	return s.GetByID(ctx, id)
}

// MergeActionImage upserts the single key power in action_images inside the
// database, leaving other keys untouched, and returns the updated row. Merges on
// different keys of the same row never overwrite each other; merges on the same
// key are last-write-wins.
func (s *Store) MergeActionImage(ctx context.Context, id uint64, power, url string) (*Creature, error) {
	expr, err := s.mergeExpr(power, url)
	if err != nil {
		return nil, apperr.Persistence("Failed to save action image", err)
	}

	result := s.db.WithContext(ctx).
		Model(&Creature{}).
		Where("id = ?", id).
		UpdateColumn("action_images", expr)
	if result.Error != nil {
		return nil, apperr.Persistence("Failed to save action image", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("Not found")
	}
	return s.GetByID(ctx, id)
}

func (s *Store) mergeExpr(power, url string) (clause any, err error) {
	switch s.db.Dialector.Name() {
	case "postgres":
		return gorm.Expr("jsonb_set(COALESCE(action_images, '{}'::jsonb), ARRAY[?]::text[], to_jsonb(?::text), true)", power, url), nil
	case "mysql":
		return gorm.Expr("JSON_SET(COALESCE(action_images, JSON_OBJECT()), ?, ?)", jsonPathKey(power), url), nil
	case "sqlite":
		return gorm.Expr("json_set(COALESCE(action_images, '{}'), ?, ?)", jsonPathKey(power), url), nil
	default:
		return nil, fmt.Errorf("creatures: action image merge unsupported on %s", s.db.Dialector.Name())
	}
}

// jsonPathKey builds the `$."key"` path used by MySQL and SQLite JSON functions.
func jsonPathKey(key string) string {
	escaped := strings.ReplaceAll(key, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `$."` + escaped + `"`
}
