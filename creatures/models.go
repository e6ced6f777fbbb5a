package creatures

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Power is a named ability. Its description always mentions the owning creature by name.
type Power struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Creature is a generated record. The Persistent Store is its source of truth.
type Creature struct {
	ID              uint64                     `gorm:"primaryKey" json:"id"`
	Name            string                     `gorm:"size:100;not null" json:"name"`
	Type            string                     `gorm:"size:100" json:"type"`
	Powers          datatypes.JSONSlice[Power] `json:"powers"`
	Characteristics string                     `gorm:"type:text" json:"characteristics"`
	ImageURL        string                     `gorm:"type:text" json:"image_url"`
	DoodleSource    string                     `gorm:"type:text" json:"doodle_source"`
	LikeCount       int64                      `gorm:"not null;default:0" json:"like_count"`
	ActionImages    ActionImages               `json:"action_images"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// TableName keeps the table name used by earlier deployments.
func (Creature) TableName() string {
	return "generated_pokaimon"
}

// ActionImages maps a power name to the URL of its action image. Entries are
// only ever upserted one key at a time (see Store.MergeActionImage); nothing
// removes keys for powers a creature no longer has.
type ActionImages map[string]string

// Lookup returns the stored URL for power, if any.
func (a ActionImages) Lookup(power string) (string, bool) {
	url, ok := a[power]
	return url, ok && url != ""
}

// Value implements driver.Valuer.
func (a ActionImages) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (a *ActionImages) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = ActionImages{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("creatures: cannot scan %T into ActionImages", value)
	}

	decoded := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("creatures: decode action images: %w", err)
		}
	}
	*a = decoded
	return nil
}

// MarshalJSON renders a nil map as {} so clients always see an object.
func (a ActionImages) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(a))
}

func (ActionImages) GormDataType() string {
	return "json"
}

func (ActionImages) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	default:
		return "JSON"
	}
}
