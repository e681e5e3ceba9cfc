package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray is a text[] column on Postgres and a Postgres array literal
// stored as text on SQLite lanes.
type StringArray []string

func (a *StringArray) Scan(src any) error {
	var out pq.StringArray
	if err := out.Scan(src); err != nil {
		return err
	}
	if out == nil {
		out = pq.StringArray{}
	}
	*a = StringArray(out)
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

func (StringArray) GormDataType() string {
	return "text[]"
}

func (StringArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "text[]"
}
