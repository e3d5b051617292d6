package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a list of strings stored as a JSON column
type StringList []string

// SizeList is a list of sizes stored as a JSON column
type SizeList []SizeStock

// ImageList is a list of images stored as a JSON column
type ImageList []ProductImage

func (l StringList) Value() (driver.Value, error) { return marshalColumn(l, len(l) == 0) }
func (l SizeList) Value() (driver.Value, error)   { return marshalColumn(l, len(l) == 0) }
func (l ImageList) Value() (driver.Value, error)  { return marshalColumn(l, len(l) == 0) }
func (a Address) Value() (driver.Value, error)    { return marshalColumn(a, false) }

func (l *StringList) Scan(src any) error { return scanColumn(src, l) }
func (l *SizeList) Scan(src any) error   { return scanColumn(src, l) }
func (l *ImageList) Scan(src any) error  { return scanColumn(src, l) }
func (a *Address) Scan(src any) error    { return scanColumn(src, a) }

func marshalColumn(v any, empty bool) (driver.Value, error) {
	if empty {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanColumn(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
