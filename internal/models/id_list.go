package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ListSeparator joins ids in flat exports.
const ListSeparator = ";"

// IDList is an ordered set of entity ids. It is stored as a JSON array.
type IDList []string

// NewIDList copies ids dropping repeats; the first occurrence keeps its position.
func NewIDList(ids ...string) IDList {
	out := make(IDList, 0, len(ids))
	for _, id := range ids {
		out, _ = out.Add(id)
	}
	return out
}

// ParseIDList splits a separator-joined list, trimming items and skipping empty ones.
func ParseIDList(raw string) IDList {
	if strings.TrimSpace(raw) == "" {
		return IDList{}
	}
	parts := strings.Split(raw, ListSeparator)
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return NewIDList(ids...)
}

// Contains reports membership.
func (l IDList) Contains(id string) bool {
	for _, existing := range l {
		if existing == id {
			return true
		}
	}
	return false
}

// Add appends id unless already present.
func (l IDList) Add(id string) (IDList, bool) {
	if l.Contains(id) {
		return l, false
	}
	return append(l, id), true
}

// Remove drops id when present.
func (l IDList) Remove(id string) (IDList, bool) {
	for i, existing := range l {
		if existing == id {
			out := make(IDList, 0, len(l)-1)
			out = append(out, l[:i]...)
			return append(out, l[i+1:]...), true
		}
	}
	return l, false
}

// Diff returns ids present only in l and ids present only in next.
func (l IDList) Diff(next IDList) (removed, added IDList) {
	for _, id := range l {
		if !next.Contains(id) {
			removed = append(removed, id)
		}
	}
	for _, id := range next {
		if !l.Contains(id) {
			added = append(added, id)
		}
	}
	return removed, added
}

// Clone returns an independent copy.
func (l IDList) Clone() IDList {
	out := make(IDList, len(l))
	copy(out, l)
	return out
}

// Join renders the list for flat exports.
func (l IDList) Join() string {
	return strings.Join(l, ListSeparator)
}

// MarshalJSON renders nil lists as [].
func (l IDList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Value implements driver.Valuer.
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *IDList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan id list: unsupported type %T", src)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("scan id list: %w", err)
	}
	*l = NewIDList(ids...)
	return nil
}
