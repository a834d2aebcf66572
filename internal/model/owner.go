package model

import (
	"fmt"
	"strings"
)

// OwnerType tells whether a slot belongs to a provider (a person) or a
// resource (a room, a machine).  Both are interchangeable bookable subjects.
type OwnerType string

const (
	OwnerProvider OwnerType = "PROVIDER"
	OwnerResource OwnerType = "RESOURCE"
)

// ParseOwnerType accepts the type in any letter case.
func ParseOwnerType(s string) (OwnerType, error) {
	switch t := OwnerType(strings.ToUpper(strings.TrimSpace(s))); t {
	case OwnerProvider, OwnerResource:
		return t, nil
	}
	return "", fmt.Errorf("unknown owner type %q", s)
}

// Owner identifies a bookable subject.
type Owner struct {
	Type OwnerType `db:"owner_type" json:"type"`
	ID   uint64    `db:"owner_id" json:"id"`
}

func (o Owner) String() string {
	return strings.ToLower(string(o.Type)) + ":" + fmt.Sprint(o.ID)
}

// Less orders owners by type then id.
func (o Owner) Less(other Owner) bool {
	if o.Type != other.Type {
		return o.Type < other.Type
	}
	return o.ID < other.ID
}
