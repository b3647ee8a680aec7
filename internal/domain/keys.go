package domain

import (
	"fmt"
	"strings"
)

// EntityKey identifies one canonical entity instance inside a persistence context.
// ID must be comparable (the primary key value as read from the entity).
type EntityKey struct {
	Entity string
	ID     any
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s#%v", k.Entity, k.ID)
}

// CollectionKey identifies one canonical collection inside a persistence context.
type CollectionKey struct {
	Role  string
	Owner any
}

func (k CollectionKey) String() string {
	return fmt.Sprintf("%s#%v", k.Role, k.Owner)
}

// CollectionKind tells which container a collection property is reconstructed as.
type CollectionKind int

const (
	CollectionBag CollectionKind = iota
	CollectionList
	CollectionSet
	CollectionMap
)

func (k CollectionKind) String() string {
	switch k {
	case CollectionBag:
		return "bag"
	case CollectionList:
		return "list"
	case CollectionSet:
		return "set"
	case CollectionMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k CollectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CollectionKind) UnmarshalText(b []byte) error {
	v, err := ParseCollectionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func ParseCollectionKind(s string) (CollectionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bag":
		return CollectionBag, nil
	case "list":
		return CollectionList, nil
	case "set":
		return CollectionSet, nil
	case "map":
		return CollectionMap, nil
	}
	return 0, fmt.Errorf("unknown collection kind %q", s)
}
