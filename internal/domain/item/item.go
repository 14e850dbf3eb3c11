package item

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("item not found")
	ErrInvalidID = errors.New("item id must be a string or a number")
)

const (
	FieldID       = "id"
	FieldImage    = "image"
	FieldImageKey = "imageKey"
	// FieldStoreID is the store-assigned identifier, distinct from FieldID.
	FieldStoreID = "_id"
)

// Item is an open listing document. Only FieldID is required for lookups,
// every other field is whatever the client sent.
type Item map[string]any

func (i Item) ID() string {
	s, _ := i[FieldID].(string)
	return s
}

func (i Item) ImageKey() string {
	s, _ := i[FieldImageKey].(string)
	return s
}

// WithImage records the uploaded file: the display name the client used and
// the key it is stored under.
func (i Item) WithImage(originalName, key string) Item {
	i[FieldImage] = originalName
	i[FieldImageKey] = key
	return i
}

// New copies fields into a fresh Item. A numeric id is kept in its decimal
// form, a missing or blank one is generated, anything else is ErrInvalidID.
func New(fields map[string]any) (Item, error) {
	it := make(Item, len(fields)+1)

	for k, v := range fields {
		if reservedOnCreate(k) {
			continue
		}
		it[k] = v
	}

	id, err := clientID(it[FieldID])
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	it[FieldID] = id

	return it, nil
}

func clientID(v any) (string, error) {
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		if strings.TrimSpace(id) == "" {
			return "", nil
		}
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case json.Number:
		return id.String(), nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	default:
		return "", ErrInvalidID
	}
}

// UpdateFields strips the keys a merge is not allowed to overwrite.
func UpdateFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))

	for k, v := range fields {
		switch k {
		case FieldID, FieldStoreID, FieldImageKey:
			continue
		}
		if strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}

	return out
}

func reservedOnCreate(k string) bool {
	return k == FieldStoreID || k == FieldImage || k == FieldImageKey || strings.HasPrefix(k, "$")
}
