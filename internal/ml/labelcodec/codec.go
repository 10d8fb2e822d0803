// Package labelcodec maps sparse category ids onto the dense keys used by the classifier.
package labelcodec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

// Codec is an immutable bijection: key i <-> i-th smallest category id.
type Codec struct {
	ids  []int
	keys map[int]int
}

// Build sorts the distinct ids and assigns keys from 0.
func Build(categoryIDs []int) (*Codec, error) {
	seen := make(map[int]struct{}, len(categoryIDs))
	ids := make([]int, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build label codec", fmt.Errorf("no category ids"))
	}
	sort.Ints(ids)
	return fromIDs(ids), nil
}

func fromIDs(ids []int) *Codec {
	keys := make(map[int]int, len(ids))
	for key, id := range ids {
		keys[id] = key
	}
	return &Codec{ids: ids, keys: keys}
}

func (c *Codec) Encode(categoryID int) (int, bool) {
	key, ok := c.keys[categoryID]
	return key, ok
}

func (c *Codec) Decode(key int) (int, bool) {
	if key < 0 || key >= len(c.ids) {
		return 0, false
	}
	return c.ids[key], true
}

func (c *Codec) Len() int {
	return len(c.ids)
}

func (c *Codec) Keys() []int {
	keys := make([]int, len(c.ids))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (c *Codec) CategoryIDs() []int {
	return append([]int(nil), c.ids...)
}

// MarshalJSON writes the persisted {"0":10,"1":40} form.
func (c *Codec) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(c.ids))
	for key, id := range c.ids {
		m[strconv.Itoa(key)] = id
	}
	return json.Marshal(m)
}

func (c *Codec) String() string {
	raw, _ := c.MarshalJSON()
	return string(raw)
}

// Parse reads a persisted key map and verifies it is a bijection over 0..K-1.
func Parse(raw string) (*Codec, error) {
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse key map", err)
	}
	if len(m) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse key map", fmt.Errorf("empty key map"))
	}
	ids := make([]int, len(m))
	filled := make([]bool, len(m))
	seen := make(map[int]struct{}, len(m))
	for k, id := range m {
		key, err := strconv.Atoi(k)
		if err != nil || key < 0 || key >= len(m) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse key map", fmt.Errorf("key %q out of range", k))
		}
		if filled[key] {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse key map", fmt.Errorf("duplicate key %d", key))
		}
		if _, dup := seen[id]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse key map", fmt.Errorf("category %d mapped twice", id))
		}
		filled[key] = true
		seen[id] = struct{}{}
		ids[key] = id
	}
	return fromIDs(ids), nil
}
