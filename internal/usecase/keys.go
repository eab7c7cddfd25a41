package usecase

import (
	"encoding/json"
	"strconv"

	"github.com/zeebo/xxh3"
)

const (
	counterKey = "counter"
	statsKey   = "stats"
)

func recordKey(id uint64) string {
	return "record/" + strconv.FormatUint(id, 10)
}

func categoryKey(name string) string {
	return "category/" + strconv.FormatUint(xxh3.HashString(name), 16)
}

// load decodes the value at key into v and reports whether the key was present.
func load(tx Reader, key string, v any) (bool, error) {
	raw, ok, err := tx.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func put(tx Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tx.Set(key, raw)
	return nil
}
