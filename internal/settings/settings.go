// Package settings reads and writes grouped configuration rows stored in
// the app_settings collection.
//
// Each row represents one group identified by (module, key) — e.g.
// ("checkin", "broadcast") or ("membership", "policy") — with all fields of
// the group in a single JSON value column.
//
// GetGroup always returns a non-nil map: on any failure (row missing, DB
// down, bad JSON) it returns the caller's fallback, so
//
//	v, _ := settings.GetGroup(app, "checkin", "broadcast", defaults)
//
// is safe and the typed readers below can be applied immediately.
package settings

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// GetGroup loads the settings group identified by (module, key).
// On error it returns (fallback, err); the map is never nil.
func GetGroup(app core.App, module, key string, fallback map[string]any) (map[string]any, error) {
	record, err := app.FindFirstRecordByFilter(
		"app_settings",
		"module = {:module} && key = {:key}",
		dbx.Params{"module": module, "key": key},
	)
	if err != nil {
		return fallback, fmt.Errorf("settings.GetGroup(%s/%s): %w", module, key, err)
	}

	raw := record.Get("value")
	if raw == nil {
		return fallback, fmt.Errorf("settings.GetGroup(%s/%s): value is nil", module, key)
	}

	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case json.RawMessage:
		data = []byte(v)
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return fallback, fmt.Errorf("settings.GetGroup(%s/%s): marshal raw value: %w", module, key, err)
		}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return fallback, fmt.Errorf("settings.GetGroup(%s/%s): unmarshal: %w", module, key, err)
	}
	if result == nil {
		return fallback, nil
	}
	return result, nil
}

// SetGroup upserts the settings group identified by (module, key).
func SetGroup(app core.App, module, key string, value map[string]any) error {
	record, err := app.FindFirstRecordByFilter(
		"app_settings",
		"module = {:module} && key = {:key}",
		dbx.Params{"module": module, "key": key},
	)
	if err != nil {
		collection, colErr := app.FindCollectionByNameOrId("app_settings")
		if colErr != nil {
			return fmt.Errorf("settings.SetGroup(%s/%s): find collection: %w", module, key, colErr)
		}
		record = core.NewRecord(collection)
		record.Set("module", module)
		record.Set("key", key)
	}

	record.Set("value", value)
	if err := app.Save(record); err != nil {
		return fmt.Errorf("settings.SetGroup(%s/%s): save: %w", module, key, err)
	}
	return nil
}

// Int reads an integer field from a loaded group map, tolerating the usual
// JSON number shapes. Returns fallback when absent or unreadable.
func Int(group map[string]any, field string, fallback int) int {
	v, ok := group[field]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return fallback
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return fallback
		}
		return i
	}
	return fallback
}

// String reads a string field from a loaded group map.
func String(group map[string]any, field string, fallback string) string {
	v, ok := group[field]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// Bool reads a boolean field from a loaded group map.
func Bool(group map[string]any, field string, fallback bool) bool {
	v, ok := group[field]
	if !ok || v == nil {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}
