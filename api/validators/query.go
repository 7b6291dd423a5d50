package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// query reads key from the URL. A blank value reports ok=false; a value
// parse rejects becomes a validation error naming the field.
func query[T any](r *http.Request, key, want string, parse func(string) (T, error)) (T, bool, error) {
	var zero T
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return zero, false, nil
	}
	value, err := parse(raw)
	if err != nil {
		return zero, false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be "+want).
			WithDetails(map[string]any{"field": key})
	}
	return value, true, nil
}

// ParseQueryInt returns defaultVal when key is absent and rejects values
// outside [min, max].
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	value, ok, err := query(r, key, "numeric", strconv.Atoi)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return defaultVal, nil
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryDate reads a YYYY-MM-DD value as midnight UTC. Missing values return nil.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	day, ok, err := query(r, key, "a date (YYYY-MM-DD)", func(raw string) (time.Time, error) {
		return time.ParseInLocation(dateLayout, raw, time.UTC)
	})
	if err != nil || !ok {
		return nil, err
	}
	return &day, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	value, _, err := query(r, key, "a boolean", strconv.ParseBool)
	return value, err
}
