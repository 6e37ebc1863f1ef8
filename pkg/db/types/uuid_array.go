package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDArray maps a Postgres uuid[] column onto a Go slice.
type UUIDArray []uuid.UUID

// Contains reports whether id is one of the array members.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, member := range a {
		if member == id {
			return true
		}
	}
	return false
}

func (a *UUIDArray) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = UUIDArray{}
		return nil
	case string:
		return a.scanLiteral(v)
	case []byte:
		return a.scanLiteral(string(v))
	default:
		return fmt.Errorf("uuid array: cannot scan %T", src)
	}
}

func (a UUIDArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, id := range a {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// scanLiteral parses the Postgres array literal form {uuid,uuid}.
func (a *UUIDArray) scanLiteral(literal string) error {
	body := strings.TrimSpace(literal)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")
	if strings.TrimSpace(body) == "" {
		*a = UUIDArray{}
		return nil
	}

	tokens := strings.Split(body, ",")
	out := make([]uuid.UUID, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(strings.Trim(token, `"`))
		id, err := uuid.Parse(token)
		if err != nil {
			return fmt.Errorf("uuid array: parse %q: %w", token, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}
