package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentKey identifies an indexed record: entity type and id joined by "-".
func DocumentKey(entityType string, entityID uint64) string {
	return entityType + "-" + strconv.FormatUint(entityID, 10)
}

// ParseDocumentKey splits a document key on its first "-". Entity type names never contain "-".
func ParseDocumentKey(key string) (string, uint64, error) {
	entityType, rawID, ok := strings.Cut(key, "-")
	if !ok || entityType == "" {
		return "", 0, fmt.Errorf("malformed document key %q", key)
	}

	entityID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed document key %q: %w", key, err)
	}

	return entityType, entityID, nil
}
