package cache

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "anilist:page"

// PageKey identifies one cached page of a query.
type PageKey struct {
	// Operation is the GraphQL operation name (e.g. "GetAnimePage").
	Operation string

	// Page is the 1-based page number.
	Page int

	// PerPage is the page size.
	PerPage int
}

// String generates a deterministic cache key string.
//
// Example:
//
//	anilist:page:GetAnimePage:page=3:perPage=20
func (k PageKey) String() string {
	parts := []string{KeyPrefix}

	if op := strings.TrimSpace(k.Operation); op != "" {
		parts = append(parts, op)
	}

	parts = append(parts,
		fmt.Sprintf("page=%d", k.Page),
		fmt.Sprintf("perPage=%d", k.PerPage),
	)

	return strings.Join(parts, ":")
}
