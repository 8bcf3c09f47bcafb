package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// translateError maps gorm errors onto the repository sentinels
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repositories.ErrDuplicate
	}
	return err
}

// applyPagination applies limit/offset; limit <= 0 means unbounded
func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// likePattern escapes LIKE wildcards in user input
func likePattern(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(replacer.Replace(strings.TrimSpace(s))) + "%"
}
