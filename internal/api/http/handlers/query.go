package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/domain"
	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func currentIdentity(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewNotAuthenticated()
	}
	return *identity, nil
}

// pagination reads page/page_size and returns limit and offset.
func pagination(c *fiber.Ctx) (int, int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func splitCSV(val string) []string {
	if val == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
