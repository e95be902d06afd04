package usecase

import (
	"math"
	"strconv"
	"strings"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
)

// ParsePage validates raw page and limit query values. Empty values take the
// defaults; anything out of range is rejected rather than clamped.
func ParsePage(pageRaw, limitRaw string) (domain.Page, error) {
	page := domain.DefaultPage()
	var errs fieldErrors

	if raw := strings.TrimSpace(pageRaw); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs.add("page", "page must be an integer", pageRaw)
		case n < 1:
			errs.add("page", "page must be at least 1", n)
		default:
			page.Number = n
		}
	}

	if raw := strings.TrimSpace(limitRaw); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs.add("limit", "limit must be an integer", limitRaw)
		case n < 1 || n > domain.MaxPageLimit:
			errs.add("limit", "limit must be between 1 and 100", n)
		default:
			page.Limit = n
		}
	}

	if page.Number-1 > math.MaxInt64/page.Limit {
		errs.add("page", "page is out of range", page.Number)
	}

	if err := errs.err(); err != nil {
		return domain.Page{}, err
	}
	return page, nil
}
