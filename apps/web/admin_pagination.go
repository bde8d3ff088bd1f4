package main

import (
	"strconv"
	"strings"
)

const complaintsPerPage = 50

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// paginate cuts items down to one page and builds its pager. Pages past the
// end are clamped to the last page.
func paginate[T any](items []T, page, perPage int, pageURL string) ([]T, adminPaginationViewData) {
	if perPage < 1 {
		perPage = complaintsPerPage
	}
	totalPages := (len(items) + perPage - 1) / perPage
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	separator := "?"
	if strings.Contains(pageURL, "?") {
		separator = "&"
	}
	view := adminPaginationViewData{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalCount:    len(items),
		NextPage:      page + 1,
		PrevPage:      page - 1,
		HasNext:       page < totalPages,
		HasPrev:       page > 1,
		PageURL:       pageURL,
		PageSeparator: separator,
	}

	start := (page - 1) * perPage
	if start >= len(items) {
		return nil, view
	}
	end := min(start+perPage, len(items))
	return items[start:end], view
}
