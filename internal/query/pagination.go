package query

// Pagination summarizes the page window returned to clients
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPagination computes totalPages = ceil(total/limit); zero results give
// zero pages.
func NewPagination(page, limit int, total int64) Pagination {
	var pages int64
	if limit > 0 && total > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
