// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPaginationCount    = 100
	MaxPaginationCount        = 100
	DefaultPaginationPage     = 1
	DefaultPaginationOrderAsc = "asc"
	PaginationOrderDesc       = "desc"

	HeaderPaginationCountTotal = "X-Pagination-Count-Total"
	HeaderPaginationPageTotal  = "X-Pagination-Page-Total"
)

var ErrInvalidPaginationParameters = errors.New(
	"invalid pagination parameters",
)

// PaginationParams is a page request taken from the count, page and order
// query parameters
type PaginationParams struct {
	Order string
	Count int
	Page  int
}

// queryInt returns fallback when key is absent
func queryInt(query url.Values, key string, fallback int) (int, error) {
	raw := query.Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidPaginationParameters
	}
	return v, nil
}

// ParsePagination reads the page request of r. Count is clamped to
// [1, MaxPaginationCount] and page to at least 1.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	query := r.URL.Query()
	count, err := queryInt(query, "count", DefaultPaginationCount)
	if err != nil {
		return PaginationParams{}, err
	}
	page, err := queryInt(query, "page", DefaultPaginationPage)
	if err != nil {
		return PaginationParams{}, err
	}
	order := DefaultPaginationOrderAsc
	if raw := query.Get("order"); raw != "" {
		order = strings.ToLower(raw)
		if order != DefaultPaginationOrderAsc && order != PaginationOrderDesc {
			return PaginationParams{}, ErrInvalidPaginationParameters
		}
	}
	return PaginationParams{
		Order: order,
		Count: min(max(count, 1), MaxPaginationCount),
		Page:  max(page, 1),
	}, nil
}

// Bounds returns the slice bounds of the requested page within total items
func (p PaginationParams) Bounds(total int) (int, int) {
	start := min((p.Page-1)*p.Count, total)
	end := min(start+p.Count, total)
	return start, end
}

// SetPaginationHeaders reports the item and page totals of a listing
func SetPaginationHeaders(
	w http.ResponseWriter,
	totalItems int,
	params PaginationParams,
) {
	totalItems = max(totalItems, 0)
	count := params.Count
	if count < 1 {
		count = DefaultPaginationCount
	}
	totalPages := (totalItems + count - 1) / count
	w.Header().Set(HeaderPaginationCountTotal, strconv.Itoa(totalItems))
	w.Header().Set(HeaderPaginationPageTotal, strconv.Itoa(totalPages))
}
