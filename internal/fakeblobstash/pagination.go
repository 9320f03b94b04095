package fakeblobstash

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/blobstash/blobstash.go/pkg/constants"
)

type pageInfo struct {
	HasMore bool   `json:"has_more"`
	Cursor  string `json:"cursor"`
	Count   int    `json:"count"`
}

type listResponse struct {
	Data       any            `json:"data"`
	Pagination pageInfo       `json:"pagination"`
	Pointers   map[string]any `json:"pointers,omitempty"`
}

// window reads the cursor and limit parameters. Cursors are offsets into
// the listing.
func window(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if c := q.Get("cursor"); c != "" {
		if offset, err = strconv.Atoi(c); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("bad cursor %q", c)
		}
	}
	limit = constants.DefaultPageSize
	if l := q.Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("bad limit %q", l)
		}
		if limit == 0 {
			limit = constants.DefaultPageSize
		}
	}
	return offset, limit, nil
}

// paginate returns the bounds of the page starting at offset in a listing
// of n items.
func paginate(n, offset, limit int) (start, end int, info pageInfo) {
	start = min(offset, n)
	end = min(start+limit, n)
	info = pageInfo{HasMore: end < n, Count: end - start}
	if info.HasMore {
		info.Cursor = strconv.Itoa(end)
	}
	return start, end, info
}
