package docstore

import (
	"github.com/goccy/go-json"

	"github.com/blobstash/blobstash.go/pkg/models"
)

type paginationInfo struct {
	HasMore bool   `json:"has_more"`
	Cursor  string `json:"cursor"`
	Count   int    `json:"count"`
}

// listResponse is the envelope of query, listing and versions responses.
// Data is kept raw so records decode with their key order.
type listResponse struct {
	Data       json.RawMessage            `json:"data"`
	Pagination paginationInfo             `json:"pagination"`
	Pointers   map[string]json.RawMessage `json:"pointers"`
}

type getResponse struct {
	Data     json.RawMessage            `json:"data"`
	Pointers map[string]json.RawMessage `json:"pointers"`
}

type collectionsResponse struct {
	Collections []string `json:"collections"`
}

func parseRecords(data json.RawMessage) ([]*models.Object, error) {
	if len(data) == 0 {
		return nil, nil
	}
	items, err := models.ParseList(data)
	if err != nil {
		return nil, err
	}
	records := make([]*models.Object, 0, len(items))
	for _, item := range items {
		o, err := models.ParseObject(item)
		if err != nil {
			return nil, err
		}
		records = append(records, o)
	}
	return records, nil
}
