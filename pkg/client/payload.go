package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// pagePayload is the listing wire format. Older deployments name the items "users".
type pagePayload struct {
	Items []json.RawMessage `json:"items"`
	Users []json.RawMessage `json:"users"`
	Total *int              `json:"total"`
}

func decodePage(body []byte) (*PageResponse, error) {
	var payload pagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	if payload.Total == nil {
		return nil, errors.New("missing total")
	}
	if *payload.Total < 0 {
		return nil, fmt.Errorf("negative total %d", *payload.Total)
	}

	items := payload.Items
	if items == nil {
		items = payload.Users
	}

	return &PageResponse{
		Items: items,
		Total: *payload.Total,
	}, nil
}
