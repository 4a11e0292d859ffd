package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/userlist/pkg/pagination"
)

// Source adapts a Client to pagination.PageSource by decoding items into T.
type Source[T any] struct {
	client   *Client
	resource string
}

// NewSource returns a page source for resource (e.g. "users").
func NewSource[T any](c *Client, resource string) *Source[T] {
	return &Source[T]{
		client:   c,
		resource: resource,
	}
}

// FetchPage implements pagination.PageSource.
func (s *Source[T]) FetchPage(ctx context.Context, req pagination.PageRequest) (pagination.Page[T], error) {
	resp, err := s.client.GetPage(ctx, s.resource, req)
	if err != nil {
		return pagination.Page[T]{}, err
	}

	items := make([]T, 0, len(resp.Items))
	for i, raw := range resp.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
			return pagination.Page[T]{}, &ResponseError{
				Endpoint:   s.resource,
				StatusCode: 200,
				Class:      ErrorClassPayload,
				Message:    fmt.Sprintf("decode item %d", i),
				Err:        err,
			}
		}
		items = append(items, item)
	}

	return pagination.Page[T]{Items: items, Total: resp.Total}, nil
}
