package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/hotgluexyz/target-sendgrid/internal/sendgrid"
)

// ErrListNotFound aborts a batch whose configured target list does not
// exist remotely.
var ErrListNotFound = errors.New("target list not found")

// ListFetcher is the subset of the SendGrid client used for list lookup.
type ListFetcher interface {
	GetLists(ctx context.Context) ([]sendgrid.List, error)
}

// ResolveListID finds the configured target list, matching by name first
// and falling back to id.
func ResolveListID(ctx context.Context, api ListFetcher, name, id string) (string, error) {
	lists, err := api.GetLists(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving target list: %w", err)
	}
	if name != "" {
		for _, l := range lists {
			if l.Name == name {
				return l.ID, nil
			}
		}
	}
	if id != "" {
		for _, l := range lists {
			if l.ID == id {
				return l.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: name=%q id=%q among %d lists", ErrListNotFound, name, id, len(lists))
}
