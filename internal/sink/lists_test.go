package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotgluexyz/target-sendgrid/internal/sendgrid"
)

type staticLists struct {
	lists []sendgrid.List
	err   error
	calls int
}

func (s *staticLists) GetLists(context.Context) ([]sendgrid.List, error) {
	s.calls++
	return s.lists, s.err
}

func TestResolveListID(t *testing.T) {
	lists := &staticLists{lists: []sendgrid.List{{ID: "a", Name: "X"}, {ID: "b", Name: "Y"}}}

	tests := []struct {
		name    string
		list    string
		id      string
		want    string
		wantErr error
	}{
		{name: "by name", list: "Y", want: "b"},
		{name: "name wins over id", list: "X", id: "b", want: "a"},
		{name: "fallback to id", list: "Z", id: "b", want: "b"},
		{name: "id only", id: "a", want: "a"},
		{name: "no match", list: "Z", wantErr: ErrListNotFound},
		{name: "unknown id", id: "c", wantErr: ErrListNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveListID(context.Background(), lists, tt.list, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveListID_FetchError(t *testing.T) {
	boom := errors.New("unauthorized")
	_, err := ResolveListID(context.Background(), &staticLists{err: boom}, "X", "")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrListNotFound)
}
