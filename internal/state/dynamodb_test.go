package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// fakeDynamo keeps items keyed by PK.
type fakeDynamo struct {
	items    map[string]map[string]types.AttributeValue
	tableErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(item map[string]types.AttributeValue) string {
	if v, ok := item["PK"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[pkOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.tableErr
}

func TestDynamoDBBackend_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	b := NewDynamoDBBackend(fake, "target-state")
	b.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	cp := NewCheckpoint("dynamodb", b)

	latest, err := cp.Latest(ctx, "Contacts")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, cp.Update(ctx, "Contacts", domain.UpdatedEntry()))

	item, ok := fake.items["STATE#Contacts"]
	require.True(t, ok)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "CURRENT"}, item["SK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2026-01-02T03:04:05Z"}, item["Timestamp"])

	latest, err = cp.Latest(ctx, "Contacts")
	require.NoError(t, err)
	assert.Equal(t, []domain.StateEntry{domain.UpdatedEntry()}, latest.Bookmarks)
	assert.Equal(t, 1, latest.Summary.Updated)
}

func TestDynamoDBBackend_Ping(t *testing.T) {
	fake := newFakeDynamo()
	b := NewDynamoDBBackend(fake, "target-state")
	assert.NoError(t, b.Ping(context.Background()))

	fake.tableErr = errors.New("ResourceNotFoundException")
	assert.Error(t, b.Ping(context.Background()))
}
