package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// DynamoDBAPI is the subset of the DynamoDB client the backend calls.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const dynamoCurrentSK = "CURRENT"

// stateItem is one stream's state row.
type stateItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

type stateKey struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

// DynamoDBBackend stores each stream as item PK=STATE#<stream>, SK=CURRENT.
type DynamoDBBackend struct {
	client DynamoDBAPI
	table  string
	now    func() time.Time
}

func NewDynamoDBBackend(client DynamoDBAPI, table string) *DynamoDBBackend {
	return &DynamoDBBackend{client: client, table: table, now: time.Now}
}

func dynamoPK(stream string) string { return "STATE#" + stream }

func (d *DynamoDBBackend) Load(ctx context.Context, stream string) (*domain.StreamState, error) {
	key, err := attributevalue.MarshalMap(stateKey{PK: dynamoPK(stream), SK: dynamoCurrentSK})
	if err != nil {
		return nil, fmt.Errorf("marshaling key: %w", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	var s domain.StreamState
	if err := json.Unmarshal([]byte(item.Data), &s); err != nil {
		return nil, fmt.Errorf("decoding state %s: %w", stream, err)
	}
	return &s, nil
}

func (d *DynamoDBBackend) Save(ctx context.Context, stream string, s *domain.StreamState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	av, err := attributevalue.MarshalMap(stateItem{
		PK:        dynamoPK(stream),
		SK:        dynamoCurrentSK,
		Data:      string(data),
		Timestamp: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

func (d *DynamoDBBackend) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	return err
}
