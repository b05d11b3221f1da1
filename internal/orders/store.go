package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/procurehq/orderdesk/internal/aws"
)

// ErrOrderNotFound is returned by mutations whose existence guard failed.
var ErrOrderNotFound = errors.New("order not found")

// ErrDuplicateRequest signals that an idempotency key was already used.
var ErrDuplicateRequest = errors.New("duplicate request")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new order. order.OrderID must be set by the caller;
// zero timestamps are stamped here.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// CreateWithIdempotency atomically writes the idempotency record (guarded by
// attribute_not_exists(idempotency_key)) and the order in one transaction.
// Returns ErrDuplicateRequest when the key was already consumed.
func (s *Store) CreateWithIdempotency(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order Order) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}

	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName: &s.tableName,
					Item:      orderMap,
				},
			},
		},
	}

	if _, err = s.client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Update merges the supplied fields into the stored order. Only fields
// present in upd appear in the UpdateExpression; updated_at always moves.
// The existence guard turns a missing order into ErrOrderNotFound instead
// of an upsert.
func (s *Store) Update(ctx context.Context, orderID string, upd OrderUpdate) error {
	now := s.nowFunc().UTC()

	expr := "SET updated_at = :ua"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}

	if upd.Status != nil {
		expr += ", #st = :st"
		names["#st"] = "status"
		values[":st"] = &types.AttributeValueMemberS{Value: string(*upd.Status)}
	}
	if upd.Price != nil {
		expr += ", price = :pr"
		values[":pr"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(*upd.Price, 'f', -1, 64)}
	}
	if upd.URL != nil {
		expr += ", #u = :url"
		names["#u"] = "url"
		values[":url"] = &types.AttributeValueMemberS{Value: *upd.URL}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(order_id)"),
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionalFailure(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// AppendComment atomically appends one comment via list_append. This is the
// only comment write path; read-modify-write of the whole list would race.
func (s *Store) AppendComment(ctx context.Context, orderID string, comment Comment) error {
	now := s.nowFunc().UTC()

	commentMap, err := attributevalue.MarshalMap(comment)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression: awsString("SET comments = list_append(if_not_exists(comments, :empty), :c), updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":c":     &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: commentMap}}},
			":ua":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if isConditionalFailure(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update item (append comment): %w", err)
	}
	return nil
}

// Delete removes an order. ErrOrderNotFound when the id does not exist.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// List returns every order in the table, following scan pagination.
// Callers sort; created_at is the stable sort key.
func (s *Store) List(ctx context.Context) ([]Order, error) {
	var out []Order
	var startKey map[string]types.AttributeValue

	for {
		resp, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, page...)

		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}

func isConditionalFailure(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
