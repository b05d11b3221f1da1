package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory multi-table mock covering the calls the orders
// and users stores make. It stores items per table in a nested map:
// table -> pkValue -> item map. Expression handling is naive and keyed to
// the placeholders the stores actually emit.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

// pkOf finds the primary key value in an item or key map; the mock serves
// orders (order_id), users (user_id) and idempotency (idempotency_key).
func pkOf(attrs map[string]types.AttributeValue) (string, string, error) {
	for _, name := range []string{"idempotency_key", "order_id", "user_id"} {
		if v, ok := attrs[name]; ok {
			return name, v.(*types.AttributeValueMemberS).Value, nil
		}
	}
	return "", "", errors.New("no recognized primary key attribute")
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pkName, pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists("+pkName+")" {
		if _, exists := m.tables[table][pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	_, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pkName, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][pk]
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists("+pkName+")" {
		if !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	// naive apply keyed to the placeholders our stores emit
	vals := params.ExpressionAttributeValues
	if v, ok := vals[":ua"]; ok {
		item["updated_at"] = v
	}
	if v, ok := vals[":st"]; ok {
		item["status"] = v
	}
	if v, ok := vals[":pr"]; ok {
		item["price"] = v
	}
	if v, ok := vals[":url"]; ok {
		item["url"] = v
	}
	if v, ok := vals[":c"]; ok && strings.Contains(*params.UpdateExpression, "list_append") {
		appended := v.(*types.AttributeValueMemberL).Value
		existing, ok := item["comments"].(*types.AttributeValueMemberL)
		if !ok {
			existing = &types.AttributeValueMemberL{}
		}
		item["comments"] = &types.AttributeValueMemberL{Value: append(existing.Value, appended...)}
	}

	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pkName, pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	_, exists := m.tables[table][pk]
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists("+pkName+")" {
		if !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(m.tables[table], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	items := make([]map[string]types.AttributeValue, 0, len(m.tables[table]))
	for _, item := range m.tables[table] {
		items = append(items, item)
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// first pass: verify condition expressions
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		pkName, pk, err := pkOf(p.Item)
		if err != nil {
			return nil, err
		}
		if p.ConditionExpression != nil && *p.ConditionExpression == "attribute_not_exists("+pkName+")" {
			table := *p.TableName
			m.ensureTable(table)
			if _, exists := m.tables[table][pk]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	// second pass: apply all puts
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		table := *p.TableName
		m.ensureTable(table)
		_, pk, err := pkOf(p.Item)
		if err != nil {
			return nil, err
		}
		m.tables[table][pk] = p.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
