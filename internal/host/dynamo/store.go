// Package dynamo is a DynamoDB row store for the host tables. Each host
// table maps to one DynamoDB table keyed by the primary key field; integer
// keys are allocated from a sequence table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"mindmap-backend/internal/host"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config holds store settings.
type Config struct {
	TablePrefix      string
	SequenceTable    string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultConfig returns the default store settings.
func DefaultConfig() Config {
	return Config{
		SequenceTable:    "sequences",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Store implements host.RowStore on DynamoDB.
type Store struct {
	client  Client
	catalog host.Catalog
	eval    host.Evaluator
	engine  *host.JoinEngine
	config  Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewStore creates a DynamoDB store. Calls fail fast with
// gobreaker.ErrOpenState after FailureThreshold consecutive failures.
func NewStore(client Client, catalog host.Catalog, eval host.Evaluator, config Config, logger *zap.Logger) *Store {
	if config.SequenceTable == "" {
		config.SequenceTable = DefaultConfig().SequenceTable
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	s := &Store{
		client:  client,
		catalog: catalog,
		eval:    eval,
		config:  config,
		logger:  logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dynamodb-row-store",
		Timeout: config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var ccf *types.ConditionalCheckFailedException
			return err == nil || errors.As(err, &ccf)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	s.engine = &host.JoinEngine{Catalog: catalog, Source: s, Eval: eval}
	return s
}

func (s *Store) tableName(t *host.Table) *string {
	return aws.String(s.config.TablePrefix + t.Name)
}

func (s *Store) key(t *host.Table, id any) (map[string]types.AttributeValue, error) {
	pk := t.PK()
	v, err := pk.Coerce(id)
	if err != nil {
		return nil, err
	}
	if pk.Type == host.TypeInteger {
		if _, ok := v.(int64); !ok {
			return nil, fmt.Errorf("key %v is not an integer", id)
		}
	} else {
		v = host.KeyString(v)
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	return map[string]types.AttributeValue{pk.Name: av}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.call(func() (any, error) {
		return s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName: aws.String(s.config.TablePrefix + s.config.SequenceTable),
			Limit:     aws.Int32(1),
		})
	})
	return err
}

func (s *Store) GetJoinedRows(ctx context.Context, table *host.Table, q host.Query) ([]host.Row, error) {
	return s.engine.Run(ctx, table, q)
}

// SelectRows scans the table with a filter expression. Matches are checked
// again locally because DynamoDB compares numbers and strings by type.
func (s *Store) SelectRows(ctx context.Context, table *host.Table, where host.Where) ([]host.Row, error) {
	input := &dynamodb.ScanInput{TableName: s.tableName(table)}
	if len(where) > 0 {
		cond, err := filterCondition(table, where)
		if err != nil {
			return nil, err
		}
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var rows []host.Row
	for {
		out, err := s.call(func() (any, error) { return s.client.Scan(ctx, input) })
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table.Name, err)
		}
		page := out.(*dynamodb.ScanOutput)
		for _, item := range page.Items {
			row, err := decodeRow(table, item)
			if err != nil {
				return nil, err
			}
			if where.Matches(row) {
				rows = append(rows, row)
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func (s *Store) GetRow(ctx context.Context, table *host.Table, where host.Where) (host.Row, error) {
	if id, ok := where[table.PKName()]; ok && len(where) == 1 {
		return s.getByID(ctx, table, id)
	}
	rows, err := s.SelectRows(ctx, table, where)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, host.ErrRowNotFound
	}
	host.SortRows(rows, table.PKName(), "", false)
	return rows[0], nil
}

func (s *Store) getByID(ctx context.Context, table *host.Table, id any) (host.Row, error) {
	key, err := s.key(table, id)
	if err != nil {
		return nil, err
	}
	out, err := s.call(func() (any, error) {
		return s.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: s.tableName(table), Key: key})
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s row: %w", table.Name, err)
	}
	item := out.(*dynamodb.GetItemOutput).Item
	if item == nil {
		return nil, host.ErrRowNotFound
	}
	return decodeRow(table, item)
}

func (s *Store) InsertRow(ctx context.Context, table *host.Table, values host.Row, user *host.User) (any, error) {
	if err := host.CheckInsert(table, user); err != nil {
		return nil, err
	}
	values = values.Clone()
	host.StampOwner(table, values, user)
	for name := range values {
		if err := checkColumn(table, name); err != nil {
			return nil, err
		}
	}

	pk := table.PK()
	if host.IsNull(values[pk.Name]) {
		if pk.Type == host.TypeInteger {
			id, err := s.nextID(ctx, table)
			if err != nil {
				return nil, err
			}
			values[pk.Name] = id
		} else {
			values[pk.Name] = uuid.NewString()
		}
	}

	item, err := encodeRow(values)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name(pk.Name).AttributeNotExists()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = s.call(func() (any, error) {
		return s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                s.tableName(table),
			Item:                     item,
			ConditionExpression:      expr.Condition(),
			ExpressionAttributeNames: expr.Names(),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("inserting into %s: %w", table.Name, err)
	}

	s.logger.Debug("Row inserted",
		zap.String("table", table.Name),
		zap.String("id", host.KeyString(values[pk.Name])),
	)
	return values[pk.Name], nil
}

// nextID atomically increments the table's counter in the sequence table.
func (s *Store) nextID(ctx context.Context, table *host.Table) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name("value"), expression.Value(1))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}
	out, err := s.call(func() (any, error) {
		return s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.config.TablePrefix + s.config.SequenceTable),
			Key:                       map[string]types.AttributeValue{"table": &types.AttributeValueMemberS{Value: table.Name}},
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("allocating id for %s: %w", table.Name, err)
	}
	attr, ok := out.(*dynamodb.UpdateItemOutput).Attributes["value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("allocating id for %s: missing counter value", table.Name)
	}
	return strconv.ParseInt(attr.Value, 10, 64)
}

func (s *Store) UpdateRow(ctx context.Context, table *host.Table, values host.Row, id any, user *host.User) error {
	existing, err := s.getByID(ctx, table, id)
	if err != nil {
		return err
	}
	if err := host.CheckOwnership(s.eval, table, existing, user); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	pk := table.PKName()
	var update expression.UpdateBuilder
	for _, name := range host.Where(values).Keys() {
		if err := checkColumn(table, name); err != nil {
			return err
		}
		if name == pk {
			return fmt.Errorf("updating %s: primary key is immutable", table.Name)
		}
		if values[name] == nil {
			update = update.Remove(expression.Name(name))
		} else {
			update = update.Set(expression.Name(name), expression.Value(values[name]))
		}
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name(pk).AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	key, err := s.key(table, id)
	if err != nil {
		return err
	}

	_, err = s.call(func() (any, error) {
		return s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 s.tableName(table),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return host.ErrRowNotFound
		}
		return fmt.Errorf("updating %s: %w", table.Name, err)
	}
	return nil
}

func (s *Store) DeleteRows(ctx context.Context, table *host.Table, where host.Where, user *host.User) error {
	if len(where) == 0 {
		return errors.New("refusing to delete without a filter")
	}
	var rows []host.Row
	if id, ok := where[table.PKName()]; ok && len(where) == 1 {
		row, err := s.getByID(ctx, table, id)
		if errors.Is(err, host.ErrRowNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rows = []host.Row{row}
	} else {
		var err error
		if rows, err = s.SelectRows(ctx, table, where); err != nil {
			return err
		}
	}

	for _, r := range rows {
		if err := host.CheckOwnership(s.eval, table, r, user); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := s.deleteOne(ctx, table, r[table.PKName()], user); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deleteOne(ctx context.Context, table *host.Table, id any, user *host.User) error {
	if err := s.applyOnDelete(ctx, table, id, user); err != nil {
		return err
	}
	key, err := s.key(table, id)
	if err != nil {
		return err
	}
	_, err = s.call(func() (any, error) {
		return s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: s.tableName(table), Key: key})
	})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table.Name, err)
	}
	return nil
}

// applyOnDelete enforces the referential actions of Key fields pointing at
// the row being deleted, since DynamoDB has no foreign keys.
func (s *Store) applyOnDelete(ctx context.Context, table *host.Table, id any, user *host.User) error {
	for _, ref := range s.catalog.Tables() {
		for _, f := range ref.Fields {
			if !f.IsKey() || f.RefTable != table.Name {
				continue
			}
			dependants, err := s.SelectRows(ctx, ref, host.Where{f.Name: id})
			if err != nil {
				return err
			}
			if len(dependants) == 0 {
				continue
			}
			switch f.OnDelete {
			case host.OnDeleteCascade:
				for _, d := range dependants {
					if err := s.deleteOne(ctx, ref, d[ref.PKName()], user); err != nil {
						return err
					}
				}
			case host.OnDeleteSetNull:
				for _, d := range dependants {
					if err := s.UpdateRow(ctx, ref, host.Row{f.Name: nil}, d[ref.PKName()], user); err != nil {
						return err
					}
				}
			default:
				return fmt.Errorf("deleting from %s: FOREIGN KEY constraint failed: %s.%s references row %s",
					table.Name, ref.Name, f.Name, host.KeyString(id))
			}
		}
	}
	return nil
}

func (s *Store) call(fn func() (any, error)) (any, error) {
	return s.breaker.Execute(fn)
}

func checkColumn(table *host.Table, name string) error {
	if name != "" && name == table.OwnershipField {
		return nil
	}
	_, err := table.Field(name)
	return err
}

func filterCondition(table *host.Table, where host.Where) (expression.ConditionBuilder, error) {
	var cond expression.ConditionBuilder
	for i, k := range where.Keys() {
		if err := checkColumn(table, k); err != nil {
			return cond, err
		}
		var c expression.ConditionBuilder
		if where[k] == nil {
			c = expression.Name(k).AttributeNotExists()
		} else {
			c = expression.Name(k).Equal(expression.Value(where[k]))
		}
		if i == 0 {
			cond = c
		} else {
			cond = cond.And(c)
		}
	}
	return cond, nil
}

func encodeRow(values host.Row) (map[string]types.AttributeValue, error) {
	clean := make(map[string]any, len(values))
	for k, v := range values {
		if v != nil {
			clean[k] = v
		}
	}
	item, err := attributevalue.MarshalMap(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row: %w", err)
	}
	return item, nil
}

func decodeRow(table *host.Table, item map[string]types.AttributeValue) (host.Row, error) {
	row := host.Row{}
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s row: %w", table.Name, err)
	}
	for _, f := range table.Fields {
		if _, ok := row[f.Name]; !ok {
			row[f.Name] = nil
		}
	}
	return table.NormalizeRow(row), nil
}
