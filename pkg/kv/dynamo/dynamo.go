// Package dynamo implements kv.Store on top of Amazon DynamoDB.
//
// Every table uses a single string hash key "id". Writes that acquire or release
// locks are sent as one TransactWriteItems call so the item and its locks land
// together or not at all.
package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-kv-service/pkg/kv"
)

// API is the part of *dynamodb.Client the store uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

const (
	pkName           = "#pk"
	conditionExists  = "attribute_exists(" + pkName + ")"
	conditionMissing = "attribute_not_exists(" + pkName + ")"
	tableWaitTimeout = 2 * time.Minute
)

type Store struct {
	api API
	log *zap.Logger
}

var _ kv.Store = (*Store)(nil)

func New(api API, log *zap.Logger) *Store {
	return &Store{
		api: api,
		log: log.Named("dynamo"),
	}
}

func (s *Store) Put(ctx context.Context, table string, item kv.Item, opts ...kv.WriteOption) error {
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return err
	}
	o := kv.ApplyOptions(opts...)
	if !o.HasLocks() {
		_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(table),
			Item:      av,
		})
		return err
	}

	write := types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(table),
		Item:      av,
	}}
	return s.transact(ctx, write, o, kv.ErrConditionFailed)
}

func (s *Store) Get(ctx context.Context, table, id string) (kv.Item, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, kv.ErrNotFound
	}
	return unmarshalItem(out.Item)
}

func (s *Store) Update(ctx context.Context, table, id string, upd *kv.Update, opts ...kv.WriteOption) (kv.Item, error) {
	expr := upd.Expression()
	names := map[string]string{pkName: kv.KeyAttr}
	for k, v := range expr.Names {
		names[k] = v
	}
	values, err := attributevalue.MarshalMap(expr.Values)
	if err != nil {
		return nil, err
	}

	o := kv.ApplyOptions(opts...)
	if !o.HasLocks() {
		out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(table),
			Key:                       key(id),
			UpdateExpression:          aws.String(expr.Text),
			ConditionExpression:       aws.String(conditionExists),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				return nil, kv.ErrNotFound
			}
			return nil, err
		}
		return unmarshalItem(out.Attributes)
	}

	write := types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(table),
		Key:                       key(id),
		UpdateExpression:          aws.String(expr.Text),
		ConditionExpression:       aws.String(conditionExists),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}}
	if err := s.transact(ctx, write, o, kv.ErrNotFound); err != nil {
		return nil, err
	}
	// transactional updates cannot return the new image
	return s.Get(ctx, table, id)
}

func (s *Store) Delete(ctx context.Context, table, id string, opts ...kv.WriteOption) error {
	o := kv.ApplyOptions(opts...)
	if !o.HasLocks() {
		_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                aws.String(table),
			Key:                      key(id),
			ConditionExpression:      aws.String(conditionExists),
			ExpressionAttributeNames: map[string]string{pkName: kv.KeyAttr},
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return kv.ErrNotFound
		}
		return err
	}

	write := types.TransactWriteItem{Delete: &types.Delete{
		TableName:                aws.String(table),
		Key:                      key(id),
		ConditionExpression:      aws.String(conditionExists),
		ExpressionAttributeNames: map[string]string{pkName: kv.KeyAttr},
	}}
	return s.transact(ctx, write, o, kv.ErrNotFound)
}

func (s *Store) Scan(ctx context.Context, table string, filters ...kv.Filter) ([]kv.Item, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if len(filters) > 0 {
		cond := expression.Name(filters[0].Name).Equal(expression.Value(filters[0].Value))
		for _, f := range filters[1:] {
			cond = cond.And(expression.Name(f.Name).Equal(expression.Value(f.Value)))
		}
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, err
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	items := make([]kv.Item, 0)
	p := dynamodb.NewScanPaginator(s.api, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, av := range page.Items {
			item, err := unmarshalItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// transact sends the main write together with the lock writes. A failed
// condition on the main write maps to mainErr, on a lock to kv.ErrConditionFailed.
func (s *Store) transact(ctx context.Context, main types.TransactWriteItem, o kv.WriteOptions, mainErr error) error {
	writes := make([]types.TransactWriteItem, 0, 1+len(o.Acquire)+len(o.Release))
	writes = append(writes, main)
	for _, l := range o.Release {
		writes = append(writes, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(l.Table),
			Key:       key(l.ID),
		}})
	}
	for _, l := range o.Acquire {
		av, err := attributevalue.MarshalMap(map[string]any(l.Item()))
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{Put: &types.Put{
			TableName:                aws.String(l.Table),
			Item:                     av,
			ConditionExpression:      aws.String(conditionMissing),
			ExpressionAttributeNames: map[string]string{pkName: kv.KeyAttr},
		}})
	}

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err == nil {
		return nil
	}
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return err
	}
	for i, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 {
			return mainErr
		}
		return kv.ErrConditionFailed
	}
	s.log.Warn("transaction canceled", zap.Error(err))
	return err
}

// EnsureTables creates the missing tables with an "id" hash key and waits until they are active.
func (s *Store) EnsureTables(ctx context.Context, tables ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, table := range tables {
		table := table
		g.Go(func() error {
			return s.ensureTable(ctx, table)
		})
	}
	return g.Wait()
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	s.log.Info("creating table", zap.String("table", table))
	_, err = s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: aws.String(kv.KeyAttr),
			AttributeType: types.ScalarAttributeTypeS,
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: aws.String(kv.KeyAttr),
			KeyType:       types.KeyTypeHash,
		}},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return err
		}
	}
	return dynamodb.NewTableExistsWaiter(s.api).Wait(ctx,
		&dynamodb.DescribeTableInput{TableName: aws.String(table)}, tableWaitTimeout)
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		kv.KeyAttr: &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalItem(av map[string]types.AttributeValue) (kv.Item, error) {
	item := make(kv.Item, len(av))
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, err
	}
	return item, nil
}
