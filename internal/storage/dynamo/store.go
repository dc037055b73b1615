// Package dynamo stores users and transactions in DynamoDB. Tables are
// created on first use when they do not exist yet.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	userIDIndex = "id-index"
	timeLayout  = "2006-01-02T15:04:05.000000000Z"
	tableWait   = 2 * time.Minute
)

// Config selects the DynamoDB endpoint and table names.
type Config struct {
	Region      string
	Endpoint    string // empty for the AWS default resolver
	TablePrefix string
}

type Store struct {
	cfg        Config
	usersTable string
	txTable    string
	conn       *storage.Lazy[*dynamodb.Client]
	logger     *log.Logger
}

type userItem struct {
	Email        string `dynamodbav:"email"`
	ID           string `dynamodbav:"id"`
	Name         string `dynamodbav:"name"`
	PasswordHash string `dynamodbav:"password_hash"`
	CreatedAt    string `dynamodbav:"created_at"`
}

type transactionItem struct {
	UserID      string  `dynamodbav:"user_id"`
	ID          string  `dynamodbav:"id"`
	Description string  `dynamodbav:"description"`
	Amount      float64 `dynamodbav:"amount"`
	Category    string  `dynamodbav:"category"`
	Type        string  `dynamodbav:"type"`
	Date        string  `dynamodbav:"date"`
	CreatedAt   string  `dynamodbav:"created_at"`
	UpdatedAt   string  `dynamodbav:"updated_at"`
}

func New(cfg Config, logger *log.Logger) *Store {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		cfg:        cfg,
		usersTable: cfg.TablePrefix + "users",
		txTable:    cfg.TablePrefix + "transactions",
		logger:     logger.WithComponent(log.ComponentStorage),
	}
	s.conn = storage.NewLazy[*dynamodb.Client](s.dial, nil)
	return s
}

func (s *Store) dial(ctx context.Context) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.cfg.Region)}
	if s.cfg.Endpoint != "" {
		endpoint := s.cfg.Endpoint
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
		// DynamoDB Local accepts any credentials.
		if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
			opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)

	if err := s.ensureTables(ctx, client); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "DynamoDB tables ready",
		"users_table", s.usersTable,
		"transactions_table", s.txTable)
	return client, nil
}

func (s *Store) ensureTables(ctx context.Context, client *dynamodb.Client) error {
	users := &dynamodb.CreateTableInput{
		TableName: aws.String(s.usersTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("email"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(userIDIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
		BillingMode: types.BillingModePayPerRequest,
	}
	txs := &dynamodb.CreateTableInput{
		TableName: aws.String(s.txTable),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	for _, in := range []*dynamodb.CreateTableInput{users, txs} {
		if err := ensureTable(ctx, client, in); err != nil {
			return err
		}
	}
	return nil
}

func ensureTable(ctx context.Context, client *dynamodb.Client, in *dynamodb.CreateTableInput) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", aws.ToString(in.TableName), err)
	}

	_, err = client.CreateTable(ctx, in)
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", aws.ToString(in.TableName), err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName}, tableWait); err != nil {
		return fmt.Errorf("wait for table %s: %w", aws.ToString(in.TableName), err)
	}
	return nil
}

func (s *Store) client(ctx context.Context) (*dynamodb.Client, error) {
	c, err := s.conn.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect dynamodb: %w", err)
	}
	return c, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(userItem{
		Email:        core.NormalizeEmail(u.Email),
		ID:           u.ID,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    formatTime(u.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("email"))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.usersTable),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return storage.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	client, err := s.client(ctx)
	if err != nil {
		return core.User{}, err
	}
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.usersTable),
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: core.NormalizeEmail(email)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return core.User{}, core.ErrNotFound
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return item.toUser()
}

func (s *Store) GetUserByID(ctx context.Context, id string) (core.User, error) {
	client, err := s.client(ctx)
	if err != nil {
		return core.User{}, err
	}
	keyExpr := expression.Key("id").Equal(expression.Value(id))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return core.User{}, fmt.Errorf("build key condition: %w", err)
	}
	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.usersTable),
		IndexName:                 aws.String(userIDIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	if len(out.Items) == 0 {
		return core.User{}, core.ErrNotFound
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return core.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return item.toUser()
}

func (s *Store) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(fromTransaction(tx))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.txTable),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("put transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	keyExpr := expression.Key("user_id").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	out := make([]core.Transaction, 0)
	pages := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.txTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query transactions: %w", err)
		}
		var items []transactionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}
		for _, item := range items {
			tx, err := item.toTransaction()
			if err != nil {
				return nil, err
			}
			out = append(out, tx)
		}
	}
	core.SortByDateDesc(out)
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	update := expression.
		Set(expression.Name("description"), expression.Value(tx.Description)).
		Set(expression.Name("amount"), expression.Value(tx.Amount)).
		Set(expression.Name("category"), expression.Value(tx.Category)).
		Set(expression.Name("type"), expression.Value(string(tx.Type))).
		Set(expression.Name("date"), expression.Value(formatTime(tx.Date))).
		Set(expression.Name("updated_at"), expression.Value(formatTime(tx.UpdatedAt)))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	_, err = client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.txTable),
		Key:                       transactionKey(tx.UserID, tx.ID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}
	_, err = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.txTable),
		Key:                      transactionKey(userID, id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	client, err := s.client(ctx)
	if err != nil {
		return err
	}
	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.txTable)})
	if err != nil {
		return fmt.Errorf("describe table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func transactionKey(userID, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
		"id":      &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func fromTransaction(tx core.Transaction) transactionItem {
	return transactionItem{
		UserID:      tx.UserID,
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      tx.Amount,
		Category:    tx.Category,
		Type:        string(tx.Type),
		Date:        formatTime(tx.Date),
		CreatedAt:   formatTime(tx.CreatedAt),
		UpdatedAt:   formatTime(tx.UpdatedAt),
	}
}

func (it transactionItem) toTransaction() (core.Transaction, error) {
	tx := core.Transaction{
		ID:          it.ID,
		UserID:      it.UserID,
		Description: it.Description,
		Amount:      it.Amount,
		Category:    it.Category,
		Type:        core.TransactionType(it.Type),
	}
	var err error
	if tx.Date, err = parseTime(it.Date); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt, err = parseTime(it.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(it.UpdatedAt); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (it userItem) toUser() (core.User, error) {
	created, err := parseTime(it.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return core.User{
		ID:           it.ID,
		Email:        it.Email,
		Name:         it.Name,
		PasswordHash: it.PasswordHash,
		CreatedAt:    created,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

var _ storage.Store = (*Store)(nil)
