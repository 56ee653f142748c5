package cache

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/models"
)

// DynamoDBAPI defines the interface for DynamoDB operations
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

const defaultTableName = "LedgerTreeCache"

// CacheItem is one cached account list as stored in DynamoDB
type CacheItem struct {
	Key       string           `dynamodbav:"key"`
	Data      []models.Account `dynamodbav:"data"`
	Timestamp int64            `dynamodbav:"timestamp"`
	TTL       int64            `dynamodbav:"ttl"`
}

// DynamoDBCache implements CacheProvider using DynamoDB
type DynamoDBCache struct {
	client    DynamoDBAPI
	tableName string
	cacheTTL  time.Duration
}

// NewDynamoDBCache creates a new DynamoDB cache provider. The table name
// comes from DYNAMODB_CACHE_TABLE.
func NewDynamoDBCache() (*DynamoDBCache, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, err
	}

	c := NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg))
	if name := os.Getenv("DYNAMODB_CACHE_TABLE"); name != "" {
		c.tableName = name
	}
	return c, nil
}

// NewDynamoDBCacheWithClient creates a new DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI) *DynamoDBCache {
	return &DynamoDBCache{
		client:    client,
		tableName: defaultTableName,
		cacheTTL:  DefaultTTL,
	}
}

// Initialize creates the DynamoDB table if it doesn't exist
func (c *DynamoDBCache) Initialize() error {
	ctx := context.TODO()

	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

// GetAccounts retrieves the account list of a category if cached
func (c *DynamoDBCache) GetAccounts(category models.Category) ([]models.Account, bool) {
	ctx := context.TODO()
	key := cacheKey(category)

	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       itemKey(key),
	})
	if err != nil || result.Item == nil {
		return nil, false
	}

	var item CacheItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false
	}

	// DynamoDB TTL deletion is lazy, so expiry is checked here too
	if time.Now().Unix() > item.TTL {
		if err := c.deleteKey(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("error deleting expired cache item")
		}
		return nil, false
	}

	return copyAccounts(item.Data), true
}

// SetAccounts stores the account list of a category
func (c *DynamoDBCache) SetAccounts(category models.Category, accounts []models.Account) {
	ctx := context.TODO()
	now := time.Now()
	key := cacheKey(category)

	item := CacheItem{
		Key:       key,
		Data:      copyAccounts(accounts),
		Timestamp: now.Unix(),
		TTL:       now.Add(c.cacheTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err == nil {
		_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(c.tableName),
			Item:      av,
		})
	}
	if err != nil {
		// a stale entry must not outlive a failed write
		logrus.WithError(err).WithField("key", key).Warn("dynamodb cache write failed")
		if err := c.deleteKey(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("error invalidating cache after write failure")
		}
	}
}

// Invalidate removes the cached list of one category
func (c *DynamoDBCache) Invalidate(category models.Category) {
	if err := c.deleteKey(context.Background(), cacheKey(category)); err != nil {
		logrus.WithError(err).WithField("category", category).Warn("dynamodb cache invalidation failed")
	}
}

// InvalidateCache removes the cached list of every known category
func (c *DynamoDBCache) InvalidateCache() {
	for _, def := range models.DefaultCategories {
		c.Invalidate(def.Category)
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}

func (c *DynamoDBCache) deleteKey(ctx context.Context, key string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       itemKey(key),
	})
	return err
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}
