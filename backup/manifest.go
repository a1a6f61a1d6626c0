package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentBackup is returned by DynamoCommitStore.CommitGeneration when
// another writer committed a generation first.
var ErrConcurrentBackup = errors.New("backup: concurrent generation commit detected")

// CommitStore coordinates concurrent Engine.Backup callers writing
// snapshots to the same Store, since plain object overwrites are
// last-writer-wins: it gives the "latest complete backup" pointer atomic
// compare-and-swap semantics instead.
type CommitStore interface {
	// LatestGeneration returns the most recently committed generation
	// number and its manifest name, or (0, "", nil) if none has ever been
	// committed.
	LatestGeneration(ctx context.Context) (generation uint64, manifestName string, err error)
	// CommitGeneration atomically advances the pointer to manifestName,
	// failing with ErrConcurrentBackup if another caller committed a
	// generation first.
	CommitGeneration(ctx context.Context, manifestName string) (generation uint64, err error)
}

// DynamoClient is the subset of *dynamodb.Client a DynamoCommitStore needs,
// adapted from the teacher's blobstore/s3.DDBClient.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoCommitStore implements CommitStore with DynamoDB conditional
// writes, adapted from the teacher's blobstore/s3.DDBCommitStore (which
// uses the same table shape to commit manifest pointers for its own
// concurrent writers).
//
// Table schema: partition key base_uri (string), sort key generation
// (number).
type DynamoCommitStore struct {
	client    DynamoClient
	tableName string
	baseURI   string // identifies the backup Store this commit store guards
}

// NewDynamoCommitStore creates a DynamoCommitStore against an existing
// DynamoDB table.
func NewDynamoCommitStore(client DynamoClient, tableName, baseURI string) *DynamoCommitStore {
	return &DynamoCommitStore{client: client, tableName: tableName, baseURI: baseURI}
}

func (s *DynamoCommitStore) LatestGeneration(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // descending, latest generation first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("backup: query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	genAttr, ok := item["generation"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("backup: invalid generation attribute in commit table")
	}
	nameAttr, ok := item["manifest_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("backup: invalid manifest_name attribute in commit table")
	}

	var generation uint64
	if _, err := fmt.Sscanf(genAttr.Value, "%d", &generation); err != nil {
		return 0, "", fmt.Errorf("backup: parse generation: %w", err)
	}
	return generation, nameAttr.Value, nil
}

func (s *DynamoCommitStore) CommitGeneration(ctx context.Context, manifestName string) (uint64, error) {
	current, _, err := s.LatestGeneration(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"generation":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"manifest_name": &types.AttributeValueMemberS{Value: manifestName},
		},
		ConditionExpression: aws.String("attribute_not_exists(generation)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentBackup
		}
		return 0, fmt.Errorf("backup: commit generation: %w", err)
	}
	return next, nil
}
