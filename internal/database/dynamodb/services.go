package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/ppp/pppctl/internal/constants"
	appErrors "github.com/ppp/pppctl/internal/errors"
	"github.com/ppp/pppctl/internal/logger"
	"github.com/ppp/pppctl/internal/service"
)

// ServiceRepository implements service.Repository using DynamoDB.
type ServiceRepository struct {
	client    Client
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

var _ service.Repository = (*ServiceRepository)(nil)

// NewServiceRepository creates a new DynamoDB-backed service repository.
func NewServiceRepository(client Client, tableName string, log *slog.Logger) *ServiceRepository {
	return &ServiceRepository{
		client:    client,
		tableName: tableName,
		logger:    log,
		now:       time.Now,
	}
}

// serviceItem represents the structure stored in DynamoDB.
type serviceItem struct {
	ServiceType string         `dynamodbav:"service_type"`
	Name        string         `dynamodbav:"name"`
	ID          string         `dynamodbav:"id"`
	State       string         `dynamodbav:"state"`
	Version     int            `dynamodbav:"version"`
	Fields      map[string]any `dynamodbav:"fields"`
	CreatedAt   time.Time      `dynamodbav:"created_at"`
	UpdatedAt   time.Time      `dynamodbav:"updated_at"`
}

func (i *serviceItem) toDocument() *service.Document {
	return &service.Document{
		ID:        i.ID,
		Type:      constants.ServiceType(i.ServiceType),
		Name:      i.Name,
		State:     constants.ServiceState(i.State),
		Version:   i.Version,
		Fields:    i.Fields,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func itemKey(serviceType constants.ServiceType, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"service_type": &types.AttributeValueMemberS{Value: string(serviceType)},
		"name":         &types.AttributeValueMemberS{Value: name},
	}
}

// buildUpsertExpression writes the declared fields, resets the state to FAILED and bumps the version.
// id and created_at are kept when the item already exists.
func buildUpsertExpression(fields map[string]any, id string, now time.Time) (expression.Expression, error) {
	update := expression.Set(
		expression.Name("fields"), expression.Value(fields),
	).
		Set(
			expression.Name("state"), expression.Value(string(constants.ServiceStateFailed)),
		).
		Set(
			expression.Name("updated_at"), expression.Value(now),
		).
		Set(
			expression.Name("id"),
			expression.IfNotExists(expression.Name("id"), expression.Value(id)),
		).
		Set(
			expression.Name("created_at"),
			expression.IfNotExists(expression.Name("created_at"), expression.Value(now)),
		).
		Set(
			expression.Name("version"),
			expression.Plus(
				expression.IfNotExists(expression.Name("version"), expression.Value(0)),
				expression.Value(1),
			),
		)

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build update expression: %w", err)
	}
	return expr, nil
}

// Upsert implements service.Repository.
func (r *ServiceRepository) Upsert(
	ctx context.Context,
	serviceType constants.ServiceType,
	name string,
	fields map[string]any,
) (*service.Document, constants.ServiceState, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, r.logger)

	if fields == nil {
		fields = map[string]any{}
	}
	now := r.now().UTC()
	id := uuid.NewString()

	expr, err := buildUpsertExpression(fields, id, now)
	if err != nil {
		reqLogger.Error("failed to build update expression", "error", err)
		return nil, "", appErrors.ErrInternalError("failed to build update", err)
	}

	logArgs := []any{
		"operation", "DynamoDB.UpdateItem",
		"table", r.tableName,
		"service_type", serviceType,
		"name", name,
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       itemKey(serviceType, name),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		reqLogger.Error("update item failed", "context", map[string]any{
			"error": err.Error(),
			"name":  name,
		})
		return nil, "", r.apiError("failed to save service", err)
	}

	doc := &service.Document{
		ID:        id,
		Type:      serviceType,
		Name:      name,
		State:     constants.ServiceStateFailed,
		Version:   1,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(out.Attributes) == 0 {
		return doc, "", nil
	}

	var old serviceItem
	if err = attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return nil, "", appErrors.ErrDatabaseError("failed to unmarshal previous service", err)
	}
	if old.ID != "" {
		doc.ID = old.ID
	}
	if !old.CreatedAt.IsZero() {
		doc.CreatedAt = old.CreatedAt
	}
	doc.Version = old.Version + 1

	return doc, constants.ServiceState(old.State), nil
}

// SetState implements service.Repository.
func (r *ServiceRepository) SetState(
	ctx context.Context,
	serviceType constants.ServiceType,
	name string,
	state constants.ServiceState,
) error {
	reqLogger := logger.DeriveRequestLogger(ctx, r.logger)

	expr, err := expression.NewBuilder().
		WithUpdate(
			expression.Set(
				expression.Name("state"), expression.Value(string(state)),
			).
				Set(
					expression.Name("updated_at"), expression.Value(r.now().UTC()),
				),
		).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		reqLogger.Error("failed to build update expression", "error", err)
		return appErrors.ErrInternalError("failed to build update", err)
	}

	logArgs := []any{
		"operation", "DynamoDB.UpdateItem",
		"table", r.tableName,
		"name", name,
		"state", state,
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       itemKey(serviceType, name),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return appErrors.ErrResourceMissing("service not found: " + name)
		}
		reqLogger.Error("update item failed", "context", map[string]any{
			"error": err.Error(),
			"name":  name,
		})
		return r.apiError("failed to update service state", err)
	}
	return nil
}

// Get implements service.Repository.
func (r *ServiceRepository) Get(
	ctx context.Context,
	serviceType constants.ServiceType,
	name string,
) (*service.Document, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, r.logger)

	logArgs := []any{
		"operation", "DynamoDB.GetItem",
		"table", r.tableName,
		"name", name,
	}
	logArgs = append(logArgs, logger.GetDeadlineInfo(ctx)...)
	reqLogger.Debug("calling external service", "context", logger.SliceToMap(logArgs))

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(serviceType, name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, r.apiError("failed to get service", err)
	}
	if out.Item == nil {
		return nil, appErrors.ErrResourceMissing("service not found: " + name)
	}

	var item serviceItem
	if err = attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.ErrDatabaseError("failed to unmarshal service", err)
	}
	return item.toDocument(), nil
}

// List implements service.Repository. Documents come back in sort key (name) order.
func (r *ServiceRepository) List(
	ctx context.Context,
	serviceType constants.ServiceType,
) ([]*service.Document, error) {
	reqLogger := logger.DeriveRequestLogger(ctx, r.logger)

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("service_type").Equal(expression.Value(string(serviceType)))).
		Build()
	if err != nil {
		return nil, appErrors.ErrInternalError("failed to build key condition", err)
	}

	reqLogger.Debug("calling external service", "context", map[string]string{
		"operation":    "DynamoDB.Query",
		"table":        r.tableName,
		"service_type": string(serviceType),
		"paginated":    "true",
	})

	docs := make([]*service.Document, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, queryErr := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if queryErr != nil {
			return nil, r.apiError("failed to query services", queryErr)
		}

		var items []serviceItem
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, appErrors.ErrDatabaseError("failed to unmarshal services", err)
		}
		for i := range items {
			docs = append(docs, items[i].toDocument())
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return docs, nil
}

// apiError maps a DynamoDB API failure to an application error.
// A missing table is reported as a missing resource so the operator can fix the configuration.
func (r *ServiceRepository) apiError(message string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
		return appErrors.ErrResourceMissing(fmt.Sprintf("services table %s not found", r.tableName))
	}
	return appErrors.ErrDatabaseError(message, err)
}
