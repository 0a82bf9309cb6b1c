package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"prospect-sim/internal/domain"
	"prospect-sim/internal/objection"
	"prospect-sim/internal/taxonomy"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	condNew      = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
	condExchange = "attribute_exists(PK) AND turns = :prev AND #ttl = :ttl"
)

var (
	// ErrSessionNotFound is returned when a session has no live metadata record.
	ErrSessionNotFound = errors.New("repository: session not found")
	// ErrConcurrentUpdate is returned when another exchange advanced the
	// session first. The caller may reload the session and retry.
	ErrConcurrentUpdate = errors.New("repository: session updated concurrently")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Exchange is one rep message and the prospect reply it produced, plus the
// analytics computed for that turn. Turn is the session turn count after the
// exchange is applied. ExpiresAt must be the session's expiry as returned by
// GetSession.
type Exchange struct {
	SessionID     string
	Turn          int
	Rep           domain.ConversationMessage
	Prospect      domain.ConversationMessage
	Objection     objection.State
	BuyingSignals []taxonomy.SignalTag
	Source        string
	Tone          string
	NextAction    string
	ExpiresAt     time.Time
}

// Client wraps a DynamoDB table for practice sessions.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

type sessionRecord struct {
	PK               string                 `dynamodbav:"PK"`
	SK               string                 `dynamodbav:"SK"`
	SessionID        string                 `dynamodbav:"sessionId"`
	Persona          domain.ProspectPersona `dynamodbav:"persona"`
	Difficulty       string                 `dynamodbav:"difficulty"`
	Personality      string                 `dynamodbav:"personality"`
	SalesMethodology string                 `dynamodbav:"salesMethodology,omitempty"`
	Turns            int                    `dynamodbav:"turns"`
	CreatedAt        time.Time              `dynamodbav:"createdAt"`
	LastActivity     time.Time              `dynamodbav:"lastActivity"`
	TTL              int64                  `dynamodbav:"ttl"`
}

type turnRecord struct {
	PK            string           `dynamodbav:"PK"`
	SK            string           `dynamodbav:"SK"`
	SessionID     string           `dynamodbav:"sessionId"`
	Turn          int              `dynamodbav:"turn"`
	Role          domain.Speaker   `dynamodbav:"role"`
	Message       string           `dynamodbav:"message"`
	Timestamp     time.Time        `dynamodbav:"timestamp"`
	Objection     *objection.State `dynamodbav:"objection,omitempty"`
	BuyingSignals []string         `dynamodbav:"buyingSignals,omitempty"`
	Source        string           `dynamodbav:"source,omitempty"`
	Tone          string           `dynamodbav:"tone,omitempty"`
	NextAction    string           `dynamodbav:"nextAction,omitempty"`
	TTL           int64            `dynamodbav:"ttl"`
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// msgSK orders messages by turn, then rep (0) before prospect (1).
func msgSK(turn, position int) string {
	return fmt.Sprintf("%s%06d#%d", skPrefixMsg, turn, position)
}

// ttlValue returns a Unix timestamp 30 days after t. A session and all of its
// messages share the value computed at creation, so they expire together.
func ttlValue(t time.Time) int64 {
	return t.Add(ttlDuration).Unix()
}

func (c *Client) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// CreateSession writes the session metadata record. It fails if the id exists.
// A zero ExpiresAt defaults to 30 days from now.
func (c *Client) CreateSession(ctx context.Context, s domain.Session) error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("repository: CreateSession: session id is required")
	}
	ttl := ttlValue(c.now())
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Unix()
	}
	rec := sessionRecord{
		PK:               sessionPK(s.ID),
		SK:               skMeta,
		SessionID:        s.ID,
		Persona:          s.Persona,
		Difficulty:       string(s.Difficulty),
		Personality:      string(s.Personality),
		SalesMethodology: string(s.SalesMethodology),
		Turns:            s.Turns,
		CreatedAt:        s.CreatedAt.UTC(),
		LastActivity:     s.LastActivity.UTC(),
		TTL:              ttl,
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("repository: CreateSession marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(condNew),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// GetSession loads session metadata with a consistent read. A session past its
// expiry is reported as not found even before DynamoDB sweeps it.
func (c *Client) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, ErrSessionNotFound
	}

	var rec sessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetSession unmarshal: %w", err)
	}
	if rec.TTL > 0 && c.now().Unix() >= rec.TTL {
		return domain.Session{}, ErrSessionNotFound
	}
	return domain.Session{
		ID:               rec.SessionID,
		Persona:          rec.Persona,
		Difficulty:       domain.Difficulty(rec.Difficulty),
		Personality:      domain.Personality(rec.Personality),
		SalesMethodology: domain.SalesMethodology(rec.SalesMethodology),
		Turns:            rec.Turns,
		CreatedAt:        rec.CreatedAt,
		LastActivity:     rec.LastActivity,
		ExpiresAt:        time.Unix(rec.TTL, 0).UTC(),
	}, nil
}

// GetHistory returns every message of a session in chronological order.
// Objection state is recomputed from the full history, so no window applies.
func (c *Client) GetHistory(ctx context.Context, sessionID string) ([]domain.ConversationMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var msgs []domain.ConversationMessage
	pages := dynamodb.NewQueryPaginator(c.api, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory query: %w", err)
		}
		var recs []turnRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		for _, r := range recs {
			if r.Role != domain.SpeakerRep && r.Role != domain.SpeakerProspect {
				return nil, fmt.Errorf("repository: GetHistory: item %q has unknown role %q", r.SK, r.Role)
			}
			msgs = append(msgs, domain.ConversationMessage{
				Role:      r.Role,
				Message:   r.Message,
				Timestamp: r.Timestamp,
			})
		}
	}
	return msgs, nil
}

// SaveExchange writes both messages and advances the session turn counter in
// one transaction. The counter update is conditioned on the previous value so
// concurrent replies to the same session cannot interleave; the loser gets
// ErrConcurrentUpdate. Messages carry the session's TTL, and the update checks
// it, so no message outlives or predeceases its session.
func (c *Client) SaveExchange(ctx context.Context, ex Exchange) error {
	if strings.TrimSpace(ex.SessionID) == "" {
		return errors.New("repository: SaveExchange: session id is required")
	}
	if ex.Turn < 1 {
		return errors.New("repository: SaveExchange: turn must be positive")
	}
	if ex.ExpiresAt.IsZero() {
		return errors.New("repository: SaveExchange: session expiry is required")
	}

	now := c.now().UTC()
	ttl := ex.ExpiresAt.Unix()
	state := ex.Objection
	rep := turnRecord{
		PK:            sessionPK(ex.SessionID),
		SK:            msgSK(ex.Turn, 0),
		SessionID:     ex.SessionID,
		Turn:          ex.Turn,
		Role:          domain.SpeakerRep,
		Message:       ex.Rep.Message,
		Timestamp:     ex.Rep.Timestamp.UTC(),
		Objection:     &state,
		BuyingSignals: taxonomy.SignalStrings(ex.BuyingSignals),
		TTL:           ttl,
	}
	prospect := turnRecord{
		PK:         sessionPK(ex.SessionID),
		SK:         msgSK(ex.Turn, 1),
		SessionID:  ex.SessionID,
		Turn:       ex.Turn,
		Role:       domain.SpeakerProspect,
		Message:    ex.Prospect.Message,
		Timestamp:  ex.Prospect.Timestamp.UTC(),
		Source:     ex.Source,
		Tone:       ex.Tone,
		NextAction: ex.NextAction,
		TTL:        ttl,
	}

	repItem, err := attributevalue.MarshalMap(rep)
	if err != nil {
		return fmt.Errorf("repository: SaveExchange marshal rep: %w", err)
	}
	prospectItem, err := attributevalue.MarshalMap(prospect)
	if err != nil {
		return fmt.Errorf("repository: SaveExchange marshal prospect: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]any{
		":turns": ex.Turn,
		":prev":  ex.Turn - 1,
		":now":   now,
		":ttl":   ttl,
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange marshal meta: %w", err)
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                repItem,
				ConditionExpression: aws.String(condNew),
			}},
			{Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                prospectItem,
				ConditionExpression: aws.String(condNew),
			}},
			{Update: &types.Update{
				TableName:                 aws.String(c.tableName),
				Key:                       c.key(ex.SessionID),
				UpdateExpression:          aws.String("SET turns = :turns, lastActivity = :now"),
				ConditionExpression:       aws.String(condExchange),
				ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
				ExpressionAttributeValues: values,
			}},
		},
	})
	if isConditionFailure(err) {
		return fmt.Errorf("repository: SaveExchange: %w: %w", ErrConcurrentUpdate, err)
	}
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// isConditionFailure reports whether a transaction was cancelled because one
// of its condition checks failed.
func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, r := range canceled.CancellationReasons {
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
