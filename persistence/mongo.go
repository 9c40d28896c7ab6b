package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/signalforge/decisioncore/decision"
)

const (
	defaultDecisionCollection = "decision"
	defaultOutcomeCollection  = "decision_outcome"
	defaultOpTimeout          = 5 * time.Second
)

// MongoOptions configures a MongoStore, grounded on the
// features/run/mongo/clients/mongo.Options shape.
type MongoOptions struct {
	Client             *mongodriver.Client
	Database           string
	DecisionCollection string
	OutcomeCollection  string
	Timeout            time.Duration
}

// MongoStore implements Store over two append-only Mongo collections,
// grounded on features/run/mongo/clients/mongo/client.go's thin
// collection-interface wrapping.
type MongoStore struct {
	decisions decisionCollection
	outcomes  outcomeCollection
	timeout   time.Duration
}

// NewMongoStore constructs a MongoStore and ensures the required indices
// exist (spec §6.4): decision.correlation_id (unique), decision.symbol,
// decision.ts_ms, decision_outcome.decision_id, decision_outcome.symbol,
// decision_outcome.created_at.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	decisionColl := opts.DecisionCollection
	if decisionColl == "" {
		decisionColl = defaultDecisionCollection
	}
	outcomeColl := opts.OutcomeCollection
	if outcomeColl == "" {
		outcomeColl = defaultOutcomeCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	db := opts.Client.Database(opts.Database)
	decisionColl2 := db.Collection(decisionColl)
	outcomeColl2 := db.Collection(outcomeColl)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureDecisionIndexes(ctx, decisionColl2); err != nil {
		return nil, fmt.Errorf("ensure decision indexes: %w", err)
	}
	if err := ensureOutcomeIndexes(ctx, outcomeColl2); err != nil {
		return nil, fmt.Errorf("ensure decision_outcome indexes: %w", err)
	}

	decisions := mongoDecisionCollection{coll: decisionColl2}
	outcomes := mongoOutcomeCollection{coll: outcomeColl2}

	return &MongoStore{decisions: decisions, outcomes: outcomes, timeout: timeout}, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// InsertDecision appends a Decision row. A correlation_id collision
// surfaces as an error rather than silently overwriting: the unique index
// on correlation_id enforces append-only semantics at the store level
// (spec §6.4).
func (s *MongoStore) InsertDecision(ctx context.Context, d decision.Decision) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.decisions.InsertOne(ctx, d)
}

// InsertOutcome appends a DecisionOutcome row.
func (s *MongoStore) InsertOutcome(ctx context.Context, o decision.DecisionOutcome) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.outcomes.InsertOne(ctx, o)
}

// ByCorrelationID implements memory.Reader.
func (s *MongoStore) ByCorrelationID(ctx context.Context, correlationID string) (decision.Decision, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	d, found, err := s.decisions.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return decision.Decision{}, false, fmt.Errorf("find decision by correlation_id: %w", err)
	}
	return d, found, nil
}

// BySymbolSince implements memory.Reader.
func (s *MongoStore) BySymbolSince(ctx context.Context, symbol string, sinceMs int64) ([]decision.Decision, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.decisions.FindBySymbolSince(ctx, symbol, sinceMs)
	if err != nil {
		return nil, fmt.Errorf("find decisions by symbol since: %w", err)
	}
	return ds, nil
}

// LastN implements memory.Reader.
func (s *MongoStore) LastN(ctx context.Context, n int) ([]decision.Decision, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ds, err := s.decisions.FindLastN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("find last n decisions: %w", err)
	}
	return ds, nil
}
