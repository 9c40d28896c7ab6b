package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/signalforge/decisioncore/decision"
)

// decisionCollection and outcomeCollection narrow *mongodriver.Collection
// down to the operations MongoStore needs, matching the thin
// collection-interface pattern in
// features/run/mongo/clients/mongo/client.go. Narrowing the interface to
// exactly what's used keeps MongoStore's tests free of a live Mongo
// dependency.
type decisionCollection interface {
	InsertOne(ctx context.Context, d decision.Decision) error
	FindByCorrelationID(ctx context.Context, correlationID string) (decision.Decision, bool, error)
	FindBySymbolSince(ctx context.Context, symbol string, sinceMs int64) ([]decision.Decision, error)
	FindLastN(ctx context.Context, n int) ([]decision.Decision, error)
}

type outcomeCollection interface {
	InsertOne(ctx context.Context, o decision.DecisionOutcome) error
}

type mongoDecisionCollection struct {
	coll *mongodriver.Collection
}

func (c mongoDecisionCollection) InsertOne(ctx context.Context, d decision.Decision) error {
	_, err := c.coll.InsertOne(ctx, d)
	return err
}

func (c mongoDecisionCollection) FindByCorrelationID(ctx context.Context, correlationID string) (decision.Decision, bool, error) {
	var d decision.Decision
	err := c.coll.FindOne(ctx, bson.M{"correlation_id": correlationID}).Decode(&d)
	if err == mongodriver.ErrNoDocuments {
		return decision.Decision{}, false, nil
	}
	if err != nil {
		return decision.Decision{}, false, err
	}
	return d, true, nil
}

func (c mongoDecisionCollection) FindBySymbolSince(ctx context.Context, symbol string, sinceMs int64) ([]decision.Decision, error) {
	filter := bson.M{"symbol": symbol, "ts_ms": bson.M{"$gte": sinceMs}}
	opts := options.Find().SetSort(bson.D{{Key: "ts_ms", Value: 1}})
	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []decision.Decision
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c mongoDecisionCollection) FindLastN(ctx context.Context, n int) ([]decision.Decision, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts_ms", Value: -1}}).SetLimit(int64(n))
	cur, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []decision.Decision
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type mongoOutcomeCollection struct {
	coll *mongodriver.Collection
}

func (c mongoOutcomeCollection) InsertOne(ctx context.Context, o decision.DecisionOutcome) error {
	_, err := c.coll.InsertOne(ctx, o)
	return err
}

func ensureDecisionIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	models := []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "symbol", Value: 1}}},
		{Keys: bson.D{{Key: "ts_ms", Value: 1}}},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureOutcomeIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	models := []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "decision_id", Value: 1}}},
		{Keys: bson.D{{Key: "symbol", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}
