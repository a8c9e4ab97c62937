package mongodb

import (
	"context"
	"fmt"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
)

type reportRepository struct {
	db *mongo.Database
}

func NewReportRepository(db *mongo.Database) repository.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) SumRevenue(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	return r.aggregate(ctx, "revenue", CollectionTransactions, revenuePipeline(window))
}

func (r *reportRepository) SumCOGS(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	return r.aggregate(ctx, "cogs", CollectionTransactions, cogsPipeline(window))
}

func (r *reportRepository) SumOperationalCosts(ctx context.Context, window domain.ReportWindow) (decimal.Decimal, error) {
	return r.aggregate(ctx, "operational_costs", CollectionOperationalCosts, operationalCostPipeline(window))
}

// totalResult keeps the raw $sum so Decimal128 money never passes through a float.
type totalResult struct {
	Total bson.RawValue `bson:"total"`
}

func (r *reportRepository) aggregate(ctx context.Context, name, collection string, pipeline mongo.Pipeline) (decimal.Decimal, error) {
	cursor, err := r.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		log.Error().Err(err).Str("aggregate", name).Msg("report: mongo aggregation failed")
		return decimal.Zero, fmt.Errorf("sum %s: %w", name, err)
	}

	var results []totalResult
	if err := cursor.All(ctx, &results); err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: decode: %w", name, err)
	}

	total, err := firstTotal(results)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", name, err)
	}
	return total, nil
}

// firstTotal returns zero when the pipeline matched nothing.
func firstTotal(results []totalResult) (decimal.Decimal, error) {
	if len(results) == 0 {
		return decimal.Zero, nil
	}
	return decimalFromBSON(results[0].Total)
}

func decimalFromBSON(v bson.RawValue) (decimal.Decimal, error) {
	switch v.Type {
	case bsontype.Decimal128:
		return decimal.NewFromString(v.Decimal128().String())
	case bsontype.Int32:
		return decimal.NewFromInt32(v.Int32()), nil
	case bsontype.Int64:
		return decimal.NewFromInt(v.Int64()), nil
	case bsontype.Double:
		return decimal.NewFromFloat(v.Double()), nil
	case bsontype.Null, bsontype.Undefined, 0:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected total of type %s", v.Type)
	}
}
