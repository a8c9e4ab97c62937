package mongodb

import (
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// branchField is the reference from transactions and costs to their branch.
const branchField = "cabang"

// branchValue matches branch references stored either as ObjectIDs or plain strings.
func branchValue(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func windowMatch(window domain.ReportWindow, timeField string, extra bson.D) bson.D {
	match := append(bson.D{}, extra...)
	match = append(match, bson.E{Key: timeField, Value: bson.D{{Key: "$gte", Value: window.Start}}})
	if branch := strings.TrimSpace(window.BranchID); branch != "" {
		match = append(match, bson.E{Key: branchField, Value: branchValue(branch)})
	}
	return match
}

func totalGroup(expr interface{}) bson.D {
	return bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "total", Value: bson.D{{Key: "$sum", Value: expr}}},
	}}}
}

func revenuePipeline(window domain.ReportWindow) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: windowMatch(window, "createdAt", bson.D{{Key: "status", Value: domain.TransactionStatusCompleted}})}},
		totalGroup("$totalAmount"),
	}
}

func cogsPipeline(window domain.ReportWindow) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: windowMatch(window, "createdAt", bson.D{{Key: "status", Value: domain.TransactionStatusCompleted}})}},
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: CollectionProducts},
			{Key: "localField", Value: "items.product"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "productInfo"},
		}}},
		{{Key: "$unwind", Value: "$productInfo"}},
		totalGroup(bson.D{{Key: "$multiply", Value: bson.A{"$items.quantity", "$productInfo.purchasePrice"}}}),
	}
}

func operationalCostPipeline(window domain.ReportWindow) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: windowMatch(window, "date", nil)}},
		totalGroup("$amount"),
	}
}
