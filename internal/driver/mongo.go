package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements the capability contract for the document store. The
// operation vocabulary maps onto native collection calls; select-joined
// becomes a $lookup aggregation, the document store's own idiomatic path for
// the same workload shape.
type Mongo struct {
	DSN       string
	Database  string
	IOTimeout time.Duration
}

type mongoHandle struct {
	client *mongo.Client
	db     *mongo.Database
}

func (h *mongoHandle) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}

func (d *Mongo) Name() string { return "mongo" }

func (d *Mongo) database() string {
	if d.Database == "" {
		return "dbbench"
	}
	return d.Database
}

func (d *Mongo) Connect(ctx context.Context) (Handle, error) {
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.DSN))
	if err != nil {
		return nil, &ConnectionError{Backend: d.Name(), Err: err}
	}
	// Connect is lazy; Ping is what actually verifies reachability.
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &ConnectionError{Backend: d.Name(), Err: err}
	}
	return &mongoHandle{client: client, db: client.Database(d.database())}, nil
}

// ApplySchema creates the collections explicitly so Reset leaves the same
// "schema-present" state a relational backend has after its DDL ran.
func (d *Mongo) ApplySchema(ctx context.Context, h Handle) error {
	db := h.(*mongoHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	for _, coll := range Tables {
		if err := db.CreateCollection(ctx, coll); err != nil {
			if strings.Contains(err.Error(), "NamespaceExists") {
				continue
			}
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *Mongo) Reset(ctx context.Context, h Handle) error {
	db := h.(*mongoHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	// DropAll keeps _id and removes the battery's secondary indexes, so the
	// next run starts from the unindexed baseline.
	for _, coll := range []string{"customers", "orders"} {
		if _, err := db.Collection(coll).Indexes().DropAll(ctx); err != nil {
			if !strings.Contains(err.Error(), "ns not found") {
				return &SchemaError{Backend: d.Name(), Err: err}
			}
		}
	}
	for _, coll := range Tables {
		if _, err := db.Collection(coll).DeleteMany(ctx, bson.M{}); err != nil {
			return &SchemaError{Backend: d.Name(), Err: err}
		}
	}
	return nil
}

func (d *Mongo) CreateIndexes(ctx context.Context, h Handle) error {
	db := h.(*mongoHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	_, err := db.Collection("customers").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "city", Value: 1}},
	})
	if err != nil {
		return &SchemaError{Backend: d.Name(), Err: err}
	}
	_, err = db.Collection("orders").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "customer_id", Value: 1}},
	})
	if err != nil {
		return &SchemaError{Backend: d.Name(), Err: err}
	}
	return nil
}

func (d *Mongo) Execute(ctx context.Context, h Handle, op Op, p *Payload) (time.Duration, error) {
	db := h.(*mongoHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch op {
	case OpInsertOne:
		c := p.Customer
		_, err = db.Collection("customers").InsertOne(ctx, bson.M{
			"_id": c.ID, "name": c.Name, "email": c.Email,
			"city": c.City, "created_at": c.CreatedAt,
		})
	case OpInsertBatch:
		err = d.insertBatch(ctx, db, p)
	case OpSelectSimple:
		cur, ferr := db.Collection("customers").Find(ctx,
			bson.M{"city": p.City},
			options.Find().SetLimit(int64(p.Limit)))
		err = drainMongo(ctx, cur, ferr)
	case OpSelectJoined:
		pipeline := mongo.Pipeline{
			{{Key: "$lookup", Value: bson.M{
				"from": "customers", "localField": "customer_id",
				"foreignField": "_id", "as": "customer_info",
			}}},
			{{Key: "$lookup", Value: bson.M{
				"from": "products", "localField": "product_id",
				"foreignField": "_id", "as": "product_info",
			}}},
			{{Key: "$match", Value: bson.M{"total_amount": bson.M{"$gt": 100}}}},
			{{Key: "$sort", Value: bson.M{"order_date": -1}}},
			{{Key: "$limit", Value: p.Limit}},
		}
		cur, ferr := db.Collection("orders").Aggregate(ctx, pipeline)
		err = drainMongo(ctx, cur, ferr)
	case OpUpdateByKey:
		_, err = db.Collection("products").UpdateOne(ctx,
			bson.M{"_id": p.Key, "stock": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"stock": -1}})
	case OpDeleteByKey:
		_, err = db.Collection("orders").DeleteOne(ctx, bson.M{"_id": p.Key})
	default:
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: fmt.Errorf("unknown operation")}
	}
	elapsed := time.Since(start)

	if err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: op, Err: err}
	}
	return elapsed, nil
}

func (d *Mongo) insertBatch(ctx context.Context, db *mongo.Database, p *Payload) error {
	if len(p.Customers) > 0 {
		docs := make([]any, len(p.Customers))
		for i, c := range p.Customers {
			docs[i] = bson.M{
				"_id": c.ID, "name": c.Name, "email": c.Email,
				"city": c.City, "created_at": c.CreatedAt,
			}
		}
		if _, err := db.Collection("customers").InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(p.Products) > 0 {
		docs := make([]any, len(p.Products))
		for i, pr := range p.Products {
			docs[i] = bson.M{
				"_id": pr.ID, "name": pr.Name, "category": pr.Category,
				"price": pr.Price, "stock": pr.Stock,
			}
		}
		if _, err := db.Collection("products").InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(p.Orders) > 0 {
		docs := make([]any, len(p.Orders))
		for i, o := range p.Orders {
			docs[i] = bson.M{
				"_id": o.ID, "customer_id": o.CustomerID, "product_id": o.ProductID,
				"quantity": o.Quantity, "order_date": o.PlacedAt, "total_amount": o.Amount,
			}
		}
		if _, err := db.Collection("orders").InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

func (d *Mongo) CountRows(ctx context.Context, h Handle, table string) (int64, error) {
	db := h.(*mongoHandle).db
	ctx, cancel := ioCtx(ctx, d.IOTimeout)
	defer cancel()
	n, err := db.Collection(table).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, &OperationError{Backend: d.Name(), Op: "count", Err: err}
	}
	return n, nil
}

// drainMongo iterates the cursor under the caller's ctx so getMore round
// trips stay inside the operation deadline.
func drainMongo(ctx context.Context, cur *mongo.Cursor, err error) error {
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return err
		}
	}
	return cur.Err()
}
