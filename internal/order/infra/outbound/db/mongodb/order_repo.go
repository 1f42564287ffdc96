package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/orderrouter/internal/order/domain"
)

// OrderRepoMongoDB guarda cada pedido como un documento con cliente y líneas embebidos.
type OrderRepoMongoDB struct {
	orders *mongo.Collection
}

var _ domain.RecordStore = (*OrderRepoMongoDB)(nil)

func NewOrderRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*OrderRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &OrderRepoMongoDB{orders: client.Database(dbName).Collection("orders")}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoCustomer struct {
	ID        int64  `bson:"id"`
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
	Email     string `bson:"email"`
}

type mongoItem struct {
	ID         int64     `bson:"id"`
	ItemID     int64     `bson:"catalogItemId"`
	ItemNumber string    `bson:"itemNumber"`
	ItemName   string    `bson:"itemName"`
	ItemType   string    `bson:"itemType"`
	Status     string    `bson:"status"`
	Price      string    `bson:"price"`
	Quantity   int       `bson:"quantity"`
	LastUpdate time.Time `bson:"lastUpdate"`
}

type mongoOrder struct {
	ID                int64         `bson:"_id"`
	Status            string        `bson:"status"`
	OrderNumber       string        `bson:"orderNumber"`
	FulfillmentCenter string        `bson:"fulfillmentCenter"`
	PlacedAt          time.Time     `bson:"timeOrderPlaced"`
	LastUpdate        time.Time     `bson:"lastUpdate"`
	Customer          mongoCustomer `bson:"customer"`
	Items             []mongoItem   `bson:"items"`
}

// ClaimNew reclama documento a documento con FindOneAndUpdate: cada llamada es
// atómica y filtra por status N, así que dos pollers nunca obtienen el mismo pedido.
func (r *OrderRepoMongoDB) ClaimNew(ctx context.Context, limit int) ([]domain.ClaimedRow, error) {
	filter := bson.M{"status": string(domain.OrderNew)}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1}).
		SetReturnDocument(options.After)

	var claimed []domain.ClaimedRow
	for limit <= 0 || len(claimed) < limit {
		update := bson.M{"$set": bson.M{"status": string(domain.OrderProcessing), "lastUpdate": time.Now().UTC()}}

		var doc struct {
			ID int64 `bson:"_id"`
		}
		err := r.orders.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			// lo ya reclamado está en P; se devuelve junto al error para no perderlo
			return claimed, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		claimed = append(claimed, domain.ClaimedRow{"id": doc.ID})
	}
	return claimed, nil
}

func (r *OrderRepoMongoDB) Fetch(ctx context.Context, id int64) (*domain.OrderRecord, error) {
	var mo mongoOrder
	err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&mo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongoOrder(&mo)
}

func (r *OrderRepoMongoDB) MarkFailed(ctx context.Context, id int64) error {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.OrderProcessing)},
		bson.M{"$set": bson.M{"status": string(domain.OrderFailed), "lastUpdate": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// EnsureIndexes crea el índice por status que usa ClaimNew.
func (r *OrderRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

func fromMongoOrder(mo *mongoOrder) (*domain.OrderRecord, error) {
	o := &domain.OrderRecord{
		ID:                mo.ID,
		Status:            domain.OrderStatus(mo.Status),
		CustomerRef:       mo.Customer.ID,
		OrderNumber:       mo.OrderNumber,
		FulfillmentCenter: mo.FulfillmentCenter,
		PlacedAt:          mo.PlacedAt,
		LastUpdate:        mo.LastUpdate,
		Customer: domain.Customer{
			ID:        mo.Customer.ID,
			FirstName: mo.Customer.FirstName,
			LastName:  mo.Customer.LastName,
			Email:     mo.Customer.Email,
		},
	}
	for _, mi := range mo.Items {
		price, err := decimal.NewFromString(mi.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price in order %d item %d: %w", mo.ID, mi.ID, err)
		}
		o.Items = append(o.Items, domain.OrderItem{
			ID: mi.ID,
			CatalogItem: domain.CatalogItem{
				ID:         mi.ItemID,
				ItemNumber: mi.ItemNumber,
				ItemName:   mi.ItemName,
				ItemType:   mi.ItemType,
			},
			Status:     domain.OrderStatus(mi.Status),
			Price:      price,
			Quantity:   mi.Quantity,
			LastUpdate: mi.LastUpdate,
		})
	}
	return o, nil
}
