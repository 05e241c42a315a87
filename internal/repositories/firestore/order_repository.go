package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/plateroute/api/internal/domain"
	pfirestore "github.com/plateroute/api/internal/platform/firestore"
	"github.com/plateroute/api/internal/repositories"
)

const ordersCollection = "orders"

// Money is stored as integer cents; decimals exist only in memory.
type orderLineDocument struct {
	ItemID         string                  `firestore:"itemId"`
	Name           string                  `firestore:"name"`
	Description    string                  `firestore:"description,omitempty"`
	UnitPriceCents int64                   `firestore:"unitPriceCents"`
	Quantity       int                     `firestore:"quantity"`
	Size           *sizeDocument           `firestore:"size,omitempty"`
	Customizations []customizationDocument `firestore:"customizations,omitempty"`
	SubtotalCents  int64                   `firestore:"subtotalCents"`
}

type sizeDocument struct {
	ID         string `firestore:"id"`
	Name       string `firestore:"name"`
	PriceCents int64  `firestore:"priceCents"`
}

type customizationDocument struct {
	GroupID         string `firestore:"groupId"`
	OptionID        string `firestore:"optionId"`
	Name            string `firestore:"name"`
	PriceDeltaCents int64  `firestore:"priceDeltaCents"`
}

type pricingDocument struct {
	SubtotalCents    int64 `firestore:"subtotalCents"`
	TaxCents         int64 `firestore:"taxCents"`
	DeliveryFeeCents int64 `firestore:"deliveryFeeCents"`
	ServiceFeeCents  int64 `firestore:"serviceFeeCents"`
	DiscountCents    int64 `firestore:"discountCents"`
	TipCents         int64 `firestore:"tipCents"`
	TotalCents       int64 `firestore:"totalCents"`
}

type paymentDocument struct {
	Method            string     `firestore:"method"`
	Status            string     `firestore:"status"`
	TransactionID     string     `firestore:"transactionId,omitempty"`
	IntentID          string     `firestore:"intentId,omitempty"`
	PaidAt            *time.Time `firestore:"paidAt,omitempty"`
	RefundedAt        *time.Time `firestore:"refundedAt,omitempty"`
	RefundAmountCents *int64     `firestore:"refundAmountCents,omitempty"`
}

type stampDocument struct {
	At time.Time `firestore:"at"`
}

type estimateStampDocument struct {
	At               time.Time `firestore:"at"`
	EstimatedMinutes int       `firestore:"estimatedMinutes,omitempty"`
}

type arrivalStampDocument struct {
	At                 time.Time  `firestore:"at"`
	EstimatedArrivalAt *time.Time `firestore:"estimatedArrivalAt,omitempty"`
}

type deliveredStampDocument struct {
	At          time.Time `firestore:"at"`
	DeliveredBy string    `firestore:"deliveredBy,omitempty"`
	Signature   string    `firestore:"signature,omitempty"`
	PhotoURL    string    `firestore:"photoUrl,omitempty"`
}

type cancelledStampDocument struct {
	At          time.Time `firestore:"at"`
	Reason      string    `firestore:"reason,omitempty"`
	CancelledBy string    `firestore:"cancelledBy,omitempty"`
}

type trackingDocument struct {
	OrderPlaced         *stampDocument          `firestore:"orderPlaced,omitempty"`
	Confirmed           *estimateStampDocument  `firestore:"confirmed,omitempty"`
	PreparationStarted  *estimateStampDocument  `firestore:"preparationStarted,omitempty"`
	ReadyForPickup      *stampDocument          `firestore:"readyForPickup,omitempty"`
	PickedUp            *stampDocument          `firestore:"pickedUp,omitempty"`
	OutForDelivery      *arrivalStampDocument   `firestore:"outForDelivery,omitempty"`
	Delivered           *deliveredStampDocument `firestore:"delivered,omitempty"`
	Cancelled           *cancelledStampDocument `firestore:"cancelled,omitempty"`
	EstimatedDeliveryAt *time.Time              `firestore:"estimatedDeliveryAt,omitempty"`
	ActualDeliveryAt    *time.Time              `firestore:"actualDeliveryAt,omitempty"`
}

type feedbackDocument struct {
	Rating      int       `firestore:"rating"`
	Comment     string    `firestore:"comment,omitempty"`
	SubmittedAt time.Time `firestore:"submittedAt"`
}

type addressDocument struct {
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

type driverContactDocument struct {
	Name  string `firestore:"name"`
	Phone string `firestore:"phone,omitempty"`
}

type orderDocument struct {
	OrderNumber     string                 `firestore:"orderNumber"`
	CustomerID      string                 `firestore:"customerId"`
	RestaurantID    string                 `firestore:"restaurantId"`
	DriverID        *string                `firestore:"driverId,omitempty"`
	DriverContact   *driverContactDocument `firestore:"driverContact,omitempty"`
	Type            string                 `firestore:"type"`
	Status          string                 `firestore:"status"`
	Items           []orderLineDocument    `firestore:"items"`
	Pricing         pricingDocument        `firestore:"pricing"`
	Payment         paymentDocument        `firestore:"payment"`
	Tracking        trackingDocument       `firestore:"tracking"`
	Feedback        *feedbackDocument      `firestore:"feedback,omitempty"`
	DeliveryAddress *addressDocument       `firestore:"deliveryAddress,omitempty"`
	Metadata        map[string]any         `firestore:"metadata,omitempty"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
// Each order is one document, so every mutation is atomic on its own.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewCollection[orderDocument](provider, ordersCollection)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert creates the order document, failing on duplicate ids. Joins an
// ambient transaction when one is present.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)

	if tx, ok := transactionFrom(ctx); ok {
		return pfirestore.WrapError("orders.insert", tx.Create(ref, doc))
	}
	_, err = ref.Create(ctx, doc)
	return pfirestore.WrapError("orders.insert", err)
}

// Update overwrites the order document. Joins an ambient transaction when
// one is present.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.Doc(ctx, order.ID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)

	if tx, ok := transactionFrom(ctx); ok {
		return pfirestore.WrapError("orders.update", tx.Set(ref, doc))
	}
	_, err = ref.Set(ctx, doc)
	return pfirestore.WrapError("orders.update", err)
}

// FindByID fetches a single order, reading through the ambient transaction
// when one is present.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	if tx, ok := transactionFrom(ctx); ok {
		ref, err := r.base.Doc(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.get", err)
		}
		return decodeOrderSnapshot(snapshot)
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// FindByIntentID locates the order holding the given payment intent
// reference. Exactly one order owns an intent; duplicates surface as a
// conflict.
func (r *OrderRepository) FindByIntentID(ctx context.Context, intentID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return domain.Order{}, errors.New("order repository: intent id is required")
	}

	query := func(q firestore.Query) firestore.Query {
		return q.Where("payment.intentId", "==", intentID).Limit(2)
	}

	if tx, ok := transactionFrom(ctx); ok {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return domain.Order{}, err
		}
		iter := tx.Documents(query(client.Collection(ordersCollection).Query))
		defer iter.Stop()
		return r.firstOrder(iter, intentID)
	}

	docs, err := r.base.Query(ctx, query)
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByIntent",
			status.Error(codes.NotFound, fmt.Sprintf("no order for intent %s", intentID)))
	}
	if len(docs) > 1 {
		return domain.Order{}, pfirestore.WrapError("orders.findByIntent",
			status.Error(codes.FailedPrecondition, fmt.Sprintf("intent %s matches multiple orders", intentID)))
	}
	return decodeOrderDocument(docs[0].ID, docs[0].Data), nil
}

// List returns orders matching the filter, most recent first, with cursor
// pagination keyed on (createdAt, id).
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statuses := normaliseStatusFilter(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.CustomerID); id != "" {
			q = q.Where("customerId", "==", id)
		}
		if id := strings.TrimSpace(filter.RestaurantID); id != "" {
			q = q.Where("restaurantId", "==", id)
		}
		if id := strings.TrimSpace(filter.DriverID); id != "" {
			q = q.Where("driverId", "==", id)
		}
		if len(statuses) == 1 {
			q = q.Where("status", "==", statuses[0])
		} else if len(statuses) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statuses) > 10 {
				statuses = statuses[:10]
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.CreatedRange.From != nil {
			q = q.Where("createdAt", ">=", filter.CreatedRange.From.UTC())
		}
		if filter.CreatedRange.To != nil {
			q = q.Where("createdAt", "<=", filter.CreatedRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

func (r *OrderRepository) firstOrder(iter *firestore.DocumentIterator, intentID string) (domain.Order, error) {
	first, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.WrapError("orders.findByIntent",
			status.Error(codes.NotFound, fmt.Sprintf("no order for intent %s", intentID)))
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByIntent", err)
	}
	if _, err := iter.Next(); !errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.WrapError("orders.findByIntent",
			status.Error(codes.FailedPrecondition, fmt.Sprintf("intent %s matches multiple orders", intentID)))
	}
	return decodeOrderSnapshot(first)
}

func decodeOrderSnapshot(snapshot *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("order repository: decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodeOrderDocument(snapshot.Ref.ID, doc), nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		DriverID:     order.DriverID,
		Type:         string(order.Type),
		Status:       string(order.Status),
		Pricing: pricingDocument{
			SubtotalCents:    cents(order.Pricing.Subtotal),
			TaxCents:         cents(order.Pricing.Tax),
			DeliveryFeeCents: cents(order.Pricing.DeliveryFee),
			ServiceFeeCents:  cents(order.Pricing.ServiceFee),
			DiscountCents:    cents(order.Pricing.Discount),
			TipCents:         cents(order.Pricing.Tip),
			TotalCents:       cents(order.Pricing.Total),
		},
		Payment: paymentDocument{
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
			TransactionID: order.Payment.TransactionID,
			IntentID:      order.Payment.IntentID,
			PaidAt:        order.Payment.PaidAt,
			RefundedAt:    order.Payment.RefundedAt,
		},
		Metadata:  order.Metadata,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}

	if order.Payment.RefundAmount != nil {
		amount := cents(*order.Payment.RefundAmount)
		doc.Payment.RefundAmountCents = &amount
	}
	if order.DriverContact != nil {
		doc.DriverContact = &driverContactDocument{Name: order.DriverContact.Name, Phone: order.DriverContact.Phone}
	}
	if order.Feedback != nil {
		doc.Feedback = &feedbackDocument{
			Rating:      order.Feedback.Rating,
			Comment:     order.Feedback.Comment,
			SubmittedAt: order.Feedback.SubmittedAt,
		}
	}
	if order.DeliveryAddress != nil {
		doc.DeliveryAddress = &addressDocument{
			Line1:      order.DeliveryAddress.Line1,
			Line2:      order.DeliveryAddress.Line2,
			City:       order.DeliveryAddress.City,
			State:      order.DeliveryAddress.State,
			PostalCode: order.DeliveryAddress.PostalCode,
			Country:    order.DeliveryAddress.Country,
			Phone:      order.DeliveryAddress.Phone,
		}
	}

	doc.Items = make([]orderLineDocument, 0, len(order.Items))
	for _, line := range order.Items {
		lineDoc := orderLineDocument{
			ItemID:         line.ItemID,
			Name:           line.Name,
			Description:    line.Description,
			UnitPriceCents: cents(line.UnitPrice),
			Quantity:       line.Quantity,
			SubtotalCents:  cents(line.Subtotal),
		}
		if line.Size != nil {
			lineDoc.Size = &sizeDocument{ID: line.Size.ID, Name: line.Size.Name, PriceCents: cents(line.Size.Price)}
		}
		for _, custom := range line.Customizations {
			lineDoc.Customizations = append(lineDoc.Customizations, customizationDocument{
				GroupID:         custom.GroupID,
				OptionID:        custom.OptionID,
				Name:            custom.Name,
				PriceDeltaCents: cents(custom.PriceDelta),
			})
		}
		doc.Items = append(doc.Items, lineDoc)
	}

	doc.Tracking = trackingDocument{
		EstimatedDeliveryAt: order.Tracking.EstimatedDeliveryAt,
		ActualDeliveryAt:    order.Tracking.ActualDeliveryAt,
	}
	if s := order.Tracking.OrderPlaced; s != nil {
		doc.Tracking.OrderPlaced = &stampDocument{At: s.At}
	}
	if s := order.Tracking.Confirmed; s != nil {
		doc.Tracking.Confirmed = &estimateStampDocument{At: s.At, EstimatedMinutes: s.EstimatedMinutes}
	}
	if s := order.Tracking.PreparationStarted; s != nil {
		doc.Tracking.PreparationStarted = &estimateStampDocument{At: s.At, EstimatedMinutes: s.EstimatedMinutes}
	}
	if s := order.Tracking.ReadyForPickup; s != nil {
		doc.Tracking.ReadyForPickup = &stampDocument{At: s.At}
	}
	if s := order.Tracking.PickedUp; s != nil {
		doc.Tracking.PickedUp = &stampDocument{At: s.At}
	}
	if s := order.Tracking.OutForDelivery; s != nil {
		doc.Tracking.OutForDelivery = &arrivalStampDocument{At: s.At, EstimatedArrivalAt: s.EstimatedArrivalAt}
	}
	if s := order.Tracking.Delivered; s != nil {
		doc.Tracking.Delivered = &deliveredStampDocument{At: s.At, DeliveredBy: s.DeliveredBy, Signature: s.Signature, PhotoURL: s.PhotoURL}
	}
	if s := order.Tracking.Cancelled; s != nil {
		doc.Tracking.Cancelled = &cancelledStampDocument{At: s.At, Reason: s.Reason, CancelledBy: s.CancelledBy}
	}

	return doc
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:           id,
		OrderNumber:  doc.OrderNumber,
		CustomerID:   doc.CustomerID,
		RestaurantID: doc.RestaurantID,
		DriverID:     doc.DriverID,
		Type:         domain.OrderType(doc.Type),
		Status:       domain.OrderStatus(doc.Status),
		Pricing: domain.PricingBreakdown{
			Subtotal:    fromCents(doc.Pricing.SubtotalCents),
			Tax:         fromCents(doc.Pricing.TaxCents),
			DeliveryFee: fromCents(doc.Pricing.DeliveryFeeCents),
			ServiceFee:  fromCents(doc.Pricing.ServiceFeeCents),
			Discount:    fromCents(doc.Pricing.DiscountCents),
			Tip:         fromCents(doc.Pricing.TipCents),
			Total:       fromCents(doc.Pricing.TotalCents),
		},
		Payment: domain.PaymentRecord{
			Method:        domain.PaymentMethod(doc.Payment.Method),
			Status:        domain.PaymentStatus(doc.Payment.Status),
			TransactionID: doc.Payment.TransactionID,
			IntentID:      doc.Payment.IntentID,
			PaidAt:        doc.Payment.PaidAt,
			RefundedAt:    doc.Payment.RefundedAt,
		},
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}

	if doc.Payment.RefundAmountCents != nil {
		amount := fromCents(*doc.Payment.RefundAmountCents)
		order.Payment.RefundAmount = &amount
	}
	if doc.DriverContact != nil {
		order.DriverContact = &domain.DriverContact{Name: doc.DriverContact.Name, Phone: doc.DriverContact.Phone}
	}
	if doc.Feedback != nil {
		order.Feedback = &domain.OrderFeedback{
			Rating:      doc.Feedback.Rating,
			Comment:     doc.Feedback.Comment,
			SubmittedAt: doc.Feedback.SubmittedAt,
		}
	}
	if doc.DeliveryAddress != nil {
		order.DeliveryAddress = &domain.Address{
			Line1:      doc.DeliveryAddress.Line1,
			Line2:      doc.DeliveryAddress.Line2,
			City:       doc.DeliveryAddress.City,
			State:      doc.DeliveryAddress.State,
			PostalCode: doc.DeliveryAddress.PostalCode,
			Country:    doc.DeliveryAddress.Country,
			Phone:      doc.DeliveryAddress.Phone,
		}
	}

	order.Items = make([]domain.OrderLine, 0, len(doc.Items))
	for _, lineDoc := range doc.Items {
		line := domain.OrderLine{
			ItemID:      lineDoc.ItemID,
			Name:        lineDoc.Name,
			Description: lineDoc.Description,
			UnitPrice:   fromCents(lineDoc.UnitPriceCents),
			Quantity:    lineDoc.Quantity,
			Subtotal:    fromCents(lineDoc.SubtotalCents),
		}
		if lineDoc.Size != nil {
			line.Size = &domain.SelectedSize{ID: lineDoc.Size.ID, Name: lineDoc.Size.Name, Price: fromCents(lineDoc.Size.PriceCents)}
		}
		for _, customDoc := range lineDoc.Customizations {
			line.Customizations = append(line.Customizations, domain.SelectedCustomization{
				GroupID:    customDoc.GroupID,
				OptionID:   customDoc.OptionID,
				Name:       customDoc.Name,
				PriceDelta: fromCents(customDoc.PriceDeltaCents),
			})
		}
		order.Items = append(order.Items, line)
	}

	order.Tracking = domain.OrderTracking{
		EstimatedDeliveryAt: doc.Tracking.EstimatedDeliveryAt,
		ActualDeliveryAt:    doc.Tracking.ActualDeliveryAt,
	}
	if s := doc.Tracking.OrderPlaced; s != nil {
		order.Tracking.OrderPlaced = &domain.Stamp{At: s.At}
	}
	if s := doc.Tracking.Confirmed; s != nil {
		order.Tracking.Confirmed = &domain.EstimateStamp{At: s.At, EstimatedMinutes: s.EstimatedMinutes}
	}
	if s := doc.Tracking.PreparationStarted; s != nil {
		order.Tracking.PreparationStarted = &domain.EstimateStamp{At: s.At, EstimatedMinutes: s.EstimatedMinutes}
	}
	if s := doc.Tracking.ReadyForPickup; s != nil {
		order.Tracking.ReadyForPickup = &domain.Stamp{At: s.At}
	}
	if s := doc.Tracking.PickedUp; s != nil {
		order.Tracking.PickedUp = &domain.Stamp{At: s.At}
	}
	if s := doc.Tracking.OutForDelivery; s != nil {
		order.Tracking.OutForDelivery = &domain.ArrivalStamp{At: s.At, EstimatedArrivalAt: s.EstimatedArrivalAt}
	}
	if s := doc.Tracking.Delivered; s != nil {
		order.Tracking.Delivered = &domain.DeliveredStamp{At: s.At, DeliveredBy: s.DeliveredBy, Signature: s.Signature, PhotoURL: s.PhotoURL}
	}
	if s := doc.Tracking.Cancelled; s != nil {
		order.Tracking.Cancelled = &domain.CancelledStamp{At: s.At, Reason: s.Reason, CancelledBy: s.CancelledBy}
	}

	return order
}

func normaliseStatusFilter(statuses []string) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

func cents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func fromCents(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-2)
}
