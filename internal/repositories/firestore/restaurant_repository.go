package firestore

import (
	"context"
	"errors"
	"strings"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"

	domain "github.com/plateroute/api/internal/domain"
)

const restaurantsCollection = "restaurants"

type restaurantDocument struct {
	OwnerID                  string `firestore:"ownerId"`
	IsActive                 bool   `firestore:"isActive"`
	DeliveryFeeCents         int64  `firestore:"deliveryFeeCents"`
	EstimatedDeliveryMinutes int    `firestore:"estimatedDeliveryMinutes"`
}

// RestaurantRepository reads restaurant projections from Firestore. The order
// core needs ownership, activity, and delivery parameters; nothing more.
type RestaurantRepository struct {
	base *pfirestore.Collection[restaurantDocument]
}

// NewRestaurantRepository constructs a Firestore-backed restaurant directory.
func NewRestaurantRepository(provider *pfirestore.Provider) (*RestaurantRepository, error) {
	if provider == nil {
		return nil, errors.New("restaurant repository requires firestore provider")
	}
	base := pfirestore.NewCollection[restaurantDocument](provider, restaurantsCollection)
	return &RestaurantRepository{base: base}, nil
}

// GetRestaurant resolves a restaurant projection by id.
func (r *RestaurantRepository) GetRestaurant(ctx context.Context, restaurantID string) (domain.Restaurant, error) {
	if r == nil || r.base == nil {
		return domain.Restaurant{}, errors.New("restaurant repository not initialised")
	}
	if strings.TrimSpace(restaurantID) == "" {
		return domain.Restaurant{}, errors.New("restaurant repository: restaurant id is required")
	}

	doc, err := r.base.Get(ctx, restaurantID)
	if err != nil {
		return domain.Restaurant{}, err
	}
	return domain.Restaurant{
		ID:                       doc.ID,
		OwnerID:                  doc.Data.OwnerID,
		IsActive:                 doc.Data.IsActive,
		DeliveryFee:              fromCents(doc.Data.DeliveryFeeCents),
		EstimatedDeliveryMinutes: doc.Data.EstimatedDeliveryMinutes,
	}, nil
}
