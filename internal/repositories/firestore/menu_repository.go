package firestore

import (
	"context"
	"errors"
	"strings"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"

	domain "github.com/plateroute/api/internal/domain"
)

const (
	menusCollection     = "menus"
	menuItemsCollection = "items"
)

type menuItemDocument struct {
	Name           string                      `firestore:"name"`
	Description    string                      `firestore:"description,omitempty"`
	BasePriceCents int64                       `firestore:"basePriceCents"`
	Available      bool                        `firestore:"available"`
	Sizes          []menuSizeDocument          `firestore:"sizes,omitempty"`
	Customizations []menuCustomizationDocument `firestore:"customizations,omitempty"`
}

type menuSizeDocument struct {
	ID         string `firestore:"id"`
	Name       string `firestore:"name"`
	PriceCents int64  `firestore:"priceCents"`
}

type menuCustomizationDocument struct {
	ID      string               `firestore:"id"`
	Name    string               `firestore:"name"`
	Options []menuOptionDocument `firestore:"options,omitempty"`
}

type menuOptionDocument struct {
	ID              string `firestore:"id"`
	Name            string `firestore:"name"`
	PriceDeltaCents int64  `firestore:"priceDeltaCents"`
}

// MenuRepository reads menu item documents from Firestore. Items live under
// menus/{restaurantID}/items/{itemID}, so lookups are always scoped to one
// restaurant.
type MenuRepository struct {
	provider *pfirestore.Provider
}

// NewMenuRepository constructs a Firestore-backed menu catalog.
func NewMenuRepository(provider *pfirestore.Provider) (*MenuRepository, error) {
	if provider == nil {
		return nil, errors.New("menu repository requires firestore provider")
	}
	return &MenuRepository{provider: provider}, nil
}

// GetMenuItem resolves one menu item within a restaurant's menu.
func (r *MenuRepository) GetMenuItem(ctx context.Context, restaurantID, itemID string) (domain.MenuItem, error) {
	if r == nil || r.provider == nil {
		return domain.MenuItem{}, errors.New("menu repository not initialised")
	}
	restaurantID = strings.TrimSpace(restaurantID)
	itemID = strings.TrimSpace(itemID)
	if restaurantID == "" || itemID == "" {
		return domain.MenuItem{}, errors.New("menu repository: restaurant id and item id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.MenuItem{}, err
	}

	snapshot, err := client.Collection(menusCollection).Doc(restaurantID).Collection(menuItemsCollection).Doc(itemID).Get(ctx)
	if err != nil {
		return domain.MenuItem{}, pfirestore.WrapError("menus.get", err)
	}

	var doc menuItemDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.MenuItem{}, pfirestore.WrapError("menus.decode", err)
	}

	item := domain.MenuItem{
		ID:          snapshot.Ref.ID,
		Name:        doc.Name,
		Description: doc.Description,
		BasePrice:   fromCents(doc.BasePriceCents),
		Available:   doc.Available,
	}
	for _, size := range doc.Sizes {
		item.Sizes = append(item.Sizes, domain.MenuItemSize{ID: size.ID, Name: size.Name, Price: fromCents(size.PriceCents)})
	}
	for _, group := range doc.Customizations {
		custom := domain.MenuCustomization{ID: group.ID, Name: group.Name}
		for _, opt := range group.Options {
			custom.Options = append(custom.Options, domain.CustomizationOption{ID: opt.ID, Name: opt.Name, PriceDelta: fromCents(opt.PriceDeltaCents)})
		}
		item.Customizations = append(item.Customizations, custom)
	}
	return item, nil
}
