package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/plateroute/api/internal/domain"
)

// Fixed marketplace rates applied to every order.
var (
	taxRate     = decimal.RequireFromString("0.08")
	serviceRate = decimal.RequireFromString("0.02")
)

// PricingInput bundles the catalog snapshot and order parameters for price computation.
// The caller fetches current catalog state before invoking; the engine itself
// performs no reads, which pins prices to the catalog as of order time.
type PricingInput struct {
	Lines       []LineRequest
	Menu        map[string]MenuItem
	DeliveryFee decimal.Decimal
	OrderType   OrderType
	Tip         decimal.Decimal
	Discount    decimal.Decimal
}

// ComputePricing resolves each requested line against the supplied menu
// snapshot and produces the order's price breakdown together with the
// snapshotted order lines.
//
//	total = max(0, subtotal + tax + deliveryFee + serviceFee + tip - discount)
func ComputePricing(in PricingInput) (PricingBreakdown, []OrderLine, error) {
	if len(in.Lines) == 0 {
		return PricingBreakdown{}, nil, ErrEmptyOrder
	}
	if in.Tip.IsNegative() || in.Discount.IsNegative() {
		return PricingBreakdown{}, nil, fmt.Errorf("%w: tip and discount cannot be negative", ErrInvalidSelection)
	}

	lines := make([]OrderLine, 0, len(in.Lines))
	subtotal := decimal.Zero

	for _, req := range in.Lines {
		line, err := resolveLine(req, in.Menu)
		if err != nil {
			return PricingBreakdown{}, nil, err
		}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.Subtotal)
	}

	tax := subtotal.Mul(taxRate).Round(2)
	serviceFee := subtotal.Mul(serviceRate).Round(2)

	deliveryFee := decimal.Zero
	if in.OrderType == domain.OrderTypeDelivery {
		deliveryFee = in.DeliveryFee
	}

	total := subtotal.Add(tax).Add(deliveryFee).Add(serviceFee).Add(in.Tip).Sub(in.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	breakdown := PricingBreakdown{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		ServiceFee:  serviceFee,
		Discount:    in.Discount,
		Tip:         in.Tip,
		Total:       total,
	}
	return breakdown, lines, nil
}

func resolveLine(req LineRequest, menu map[string]MenuItem) (OrderLine, error) {
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return OrderLine{}, fmt.Errorf("%w: line item id is required", ErrInvalidSelection)
	}
	if req.Quantity < 1 {
		return OrderLine{}, fmt.Errorf("%w: item %s quantity must be at least 1", ErrInvalidSelection, itemID)
	}

	item, ok := menu[itemID]
	if !ok {
		return OrderLine{}, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if !item.Available {
		return OrderLine{}, fmt.Errorf("%w: item %s", ErrItemUnavailable, itemID)
	}

	unitPrice := item.BasePrice
	var size *domain.SelectedSize
	if sizeID := strings.TrimSpace(req.SizeID); sizeID != "" {
		variant, ok := findSize(item, sizeID)
		if !ok {
			return OrderLine{}, fmt.Errorf("%w: size %s not offered on item %s", ErrInvalidSelection, sizeID, itemID)
		}
		// Size price replaces the base price; it is not additive.
		unitPrice = variant.Price
		size = &domain.SelectedSize{ID: variant.ID, Name: variant.Name, Price: variant.Price}
	}

	customizations := make([]domain.SelectedCustomization, 0, len(req.OptionSelection))
	for _, sel := range req.OptionSelection {
		option, group, ok := findOption(item, sel)
		if !ok {
			return OrderLine{}, fmt.Errorf("%w: option %s/%s not offered on item %s", ErrInvalidSelection, sel.GroupID, sel.OptionID, itemID)
		}
		unitPrice = unitPrice.Add(option.PriceDelta)
		customizations = append(customizations, domain.SelectedCustomization{
			GroupID:    group.ID,
			OptionID:   option.ID,
			Name:       option.Name,
			PriceDelta: option.PriceDelta,
		})
	}
	if len(customizations) == 0 {
		customizations = nil
	}

	quantity := decimal.NewFromInt(int64(req.Quantity))
	return OrderLine{
		ItemID:         item.ID,
		Name:           item.Name,
		Description:    item.Description,
		UnitPrice:      unitPrice,
		Quantity:       req.Quantity,
		Size:           size,
		Customizations: customizations,
		Subtotal:       unitPrice.Mul(quantity),
	}, nil
}

func findSize(item MenuItem, sizeID string) (domain.MenuItemSize, bool) {
	for _, size := range item.Sizes {
		if size.ID == sizeID {
			return size, true
		}
	}
	return domain.MenuItemSize{}, false
}

func findOption(item MenuItem, sel OptionSelection) (domain.CustomizationOption, domain.MenuCustomization, bool) {
	for _, group := range item.Customizations {
		if group.ID != sel.GroupID {
			continue
		}
		for _, option := range group.Options {
			if option.ID == sel.OptionID {
				return option, group, true
			}
		}
	}
	return domain.CustomizationOption{}, domain.MenuCustomization{}, false
}
