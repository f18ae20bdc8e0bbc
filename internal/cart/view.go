package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokohub/sokohub-backend/internal/products"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
)

// View is the cart as rendered to the customer.
type View struct {
	ID        uuid.UUID       `json:"id"`
	Items     []LineView      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// LineView is one cart line with a snapshot of its product.
type LineView struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name"`
	ImageURL       *string         `json:"image_url,omitempty"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	VendorUsername string          `json:"vendor_username"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Available      int             `json:"available"`
	InStock        bool            `json:"in_stock"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

func NewView(cart *models.Cart) *View {
	view := &View{ID: cart.ID, Items: make([]LineView, 0, len(cart.Items)), Total: decimal.Zero}
	for _, item := range cart.Items {
		line := LineView{ID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity, LineTotal: LineTotal(item)}
		if p := item.Product; p != nil {
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.VendorID = p.VendorID
			line.Price = p.Price.Round(2)
			line.Available = p.Stock
			line.InStock = products.IsInStock(p)
			if p.Vendor != nil {
				line.VendorUsername = p.Vendor.Username
			}
		}
		view.Items = append(view.Items, line)
		view.ItemCount += item.Quantity
		view.Total = view.Total.Add(line.LineTotal)
	}
	return view
}
