package cart

import "context"

type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	PrepMinutes int      `json:"prep_minutes"`
	Category    Category `json:"category"`
	ImageURL    string   `json:"image_url,omitempty"`
	Available   bool     `json:"available"`
}

type Menu struct {
	Platos  []MenuItem `json:"platos"`
	Bebidas []MenuItem `json:"bebidas"`
}

type menuResponse struct {
	Data Menu `json:"data"`
}

// FetchMenu reads the current menu. Static display is the screens' problem;
// the cart only needs ids, prices and prep minutes to build items from.
func (r *Reconciler) FetchMenu(ctx context.Context) (Menu, error) {
	var res menuResponse
	if err := r.api.GetJSON(ctx, "/menu", &res); err != nil {
		return Menu{}, err
	}
	return res.Data, nil
}

// CartItem builds a cart line from a menu entry.
func (m MenuItem) CartItem(qty int) Item {
	if qty <= 0 {
		qty = 1
	}
	return Item{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price,
		Quantity:    qty,
		PrepMinutes: m.PrepMinutes,
		Category:    m.Category,
		ImageURL:    m.ImageURL,
	}
}
