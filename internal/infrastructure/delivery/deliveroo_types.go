package delivery

import "encoding/json"

// ---------------------------------------------------------------------------
// Deliveroo wire types. Amounts are integer minor units ("fractional").
// ---------------------------------------------------------------------------

// DeliverooMoney is an amount in minor units
type DeliverooMoney struct {
	Fractional   int64  `json:"fractional"`
	CurrencyCode string `json:"currency_code"`
}

// DeliverooOrder is an order as returned by the order API and in webhooks
type DeliverooOrder struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"order_number"`
	DisplayID        string              `json:"display_id"`
	LocationID       string              `json:"location_id"`
	Status           string              `json:"status"`
	ASAP             bool                `json:"asap"`
	StartPreparingAt string              `json:"start_preparing_at,omitempty"`
	PrepareFor       string              `json:"prepare_for,omitempty"`
	CreatedAt        string              `json:"created_at"`
	Notes            string              `json:"order_notes,omitempty"`
	Items            []DeliverooItem     `json:"items"`
	Customer         DeliverooCustomer   `json:"customer"`
	Delivery         *DeliverooDelivery  `json:"delivery,omitempty"`
	Subtotal         DeliverooMoney      `json:"partner_order_subtotal"`
	Total            DeliverooMoney      `json:"partner_order_total"`
	Tax              *DeliverooMoney     `json:"tax,omitempty"`
	ServiceFee       *DeliverooMoney     `json:"service_fee,omitempty"`
	Tip              *DeliverooMoney     `json:"tip,omitempty"`
	Fees             []DeliverooOrderFee `json:"fees,omitempty"`
}

// DeliverooOrderFee is an additional charge on the order
type DeliverooOrderFee struct {
	Type   string         `json:"type"`
	Amount DeliverooMoney `json:"amount"`
}

// DeliverooItem is one order line
type DeliverooItem struct {
	PosItemID  string          `json:"pos_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  DeliverooMoney  `json:"unit_price"`
	TotalPrice DeliverooMoney  `json:"total_price"`
	Notes      string          `json:"notes,omitempty"`
	Modifiers  []DeliverooItem `json:"modifiers,omitempty"`
}

// DeliverooCustomer is the customer contact
type DeliverooCustomer struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name,omitempty"`
	ContactNumber string `json:"contact_number"`
	ContactAccess string `json:"contact_access_code,omitempty"`
}

// DeliverooDelivery holds restaurant-delivered order details
type DeliverooDelivery struct {
	DeliveryFee DeliverooMoney    `json:"delivery_fee"`
	Address     *DeliverooAddress `json:"address,omitempty"`
}

// DeliverooAddress is a delivery address
type DeliverooAddress struct {
	Street       string  `json:"street"`
	Number       string  `json:"number,omitempty"`
	City         string  `json:"city"`
	Postcode     string  `json:"postcode"`
	Country      string  `json:"country,omitempty"`
	Instructions string  `json:"address_instructions,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

// DeliverooOrderList is the orders listing response
type DeliverooOrderList struct {
	Orders []DeliverooOrder `json:"orders"`
}

// DeliverooActionRequest is step one of the accept/reject protocol
type DeliverooActionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// DeliverooSyncStatusRequest is step two of the accept/reject protocol
type DeliverooSyncStatusRequest struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Notes      string `json:"notes,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// DeliverooPrepStageRequest reports the kitchen stage of an order
type DeliverooPrepStageRequest struct {
	Stage      string `json:"stage"`
	OccurredAt string `json:"occurred_at"`
}

// DeliverooSiteStatusRequest opens or closes the site
type DeliverooSiteStatusRequest struct {
	Status string `json:"status"`
}

// DeliverooError is the error body
type DeliverooError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// DeliverooWebhook is the webhook envelope
type DeliverooWebhook struct {
	Event string               `json:"event"`
	Body  DeliverooWebhookBody `json:"body"`
}

// DeliverooWebhookBody carries the full order, kept raw for auditing
type DeliverooWebhookBody struct {
	Order json.RawMessage `json:"order"`
}

// ---------------------------------------------------------------------------
// Menu push
// ---------------------------------------------------------------------------

// DeliverooMenuRequest replaces the site menu
type DeliverooMenuRequest struct {
	Name string            `json:"name"`
	Menu DeliverooMenuBody `json:"menu"`
}

// DeliverooMenuBody holds the menu entities
type DeliverooMenuBody struct {
	Categories []DeliverooMenuCategory `json:"categories"`
	Items      []DeliverooMenuItem     `json:"items"`
	Modifiers  []DeliverooMenuModifier `json:"modifiers"`
}

// DeliverooMenuCategory lists item IDs under a name
type DeliverooMenuCategory struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	ItemIDs []string `json:"item_ids"`
}

// DeliverooMenuItem is a menu item or modifier option
type DeliverooMenuItem struct {
	ID          string             `json:"id"`
	PLU         string             `json:"plu"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	PriceInfo   DeliverooPriceInfo `json:"price_info"`
	ImageURL    string             `json:"image_url,omitempty"`
	Available   bool               `json:"is_available"`
	ModifierIDs []string           `json:"modifier_ids,omitempty"`
}

// DeliverooPriceInfo holds a price in minor units
type DeliverooPriceInfo struct {
	Price int64 `json:"price"`
}

// DeliverooMenuModifier is a modifier group
type DeliverooMenuModifier struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MinSelection int      `json:"min_selection"`
	MaxSelection int      `json:"max_selection"`
	Required     bool     `json:"required"`
	ItemIDs      []string `json:"item_ids"`
}

// DeliverooMenuResponse reports the provider IDs assigned to each PLU
type DeliverooMenuResponse struct {
	ItemMappings []DeliverooItemMapping `json:"item_mappings"`
}

// DeliverooItemMapping pairs an internal PLU with the Deliveroo item ID
type DeliverooItemMapping struct {
	PLU string `json:"plu"`
	ID  string `json:"id"`
}
