package delivery

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Just Eat wire types. Amounts are decimal major units.
// ---------------------------------------------------------------------------

// JustEatOrder is an order as returned by the order API and in webhooks
type JustEatOrder struct {
	ID                     string          `json:"id"`
	FriendlyOrderReference string          `json:"friendlyOrderReference"`
	RestaurantID           string          `json:"restaurantId"`
	Status                 string          `json:"status"`
	PlacedDate             string          `json:"placedDate"`
	DueDate                string          `json:"dueDate,omitempty"`
	ServiceType            string          `json:"serviceType,omitempty"`
	Customer               JustEatCustomer `json:"customer"`
	Items                  []JustEatItem   `json:"items"`
	Totals                 JustEatTotals   `json:"totals"`
	Currency               string          `json:"currency"`
	Notes                  string          `json:"notes,omitempty"`
	DeliveryAddress        *JustEatAddress `json:"deliveryAddress,omitempty"`
}

// JustEatCustomer is the customer contact
type JustEatCustomer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email,omitempty"`
}

// JustEatItem is one order line
type JustEatItem struct {
	Reference  string            `json:"reference"`
	Name       string            `json:"name"`
	Quantity   int               `json:"quantity"`
	UnitPrice  decimal.Decimal   `json:"unitPrice"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	Notes      string            `json:"notes,omitempty"`
	Modifiers  []JustEatModifier `json:"modifiers,omitempty"`
}

// JustEatModifier is a selected option on an order line
type JustEatModifier struct {
	Reference string          `json:"reference"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// JustEatTotals are the order totals
type JustEatTotals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	DeliveryCost  decimal.Decimal `json:"deliveryCost"`
	ServiceCharge decimal.Decimal `json:"serviceCharge"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
}

// JustEatAddress is a delivery address
type JustEatAddress struct {
	Lines       []string            `json:"lines"`
	City        string              `json:"city"`
	PostalCode  string              `json:"postalCode"`
	Country     string              `json:"country,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Geolocation *JustEatGeolocation `json:"geolocation,omitempty"`
}

// JustEatGeolocation is a coordinate pair
type JustEatGeolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// JustEatAcceptRequest is the accept body
type JustEatAcceptRequest struct {
	TimeAcceptedFor string `json:"timeAcceptedFor"`
	PrepTimeMinutes int    `json:"prepTimeMinutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// JustEatRejectRequest is the reject body
type JustEatRejectRequest struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// JustEatStatusRequest updates the order status
type JustEatStatusRequest struct {
	Status string `json:"status"`
}

// JustEatAvailabilityRequest opens or closes the restaurant
type JustEatAvailabilityRequest struct {
	IsOpen bool `json:"isOpen"`
}

// JustEatErrorResponse is the error body
type JustEatErrorResponse struct {
	Errors []JustEatError `json:"errors"`
}

// JustEatError is one reported error
type JustEatError struct {
	ErrorCode   string `json:"errorCode"`
	Description string `json:"description"`
}

// JustEatWebhook is the webhook envelope. Order is present for OrderPlaced only.
type JustEatWebhook struct {
	Type    string          `json:"type"`
	OrderID string          `json:"orderId,omitempty"`
	Status  string          `json:"status,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
}

// ---------------------------------------------------------------------------
// Menu push
// ---------------------------------------------------------------------------

// JustEatMenuRequest replaces the restaurant menu
type JustEatMenuRequest struct {
	Name         string                `json:"name"`
	Currency     string                `json:"currency,omitempty"`
	Categories   []JustEatMenuCategory `json:"categories"`
	Items        []JustEatMenuItem     `json:"items"`
	OptionGroups []JustEatOptionGroup  `json:"optionGroups"`
}

// JustEatMenuCategory lists item IDs under a name
type JustEatMenuCategory struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	ItemIDs []string `json:"itemIds"`
}

// JustEatMenuItem is a menu item. Price is a decimal with two places.
type JustEatMenuItem struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Price          json.Number `json:"price"`
	IsAvailable    bool        `json:"isAvailable"`
	ImageURL       string      `json:"imageUrl,omitempty"`
	OptionGroupIDs []string    `json:"optionGroupIds,omitempty"`
}

// JustEatOptionGroup is a modifier group
type JustEatOptionGroup struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	MinChoices int             `json:"minChoices"`
	MaxChoices int             `json:"maxChoices"`
	IsRequired bool            `json:"isRequired"`
	Options    []JustEatOption `json:"options"`
}

// JustEatOption is one option in a group
type JustEatOption struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Price       json.Number `json:"price"`
	IsAvailable bool        `json:"isAvailable"`
}

// JustEatMenuResponse reports the provider IDs assigned to each item
type JustEatMenuResponse struct {
	Items []JustEatMenuMapping `json:"items"`
}

// JustEatMenuMapping pairs the Just Eat item ID with the internal ID
type JustEatMenuMapping struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
}
