package delivery

// ---------------------------------------------------------------------------
// Uber Eats wire types. Amounts are integer minor units.
// ---------------------------------------------------------------------------

// UberEatsMoney is an amount in minor units
type UberEatsMoney struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// UberEatsOrder is an order as returned by the order endpoints
type UberEatsOrder struct {
	ID           string           `json:"id"`
	DisplayID    string           `json:"display_id"`
	CurrentState string           `json:"current_state"`
	PlacedAt     string           `json:"placed_at"`
	EstimatedFor string           `json:"estimated_ready_for_pickup_at,omitempty"`
	Store        UberEatsStoreRef `json:"store"`
	Eater        UberEatsEater    `json:"eater"`
	Cart         UberEatsCart     `json:"cart"`
	Payment      UberEatsPayment  `json:"payment"`
}

// UberEatsStoreRef identifies the store an order belongs to
type UberEatsStoreRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UberEatsEater is the customer
type UberEatsEater struct {
	FirstName string                 `json:"first_name"`
	LastName  string                 `json:"last_name"`
	Phone     string                 `json:"phone"`
	Delivery  *UberEatsEaterDelivery `json:"delivery,omitempty"`
}

// UberEatsEaterDelivery carries the drop-off location
type UberEatsEaterDelivery struct {
	Location UberEatsLocation `json:"location"`
	Notes    string           `json:"notes,omitempty"`
}

// UberEatsLocation is a delivery address
type UberEatsLocation struct {
	StreetAddress string  `json:"street_address"`
	City          string  `json:"city"`
	PostalCode    string  `json:"postal_code"`
	Country       string  `json:"country,omitempty"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
}

// UberEatsCart holds the ordered items
type UberEatsCart struct {
	Items               []UberEatsCartItem `json:"items"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
}

// UberEatsCartItem is one cart line
type UberEatsCartItem struct {
	ID                     string                  `json:"id"`
	Title                  string                  `json:"title"`
	Quantity               int                     `json:"quantity"`
	Price                  UberEatsItemPrice       `json:"price"`
	SpecialInstructions    string                  `json:"special_instructions,omitempty"`
	SelectedModifierGroups []UberEatsModifierGroup `json:"selected_modifier_groups,omitempty"`
}

// UberEatsItemPrice holds the unit and line prices
type UberEatsItemPrice struct {
	UnitPrice  UberEatsMoney `json:"unit_price"`
	TotalPrice UberEatsMoney `json:"total_price"`
}

// UberEatsModifierGroup is a modifier group selected on a cart item
type UberEatsModifierGroup struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	SelectedItems []UberEatsCartItem `json:"selected_items"`
}

// UberEatsPayment carries the charges
type UberEatsPayment struct {
	Charges UberEatsCharges `json:"charges"`
}

// UberEatsCharges are the order totals
type UberEatsCharges struct {
	SubTotal    UberEatsMoney  `json:"sub_total"`
	Tax         UberEatsMoney  `json:"tax"`
	Total       UberEatsMoney  `json:"total"`
	DeliveryFee *UberEatsMoney `json:"delivery_fee,omitempty"`
	SmallOrder  *UberEatsMoney `json:"small_order_fee,omitempty"`
	Tip         *UberEatsMoney `json:"tip,omitempty"`
}

// UberEatsOrderList is the created-orders response
type UberEatsOrderList struct {
	Orders []UberEatsOrder `json:"orders"`
}

// UberEatsAcceptRequest is the accept body
type UberEatsAcceptRequest struct {
	Reason              string `json:"reason"`
	PickupTime          int64  `json:"pickup_time,omitempty"`
	ExternalReferenceID string `json:"external_reference_id,omitempty"`
}

// UberEatsDenyRequest is the deny body
type UberEatsDenyRequest struct {
	Reason UberEatsDenyReason `json:"reason"`
}

// UberEatsDenyReason carries the structured deny reason
type UberEatsDenyReason struct {
	Explanation string `json:"explanation"`
	Code        string `json:"code"`
}

// UberEatsCancelRequest is the cancel body
type UberEatsCancelRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// UberEatsStoreStatusRequest opens or pauses the store
type UberEatsStoreStatusRequest struct {
	Status string `json:"status"`
}

// UberEatsError is the error body
type UberEatsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UberEatsWebhook is the notification envelope
type UberEatsWebhook struct {
	EventID      string            `json:"event_id"`
	EventType    string            `json:"event_type"`
	EventTime    int64             `json:"event_time"`
	Meta         UberEatsEventMeta `json:"meta"`
	ResourceHref string            `json:"resource_href"`
}

// UberEatsEventMeta identifies the resource the event refers to
type UberEatsEventMeta struct {
	ResourceID string `json:"resource_id"`
	Status     string `json:"status"`
	UserID     string `json:"user_id"`
}

// ---------------------------------------------------------------------------
// Menu push
// ---------------------------------------------------------------------------

// UberEatsMenuRequest replaces the store menu
type UberEatsMenuRequest struct {
	Menus          []UberEatsMenu          `json:"menus"`
	Categories     []UberEatsMenuCategory  `json:"categories"`
	Items          []UberEatsMenuItem      `json:"items"`
	ModifierGroups []UberEatsMenuModifiers `json:"modifier_groups"`
}

// UberEatsMenu is a top-level menu
type UberEatsMenu struct {
	ID          string       `json:"id"`
	Title       UberEatsText `json:"title"`
	CategoryIDs []string     `json:"category_ids"`
}

// UberEatsText is a localizable text
type UberEatsText struct {
	Translations map[string]string `json:"translations"`
}

// UberEatsMenuCategory lists item IDs under a title
type UberEatsMenuCategory struct {
	ID       string               `json:"id"`
	Title    UberEatsText         `json:"title"`
	Entities []UberEatsMenuEntity `json:"entities"`
}

// UberEatsMenuEntity references an item or modifier group
type UberEatsMenuEntity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// UberEatsMenuItem is a menu item
type UberEatsMenuItem struct {
	ID               string              `json:"id"`
	ExternalData     string              `json:"external_data,omitempty"`
	Title            UberEatsText        `json:"title"`
	Description      UberEatsText        `json:"description"`
	ImageURL         string              `json:"image_url,omitempty"`
	PriceInfo        UberEatsPriceInfo   `json:"price_info"`
	ModifierGroupIDs *UberEatsIDList     `json:"modifier_group_ids,omitempty"`
	SuspensionInfo   *UberEatsSuspension `json:"suspension_info,omitempty"`
}

// UberEatsPriceInfo holds a price in minor units
type UberEatsPriceInfo struct {
	Price int64 `json:"price"`
}

// UberEatsIDList is a list of referenced IDs
type UberEatsIDList struct {
	IDs []string `json:"ids"`
}

// UberEatsSuspension marks an item unavailable
type UberEatsSuspension struct {
	Suspension UberEatsSuspensionWindow `json:"suspension"`
}

// UberEatsSuspensionWindow is an indefinite suspension when SuspendUntil is 0
type UberEatsSuspensionWindow struct {
	SuspendUntil int64  `json:"suspend_until"`
	Reason       string `json:"reason,omitempty"`
}

// UberEatsMenuModifiers is a modifier group with its quantity bounds
type UberEatsMenuModifiers struct {
	ID              string               `json:"id"`
	Title           UberEatsText         `json:"title"`
	QuantityInfo    UberEatsQuantityInfo `json:"quantity_info"`
	ModifierOptions []UberEatsMenuEntity `json:"modifier_options"`
}

// UberEatsQuantityInfo bounds modifier selections
type UberEatsQuantityInfo struct {
	Quantity UberEatsQuantity `json:"quantity"`
}

// UberEatsQuantity holds min/max permitted selections
type UberEatsQuantity struct {
	MinPermitted int `json:"min_permitted"`
	MaxPermitted int `json:"max_permitted"`
}
