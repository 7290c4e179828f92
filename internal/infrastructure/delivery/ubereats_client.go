package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
)

// uberEatsAcceptanceSeconds is the fixed window before Uber Eats escalates an unanswered order
const uberEatsAcceptanceSeconds = 690

// Uber Eats deny codes
var uberEatsDenyCodes = map[integration.DenyReason]string{
	integration.DenyReasonStoreClosed:     "STORE_CLOSED",
	integration.DenyReasonStoreBusy:       "CAPACITY",
	integration.DenyReasonItemUnavailable: "ITEM_AVAILABILITY",
	integration.DenyReasonMissingInfo:     "MISSING_INFO",
	integration.DenyReasonAddressIssue:    "ADDRESS",
	integration.DenyReasonPricingIssue:    "PRICING",
	integration.DenyReasonOther:           "OTHER",
}

// UberEatsClient implements integration.DeliveryPlatform for Uber Eats
type UberEatsClient struct {
	storeID string
	tokens  tokenSource
	http    *transport
	logger  *zap.Logger
	deps    clientDeps
}

var _ integration.DeliveryPlatform = (*UberEatsClient)(nil)

func newUberEatsClient(storeID string, creds integration.Credentials, ep Endpoints, deps clientDeps) *UberEatsClient {
	deps = deps.withDefaults()
	provider := integration.ProviderUberEats
	logger := deps.logger.Named("delivery.ubereats")

	client := newRestyClient(ep.APIURL, deps.timeout)
	tokens := newOAuthTokenSource(provider, newClientCredentialsFetcher(provider, client, clientCredentials{
		AuthURL:      ep.AuthURL,
		ClientID:     creds.String(CredentialClientID),
		ClientSecret: creds.String(CredentialClientSecret),
		Scope:        ep.Scope,
	}), deps.timeout, deps.now, logger, deps.metrics)

	return &UberEatsClient{
		storeID: storeID,
		tokens:  tokens,
		http:    newTransport(provider, client, tokens, decodeUberEatsError, logger, deps.metrics),
		logger:  logger,
		deps:    deps,
	}
}

func decodeUberEatsError(body []byte) (string, string) {
	var e UberEatsError
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return e.Code, e.Message
}

func (c *UberEatsClient) Provider() integration.Provider {
	return integration.ProviderUberEats
}

func (c *UberEatsClient) Authenticate(ctx context.Context) error {
	return c.tokens.Authenticate(ctx)
}

func (c *UberEatsClient) GetOrders(ctx context.Context, filter integration.OrderFilter) []integration.NormalizedOrder {
	env := c.http.makeRequest(ctx, "get_orders", http.MethodGet, "/v1/eats/stores/"+escape(c.storeID)+"/created-orders", nil)
	if !env.Success {
		return []integration.NormalizedOrder{}
	}
	var list UberEatsOrderList
	if err := env.decode(c.Provider(), &list); err != nil {
		c.logger.Warn("failed to decode order list", zap.Error(err))
		return []integration.NormalizedOrder{}
	}

	orders := make([]integration.NormalizedOrder, 0, len(list.Orders))
	for _, o := range list.Orders {
		raw, _ := json.Marshal(o)
		orders = append(orders, c.transformOrder(o, raw))
	}
	return applyFilter(orders, filter)
}

func (c *UberEatsClient) GetOrder(ctx context.Context, providerOrderID string) (*integration.NormalizedOrder, error) {
	env := c.http.makeRequest(ctx, "get_order", http.MethodGet, "/v2/eats/order/"+escape(providerOrderID), nil)
	if err := fetchError(env); err != nil {
		return nil, err
	}
	var o UberEatsOrder
	if err := env.decode(c.Provider(), &o); err != nil {
		return nil, err
	}
	order := c.transformOrder(o, env.Data)
	return &order, nil
}

func (c *UberEatsClient) UpdateOrderStatus(ctx context.Context, providerOrderID string, status integration.OrderStatus) error {
	base := "/v1/eats/orders/" + escape(providerOrderID)
	switch status {
	case integration.OrderStatusReady:
		return resultError(c.http.makeRequest(ctx, "update_status", http.MethodPost, base+"/ready", nil))
	case integration.OrderStatusCancelled:
		body := UberEatsCancelRequest{Reason: "RESTAURANT_CANCELLED"}
		return resultError(c.http.makeRequest(ctx, "update_status", http.MethodPost, base+"/cancel", body))
	default:
		return unsupportedTransition(c.Provider(), status)
	}
}

func (c *UberEatsClient) SyncMenu(ctx context.Context, menu *integration.Menu) (*integration.MenuSyncResult, error) {
	if err := menu.Validate(); err != nil {
		return nil, err
	}
	env := c.http.makeRequest(ctx, "sync_menu", http.MethodPut, "/v2/eats/stores/"+escape(c.storeID)+"/menus", buildUberEatsMenu(menu))
	if err := resultError(env); err != nil {
		return nil, err
	}
	mappings := identityMappings(menu)
	return &integration.MenuSyncResult{ItemMappings: mappings, ItemCount: len(mappings)}, nil
}

func (c *UberEatsClient) SetStoreAvailability(ctx context.Context, isOpen bool) error {
	status := "PAUSED"
	if isOpen {
		status = "ONLINE"
	}
	body := UberEatsStoreStatusRequest{Status: status}
	return resultError(c.http.makeRequest(ctx, "store_availability", http.MethodPost, "/v1/eats/store/"+escape(c.storeID)+"/status", body))
}

func (c *UberEatsClient) AcceptOrder(ctx context.Context, providerOrderID string, opts integration.AcceptOptions) error {
	body := UberEatsAcceptRequest{Reason: "accepted"}
	if opts.Notes != "" {
		body.Reason = opts.Notes
	}
	if opts.PickupAt != nil {
		body.PickupTime = opts.PickupAt.Unix()
	} else if opts.EstimatedPrepMinutes > 0 {
		body.PickupTime = c.deps.now().Add(minutes(opts.EstimatedPrepMinutes)).Unix()
	}
	return resultError(c.http.makeRequest(ctx, "accept_order", http.MethodPost, "/v1/eats/orders/"+escape(providerOrderID)+"/accept_pos_order", body))
}

func (c *UberEatsClient) DenyOrder(ctx context.Context, providerOrderID string, reason integration.DenyReason, explanation string) error {
	code, ok := uberEatsDenyCodes[reason]
	if !ok {
		return integration.ErrInvalidDenyReason
	}
	if explanation == "" {
		explanation = string(reason)
	}
	body := UberEatsDenyRequest{Reason: UberEatsDenyReason{Explanation: explanation, Code: code}}
	return resultError(c.http.makeRequest(ctx, "deny_order", http.MethodPost, "/v1/eats/orders/"+escape(providerOrderID)+"/deny_pos_order", body))
}

func (c *UberEatsClient) AcceptanceDeadline(_ *integration.NormalizedOrder) integration.AcceptanceDeadline {
	return integration.AcceptanceDeadline{Timeout: uberEatsAcceptanceSeconds, Unit: integration.DeadlineUnitSeconds}
}

// ParseWebhook decodes an Uber Eats notification. Notifications carry only the order ID.
func (c *UberEatsClient) ParseWebhook(_ map[string]string, payload []byte) (*integration.WebhookEvent, error) {
	var hook UberEatsWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, invalidPayload(c.Provider(), "%v", err)
	}

	event := &integration.WebhookEvent{
		ProviderOrderID: hook.Meta.ResourceID,
		StoreID:         hook.Meta.UserID,
		ProviderStatus:  hook.Meta.Status,
	}
	switch hook.EventType {
	case "orders.notification":
		event.Type = integration.WebhookEventOrderCreated
		event.Status = integration.FromProviderStatus(c.Provider(), hook.Meta.Status)
	case "orders.cancel":
		event.Type = integration.WebhookEventOrderCancelled
		event.Status = integration.OrderStatusCancelled
	case "orders.status_changed":
		event.Type = integration.WebhookEventOrderUpdated
		event.Status = integration.FromProviderStatus(c.Provider(), hook.Meta.Status)
	default:
		event.Type = integration.WebhookEventUnknown
		return event, nil
	}
	if event.ProviderOrderID == "" {
		return nil, invalidPayload(c.Provider(), "missing meta.resource_id")
	}
	return event, nil
}

func (c *UberEatsClient) transformOrder(o UberEatsOrder, raw []byte) integration.NormalizedOrder {
	charges := o.Payment.Charges
	currency := charges.Total.CurrencyCode
	if currency == "" {
		currency = charges.SubTotal.CurrencyCode
	}

	order := integration.NormalizedOrder{
		ProviderOrderID: o.ID,
		DisplayID:       o.DisplayID,
		Provider:        integration.ProviderUberEats,
		StoreID:         o.Store.ID,
		Status:          integration.FromProviderStatus(integration.ProviderUberEats, o.CurrentState),
		ProviderStatus:  o.CurrentState,
		Customer: integration.Customer{
			Name:  strings.TrimSpace(o.Eater.FirstName + " " + o.Eater.LastName),
			Phone: o.Eater.Phone,
		},
		Subtotal:     fromMinorUnits(charges.SubTotal.Amount),
		Tax:          fromMinorUnits(charges.Tax.Amount),
		DeliveryFee:  optionalMinor(charges.DeliveryFee),
		ServiceFee:   optionalMinor(charges.SmallOrder),
		Tip:          optionalMinor(charges.Tip),
		Total:        fromMinorUnits(charges.Total.Amount),
		Currency:     currency,
		Instructions: o.Cart.SpecialInstructions,
		PlacedAt:     parseTimestamp(o.PlacedAt),
		RawData:      string(raw),
	}
	if order.StoreID == "" {
		order.StoreID = c.storeID
	}
	if d := o.Eater.Delivery; d != nil {
		order.DeliveryAddress = &integration.Address{
			Street:     d.Location.StreetAddress,
			City:       d.Location.City,
			PostalCode: d.Location.PostalCode,
			Country:    d.Location.Country,
			Notes:      d.Notes,
			Latitude:   d.Location.Latitude,
			Longitude:  d.Location.Longitude,
		}
	}

	for _, item := range o.Cart.Items {
		line := integration.OrderItem{
			ExternalID:   item.ID,
			Name:         item.Title,
			Quantity:     item.Quantity,
			UnitPrice:    fromMinorUnits(item.Price.UnitPrice.Amount),
			TotalPrice:   fromMinorUnits(item.Price.TotalPrice.Amount),
			Instructions: item.SpecialInstructions,
		}
		for _, group := range item.SelectedModifierGroups {
			for _, selected := range group.SelectedItems {
				line.Modifiers = append(line.Modifiers, integration.OrderModifier{
					ExternalID: selected.ID,
					Name:       selected.Title,
					Quantity:   selected.Quantity,
					Price:      fromMinorUnits(selected.Price.UnitPrice.Amount),
				})
			}
		}
		order.Items = append(order.Items, line)
	}
	return order
}

func optionalMinor(m *UberEatsMoney) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return fromMinorUnits(m.Amount)
}

// buildUberEatsMenu reshapes the menu into the Uber Eats menu schema
func buildUberEatsMenu(menu *integration.Menu) UberEatsMenuRequest {
	req := UberEatsMenuRequest{
		Menus:          []UberEatsMenu{},
		Categories:     []UberEatsMenuCategory{},
		Items:          []UberEatsMenuItem{},
		ModifierGroups: []UberEatsMenuModifiers{},
	}
	menuID := menu.ID
	if menuID == "" {
		menuID = "default"
	}
	top := UberEatsMenu{ID: menuID, Title: uberEatsText(menu.Name)}
	seenGroups := make(map[string]bool)

	for _, cat := range menu.Categories {
		category := UberEatsMenuCategory{ID: cat.ID, Title: uberEatsText(cat.Name), Entities: []UberEatsMenuEntity{}}
		for _, item := range cat.Items {
			category.Entities = append(category.Entities, UberEatsMenuEntity{ID: item.ID, Type: "ITEM"})

			entry := UberEatsMenuItem{
				ID:           item.ID,
				ExternalData: item.ID,
				Title:        uberEatsText(item.Name),
				Description:  uberEatsText(item.Description),
				ImageURL:     item.ImageURL,
				PriceInfo:    UberEatsPriceInfo{Price: toMinorUnits(item.Price)},
			}
			if !item.Available {
				entry.SuspensionInfo = &UberEatsSuspension{Suspension: UberEatsSuspensionWindow{Reason: "unavailable"}}
			}
			if len(item.ModifierGroups) > 0 {
				entry.ModifierGroupIDs = &UberEatsIDList{}
			}
			for _, group := range item.ModifierGroups {
				entry.ModifierGroupIDs.IDs = append(entry.ModifierGroupIDs.IDs, group.ID)
				if !seenGroups[group.ID] {
					seenGroups[group.ID] = true
					req.ModifierGroups = append(req.ModifierGroups, buildUberEatsModifierGroup(group, &req))
				}
			}
			req.Items = append(req.Items, entry)
		}
		top.CategoryIDs = append(top.CategoryIDs, cat.ID)
		req.Categories = append(req.Categories, category)
	}
	req.Menus = append(req.Menus, top)
	return req
}

// buildUberEatsModifierGroup converts a group; options become items referenced by the group
func buildUberEatsModifierGroup(group integration.ModifierGroup, req *UberEatsMenuRequest) UberEatsMenuModifiers {
	minPermitted := group.MinSelections
	if group.Required && minPermitted == 0 {
		minPermitted = 1
	}
	out := UberEatsMenuModifiers{
		ID:    group.ID,
		Title: uberEatsText(group.Name),
		QuantityInfo: UberEatsQuantityInfo{Quantity: UberEatsQuantity{
			MinPermitted: minPermitted,
			MaxPermitted: group.MaxSelections,
		}},
		ModifierOptions: []UberEatsMenuEntity{},
	}
	for _, opt := range group.Options {
		out.ModifierOptions = append(out.ModifierOptions, UberEatsMenuEntity{ID: opt.ID, Type: "ITEM"})
		option := UberEatsMenuItem{
			ID:           opt.ID,
			ExternalData: opt.ID,
			Title:        uberEatsText(opt.Name),
			PriceInfo:    UberEatsPriceInfo{Price: toMinorUnits(opt.Price)},
		}
		if !opt.Available {
			option.SuspensionInfo = &UberEatsSuspension{Suspension: UberEatsSuspensionWindow{Reason: "unavailable"}}
		}
		req.Items = append(req.Items, option)
	}
	return out
}

func uberEatsText(s string) UberEatsText {
	return UberEatsText{Translations: map[string]string{"en_us": s}}
}
