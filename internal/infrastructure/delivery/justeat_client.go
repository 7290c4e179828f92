package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
)

var justEatRejectReasons = map[integration.DenyReason]string{
	integration.DenyReasonStoreClosed:     "RestaurantClosed",
	integration.DenyReasonStoreBusy:       "RestaurantTooBusy",
	integration.DenyReasonItemUnavailable: "ItemUnavailable",
	integration.DenyReasonMissingInfo:     "Other",
	integration.DenyReasonAddressIssue:    "DeliveryAreaIssue",
	integration.DenyReasonPricingIssue:    "Other",
	integration.DenyReasonOther:           "Other",
}

// JustEatClient implements integration.DeliveryPlatform for Just Eat.
// It authenticates with a static API token.
type JustEatClient struct {
	storeID string
	tokens  tokenSource
	http    *transport
	logger  *zap.Logger
	deps    clientDeps
}

var _ integration.DeliveryPlatform = (*JustEatClient)(nil)

func newJustEatClient(storeID string, creds integration.Credentials, ep Endpoints, deps clientDeps) *JustEatClient {
	deps = deps.withDefaults()
	provider := integration.ProviderJustEat
	logger := deps.logger.Named("delivery.justeat")

	tokens := newStaticTokenSource(provider, creds.String(CredentialAPIToken))
	client := newRestyClient(ep.APIURL, deps.timeout)

	return &JustEatClient{
		storeID: storeID,
		tokens:  tokens,
		http:    newTransport(provider, client, tokens, decodeJustEatError, logger, deps.metrics),
		logger:  logger,
		deps:    deps,
	}
}

func decodeJustEatError(body []byte) (string, string) {
	var e JustEatErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || len(e.Errors) == 0 {
		return "", ""
	}
	return e.Errors[0].ErrorCode, e.Errors[0].Description
}

func (c *JustEatClient) Provider() integration.Provider {
	return integration.ProviderJustEat
}

func (c *JustEatClient) Authenticate(ctx context.Context) error {
	return c.tokens.Authenticate(ctx)
}

func (c *JustEatClient) GetOrders(ctx context.Context, filter integration.OrderFilter) []integration.NormalizedOrder {
	env := c.http.makeRequest(ctx, "get_orders", http.MethodGet, "/restaurants/"+escape(c.storeID)+"/orders", nil)
	if !env.Success {
		return []integration.NormalizedOrder{}
	}
	var list []JustEatOrder
	if err := env.decode(c.Provider(), &list); err != nil {
		c.logger.Warn("failed to decode order list", zap.Error(err))
		return []integration.NormalizedOrder{}
	}

	orders := make([]integration.NormalizedOrder, 0, len(list))
	for _, o := range list {
		raw, _ := json.Marshal(o)
		orders = append(orders, c.transformOrder(o, raw))
	}
	return applyFilter(orders, filter)
}

func (c *JustEatClient) GetOrder(ctx context.Context, providerOrderID string) (*integration.NormalizedOrder, error) {
	env := c.http.makeRequest(ctx, "get_order", http.MethodGet, "/orders/"+escape(providerOrderID), nil)
	if err := fetchError(env); err != nil {
		return nil, err
	}
	var o JustEatOrder
	if err := env.decode(c.Provider(), &o); err != nil {
		return nil, err
	}
	order := c.transformOrder(o, env.Data)
	return &order, nil
}

func (c *JustEatClient) UpdateOrderStatus(ctx context.Context, providerOrderID string, status integration.OrderStatus) error {
	switch status {
	case integration.OrderStatusPreparing, integration.OrderStatusReady,
		integration.OrderStatusCompleted, integration.OrderStatusCancelled:
	default:
		return unsupportedTransition(c.Provider(), status)
	}
	body := JustEatStatusRequest{Status: integration.ToProviderStatus(c.Provider(), status)}
	return resultError(c.http.makeRequest(ctx, "update_status", http.MethodPut, "/orders/"+escape(providerOrderID)+"/status", body))
}

func (c *JustEatClient) SyncMenu(ctx context.Context, menu *integration.Menu) (*integration.MenuSyncResult, error) {
	if err := menu.Validate(); err != nil {
		return nil, err
	}
	env := c.http.makeRequest(ctx, "sync_menu", http.MethodPut, "/restaurants/"+escape(c.storeID)+"/menu", buildJustEatMenu(menu))
	if err := resultError(env); err != nil {
		return nil, err
	}

	mappings := identityMappings(menu)
	if len(env.Data) > 0 {
		var resp JustEatMenuResponse
		if err := json.Unmarshal(env.Data, &resp); err == nil {
			for _, m := range resp.Items {
				if _, ok := mappings[m.ExternalID]; ok && m.ID != "" {
					mappings[m.ExternalID] = m.ID
				}
			}
		}
	}
	return &integration.MenuSyncResult{ItemMappings: mappings, ItemCount: len(mappings)}, nil
}

func (c *JustEatClient) SetStoreAvailability(ctx context.Context, isOpen bool) error {
	body := JustEatAvailabilityRequest{IsOpen: isOpen}
	return resultError(c.http.makeRequest(ctx, "store_availability", http.MethodPut, "/restaurants/"+escape(c.storeID)+"/availability", body))
}

// AcceptOrder accepts the order. The estimated preparation time is sent as a hint and,
// without an explicit pickup time, determines timeAcceptedFor.
func (c *JustEatClient) AcceptOrder(ctx context.Context, providerOrderID string, opts integration.AcceptOptions) error {
	acceptedFor := c.deps.now().Add(minutes(opts.EstimatedPrepMinutes))
	if opts.PickupAt != nil {
		acceptedFor = *opts.PickupAt
	}
	body := JustEatAcceptRequest{
		TimeAcceptedFor: acceptedFor.UTC().Format(time.RFC3339),
		PrepTimeMinutes: opts.EstimatedPrepMinutes,
		Notes:           opts.Notes,
	}
	return resultError(c.http.makeRequest(ctx, "accept_order", http.MethodPost, "/orders/"+escape(providerOrderID)+"/accept", body))
}

func (c *JustEatClient) DenyOrder(ctx context.Context, providerOrderID string, reason integration.DenyReason, explanation string) error {
	code, ok := justEatRejectReasons[reason]
	if !ok {
		return integration.ErrInvalidDenyReason
	}
	body := JustEatRejectRequest{Reason: code, Message: explanation}
	return resultError(c.http.makeRequest(ctx, "deny_order", http.MethodPost, "/orders/"+escape(providerOrderID)+"/reject", body))
}

func (c *JustEatClient) AcceptanceDeadline(order *integration.NormalizedOrder) integration.AcceptanceDeadline {
	if order == nil {
		return justEatSameDayDeadline
	}
	var deliverAt time.Time
	if order.ScheduledFor != nil {
		deliverAt = *order.ScheduledFor
	}
	return ComputeAcceptanceDeadline(order.PlacedAt, deliverAt)
}

// ParseWebhook decodes a Just Eat webhook. Only OrderPlaced carries the full order.
func (c *JustEatClient) ParseWebhook(_ map[string]string, payload []byte) (*integration.WebhookEvent, error) {
	var hook JustEatWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, invalidPayload(c.Provider(), "%v", err)
	}

	switch hook.Type {
	case "OrderPlaced":
		if len(hook.Order) == 0 {
			return nil, invalidPayload(c.Provider(), "missing order")
		}
		var o JustEatOrder
		if err := json.Unmarshal(hook.Order, &o); err != nil {
			return nil, invalidPayload(c.Provider(), "%v", err)
		}
		if o.ID == "" {
			return nil, invalidPayload(c.Provider(), "missing order id")
		}
		order := c.transformOrder(o, hook.Order)
		return &integration.WebhookEvent{
			Type:            integration.WebhookEventOrderCreated,
			ProviderOrderID: order.ProviderOrderID,
			StoreID:         order.StoreID,
			ProviderStatus:  order.ProviderStatus,
			Status:          order.Status,
			Order:           &order,
		}, nil
	case "OrderCancelled", "OrderStatusUpdated":
		if hook.OrderID == "" {
			return nil, invalidPayload(c.Provider(), "missing orderId")
		}
		event := &integration.WebhookEvent{
			Type:            integration.WebhookEventOrderUpdated,
			ProviderOrderID: hook.OrderID,
			ProviderStatus:  hook.Status,
			Status:          integration.FromProviderStatus(c.Provider(), hook.Status),
		}
		if hook.Type == "OrderCancelled" || event.Status == integration.OrderStatusCancelled {
			event.Type = integration.WebhookEventOrderCancelled
			event.Status = integration.OrderStatusCancelled
		}
		return event, nil
	default:
		return &integration.WebhookEvent{Type: integration.WebhookEventUnknown}, nil
	}
}

func (c *JustEatClient) transformOrder(o JustEatOrder, raw []byte) integration.NormalizedOrder {
	order := integration.NormalizedOrder{
		ProviderOrderID: o.ID,
		DisplayID:       o.FriendlyOrderReference,
		Provider:        integration.ProviderJustEat,
		StoreID:         o.RestaurantID,
		Status:          integration.FromProviderStatus(integration.ProviderJustEat, o.Status),
		ProviderStatus:  o.Status,
		Customer: integration.Customer{
			Name:  strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName),
			Phone: o.Customer.PhoneNumber,
			Email: o.Customer.Email,
		},
		Subtotal:     o.Totals.Subtotal,
		Tax:          o.Totals.Tax,
		DeliveryFee:  o.Totals.DeliveryCost,
		ServiceFee:   o.Totals.ServiceCharge,
		Tip:          o.Totals.Tip,
		Total:        o.Totals.Total,
		Currency:     o.Currency,
		Instructions: o.Notes,
		PlacedAt:     parseTimestamp(o.PlacedDate),
		RawData:      string(raw),
	}
	if order.StoreID == "" {
		order.StoreID = c.storeID
	}
	if due := parseTimestamp(o.DueDate); !due.IsZero() {
		order.ScheduledFor = &due
	}
	if a := o.DeliveryAddress; a != nil {
		addr := &integration.Address{
			Street:     strings.Join(a.Lines, ", "),
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Notes:      a.Notes,
		}
		if a.Geolocation != nil {
			addr.Latitude = a.Geolocation.Latitude
			addr.Longitude = a.Geolocation.Longitude
		}
		order.DeliveryAddress = addr
	}

	for _, item := range o.Items {
		line := integration.OrderItem{
			ExternalID:   item.Reference,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.TotalPrice,
			Instructions: item.Notes,
		}
		for _, mod := range item.Modifiers {
			line.Modifiers = append(line.Modifiers, integration.OrderModifier{
				ExternalID: mod.Reference,
				Name:       mod.Name,
				Quantity:   mod.Quantity,
				Price:      mod.UnitPrice,
			})
		}
		order.Items = append(order.Items, line)
	}
	return order
}

// buildJustEatMenu reshapes the menu into the Just Eat schema with two-decimal prices
func buildJustEatMenu(menu *integration.Menu) JustEatMenuRequest {
	req := JustEatMenuRequest{
		Name:         menu.Name,
		Currency:     menu.Currency,
		Categories:   []JustEatMenuCategory{},
		Items:        []JustEatMenuItem{},
		OptionGroups: []JustEatOptionGroup{},
	}
	seenGroups := make(map[string]bool)

	for _, cat := range menu.Categories {
		category := JustEatMenuCategory{ID: cat.ID, Name: cat.Name, ItemIDs: []string{}}
		for _, item := range cat.Items {
			category.ItemIDs = append(category.ItemIDs, item.ID)
			entry := JustEatMenuItem{
				ID:          item.ID,
				Name:        item.Name,
				Description: item.Description,
				Price:       json.Number(item.Price.StringFixed(2)),
				IsAvailable: item.Available,
				ImageURL:    item.ImageURL,
			}
			for _, group := range item.ModifierGroups {
				entry.OptionGroupIDs = append(entry.OptionGroupIDs, group.ID)
				if seenGroups[group.ID] {
					continue
				}
				seenGroups[group.ID] = true

				og := JustEatOptionGroup{
					ID:         group.ID,
					Name:       group.Name,
					MinChoices: group.MinSelections,
					MaxChoices: group.MaxSelections,
					IsRequired: group.Required,
					Options:    []JustEatOption{},
				}
				for _, opt := range group.Options {
					og.Options = append(og.Options, JustEatOption{
						ID:          opt.ID,
						Name:        opt.Name,
						Price:       json.Number(opt.Price.StringFixed(2)),
						IsAvailable: opt.Available,
					})
				}
				req.OptionGroups = append(req.OptionGroups, og)
			}
			req.Items = append(req.Items, entry)
		}
		req.Categories = append(req.Categories, category)
	}
	return req
}
