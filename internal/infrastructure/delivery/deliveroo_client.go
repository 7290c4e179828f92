package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
)

// deliverooAcceptanceMinutes is the fixed window before Deliveroo cancels an unanswered order
const deliverooAcceptanceMinutes = 10

// Deliveroo protocol tokens
const (
	deliverooActionAccept = "ACCEPT_ORDER"
	deliverooActionReject = "REJECT_ORDER"
	deliverooSyncSuccess  = "Succeeded"
	deliverooSyncFailed   = "Failed"
)

var deliverooRejectReasons = map[integration.DenyReason]string{
	integration.DenyReasonStoreClosed:     "closing_early",
	integration.DenyReasonStoreBusy:       "busy",
	integration.DenyReasonItemUnavailable: "ingredient_unavailable",
	integration.DenyReasonMissingInfo:     "other",
	integration.DenyReasonAddressIssue:    "other",
	integration.DenyReasonPricingIssue:    "other",
	integration.DenyReasonOther:           "other",
}

// DeliverooClient implements integration.DeliveryPlatform for Deliveroo.
// Accept and reject use a two-call protocol: an action call followed by a sync-status call.
// The operation succeeds only if both calls do.
type DeliverooClient struct {
	storeID string
	brandID string
	tokens  tokenSource
	http    *transport
	logger  *zap.Logger
	deps    clientDeps
}

var _ integration.DeliveryPlatform = (*DeliverooClient)(nil)

func newDeliverooClient(storeID string, creds integration.Credentials, ep Endpoints, deps clientDeps) *DeliverooClient {
	deps = deps.withDefaults()
	provider := integration.ProviderDeliveroo
	logger := deps.logger.Named("delivery.deliveroo")

	client := newRestyClient(ep.APIURL, deps.timeout)
	tokens := newOAuthTokenSource(provider, newClientCredentialsFetcher(provider, client, clientCredentials{
		AuthURL:      ep.AuthURL,
		ClientID:     creds.String(CredentialClientID),
		ClientSecret: creds.String(CredentialClientSecret),
		Scope:        ep.Scope,
		BasicAuth:    true,
	}), deps.timeout, deps.now, logger, deps.metrics)

	return &DeliverooClient{
		storeID: storeID,
		brandID: creds.String(CredentialBrandID),
		tokens:  tokens,
		http:    newTransport(provider, client, tokens, decodeDeliverooError, logger, deps.metrics),
		logger:  logger,
		deps:    deps,
	}
}

func decodeDeliverooError(body []byte) (string, string) {
	var e DeliverooError
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return e.Code, e.Message
}

func (c *DeliverooClient) Provider() integration.Provider {
	return integration.ProviderDeliveroo
}

func (c *DeliverooClient) Authenticate(ctx context.Context) error {
	return c.tokens.Authenticate(ctx)
}

func (c *DeliverooClient) GetOrders(ctx context.Context, filter integration.OrderFilter) []integration.NormalizedOrder {
	path := "/order/v1/restaurants/" + escape(c.storeID) + "/orders"
	if !filter.Since.IsZero() {
		path += "?start_date=" + escape(filter.Since.UTC().Format(time.RFC3339))
	}
	env := c.http.makeRequest(ctx, "get_orders", http.MethodGet, path, nil)
	if !env.Success {
		return []integration.NormalizedOrder{}
	}
	var list DeliverooOrderList
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

func (c *DeliverooClient) GetOrder(ctx context.Context, providerOrderID string) (*integration.NormalizedOrder, error) {
	env := c.http.makeRequest(ctx, "get_order", http.MethodGet, "/order/v1/orders/"+escape(providerOrderID), nil)
	if err := fetchError(env); err != nil {
		return nil, err
	}
	var o DeliverooOrder
	if err := env.decode(c.Provider(), &o); err != nil {
		return nil, err
	}
	order := c.transformOrder(o, env.Data)
	return &order, nil
}

func (c *DeliverooClient) UpdateOrderStatus(ctx context.Context, providerOrderID string, status integration.OrderStatus) error {
	switch status {
	case integration.OrderStatusPreparing, integration.OrderStatusReady, integration.OrderStatusCompleted:
	default:
		return unsupportedTransition(c.Provider(), status)
	}
	body := DeliverooPrepStageRequest{
		Stage:      integration.ToProviderStatus(c.Provider(), status),
		OccurredAt: c.deps.now().UTC().Format(time.RFC3339),
	}
	return resultError(c.http.makeRequest(ctx, "update_status", http.MethodPost, "/order/v1/orders/"+escape(providerOrderID)+"/prep_stage", body))
}

func (c *DeliverooClient) SyncMenu(ctx context.Context, menu *integration.Menu) (*integration.MenuSyncResult, error) {
	if err := menu.Validate(); err != nil {
		return nil, err
	}
	if c.brandID == "" {
		return nil, integration.NewPlatformError(c.Provider(), integration.CodeAuthFailed, "missing brand_id credential")
	}

	path := "/menu/v1/brands/" + escape(c.brandID) + "/menus/" + escape(c.storeID)
	env := c.http.makeRequest(ctx, "sync_menu", http.MethodPut, path, buildDeliverooMenu(menu))
	if err := resultError(env); err != nil {
		return nil, err
	}

	mappings := identityMappings(menu)
	if len(env.Data) > 0 {
		var resp DeliverooMenuResponse
		if err := json.Unmarshal(env.Data, &resp); err == nil {
			for _, m := range resp.ItemMappings {
				if _, ok := mappings[m.PLU]; ok && m.ID != "" {
					mappings[m.PLU] = m.ID
				}
			}
		}
	}
	return &integration.MenuSyncResult{ItemMappings: mappings, ItemCount: len(mappings)}, nil
}

func (c *DeliverooClient) SetStoreAvailability(ctx context.Context, isOpen bool) error {
	status := "CLOSED"
	if isOpen {
		status = "OPEN"
	}
	body := DeliverooSiteStatusRequest{Status: status}
	return resultError(c.http.makeRequest(ctx, "store_availability", http.MethodPut, "/site/v1/restaurants/"+escape(c.storeID)+"/status", body))
}

func (c *DeliverooClient) AcceptOrder(ctx context.Context, providerOrderID string, opts integration.AcceptOptions) error {
	action := DeliverooActionRequest{Action: deliverooActionAccept, Notes: opts.Notes}
	sync := DeliverooSyncStatusRequest{Status: deliverooSyncSuccess}
	return c.twoStep(ctx, "accept_order", providerOrderID, action, sync)
}

func (c *DeliverooClient) DenyOrder(ctx context.Context, providerOrderID string, reason integration.DenyReason, explanation string) error {
	code, ok := deliverooRejectReasons[reason]
	if !ok {
		return integration.ErrInvalidDenyReason
	}
	action := DeliverooActionRequest{Action: deliverooActionReject, Reason: code, Notes: explanation}
	sync := DeliverooSyncStatusRequest{Status: deliverooSyncFailed, Reason: code, Notes: explanation}
	return c.twoStep(ctx, "deny_order", providerOrderID, action, sync)
}

// twoStep posts the action and then reports the sync status.
// A failed sync after a successful action is an overall failure; the action cannot be undone
// upstream, so both step results are logged for reconciliation.
func (c *DeliverooClient) twoStep(ctx context.Context, operation, providerOrderID string, action DeliverooActionRequest, sync DeliverooSyncStatusRequest) error {
	base := "/order/v1/orders/" + escape(providerOrderID)

	actionEnv := c.http.makeRequest(ctx, operation+"_action", http.MethodPost, base+"/actions", action)
	if err := resultError(actionEnv); err != nil {
		return err
	}

	sync.OccurredAt = c.deps.now().UTC().Format(time.RFC3339)
	syncEnv := c.http.makeRequest(ctx, operation+"_sync_status", http.MethodPost, base+"/sync_status", sync)
	if syncEnv.Success {
		return nil
	}

	c.logger.Error("order action succeeded but sync status failed; manual reconciliation required",
		zap.String("operation", operation),
		zap.String("provider_order_id", providerOrderID),
		zap.String("action", action.Action),
		zap.Int("action_status", actionEnv.StatusCode),
		zap.String("sync_status", sync.Status),
		zap.Int("sync_http_status", syncEnv.StatusCode),
		zap.String("sync_code", syncEnv.Err.Code),
		zap.String("sync_message", syncEnv.Err.Message),
	)
	pe := integration.NewPlatformError(c.Provider(), integration.CodeSyncStatusFailed, syncEnv.Err.Message)
	pe.StatusCode = syncEnv.StatusCode
	pe.Body = syncEnv.Err.Body
	return pe
}

func (c *DeliverooClient) AcceptanceDeadline(_ *integration.NormalizedOrder) integration.AcceptanceDeadline {
	return integration.AcceptanceDeadline{Timeout: deliverooAcceptanceMinutes, Unit: integration.DeadlineUnitMinutes}
}

// ParseWebhook decodes a Deliveroo webhook, which carries the full order
func (c *DeliverooClient) ParseWebhook(_ map[string]string, payload []byte) (*integration.WebhookEvent, error) {
	var hook DeliverooWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, invalidPayload(c.Provider(), "%v", err)
	}

	var eventType integration.WebhookEventType
	switch hook.Event {
	case "order.new":
		eventType = integration.WebhookEventOrderCreated
	case "order.status_update":
		eventType = integration.WebhookEventOrderUpdated
	default:
		return &integration.WebhookEvent{Type: integration.WebhookEventUnknown}, nil
	}

	if len(hook.Body.Order) == 0 {
		return nil, invalidPayload(c.Provider(), "missing body.order")
	}
	var o DeliverooOrder
	if err := json.Unmarshal(hook.Body.Order, &o); err != nil {
		return nil, invalidPayload(c.Provider(), "%v", err)
	}
	if o.ID == "" {
		return nil, invalidPayload(c.Provider(), "missing order id")
	}

	order := c.transformOrder(o, hook.Body.Order)
	if eventType == integration.WebhookEventOrderUpdated && order.Status == integration.OrderStatusCancelled {
		eventType = integration.WebhookEventOrderCancelled
	}
	return &integration.WebhookEvent{
		Type:            eventType,
		ProviderOrderID: order.ProviderOrderID,
		StoreID:         order.StoreID,
		ProviderStatus:  order.ProviderStatus,
		Status:          order.Status,
		Order:           &order,
	}, nil
}

func (c *DeliverooClient) transformOrder(o DeliverooOrder, raw []byte) integration.NormalizedOrder {
	displayID := o.DisplayID
	if displayID == "" {
		displayID = o.OrderNumber
	}
	currency := o.Total.CurrencyCode
	if currency == "" {
		currency = o.Subtotal.CurrencyCode
	}

	order := integration.NormalizedOrder{
		ProviderOrderID: o.ID,
		DisplayID:       displayID,
		Provider:        integration.ProviderDeliveroo,
		StoreID:         o.LocationID,
		Status:          integration.FromProviderStatus(integration.ProviderDeliveroo, o.Status),
		ProviderStatus:  o.Status,
		Customer: integration.Customer{
			Name:  strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName),
			Phone: o.Customer.ContactNumber,
		},
		Subtotal:     fromMinorUnits(o.Subtotal.Fractional),
		Tax:          deliverooOptional(o.Tax),
		ServiceFee:   deliverooOptional(o.ServiceFee),
		Tip:          deliverooOptional(o.Tip),
		Total:        fromMinorUnits(o.Total.Fractional),
		Currency:     currency,
		Instructions: o.Notes,
		PlacedAt:     parseTimestamp(o.CreatedAt),
		RawData:      string(raw),
	}
	if order.StoreID == "" {
		order.StoreID = c.storeID
	}
	for _, fee := range o.Fees {
		order.ServiceFee = order.ServiceFee.Add(fromMinorUnits(fee.Amount.Fractional))
	}
	if !o.ASAP {
		if t := parseTimestamp(o.PrepareFor); !t.IsZero() {
			order.ScheduledFor = &t
		}
	}
	if d := o.Delivery; d != nil {
		order.DeliveryFee = fromMinorUnits(d.DeliveryFee.Fractional)
		if a := d.Address; a != nil {
			order.DeliveryAddress = &integration.Address{
				Street:     strings.TrimSpace(a.Number + " " + a.Street),
				City:       a.City,
				PostalCode: a.Postcode,
				Country:    a.Country,
				Notes:      a.Instructions,
				Latitude:   a.Latitude,
				Longitude:  a.Longitude,
			}
		}
	}

	for _, item := range o.Items {
		line := integration.OrderItem{
			ExternalID:   item.PosItemID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    fromMinorUnits(item.UnitPrice.Fractional),
			TotalPrice:   fromMinorUnits(item.TotalPrice.Fractional),
			Instructions: item.Notes,
		}
		for _, mod := range item.Modifiers {
			line.Modifiers = append(line.Modifiers, integration.OrderModifier{
				ExternalID: mod.PosItemID,
				Name:       mod.Name,
				Quantity:   mod.Quantity,
				Price:      fromMinorUnits(mod.UnitPrice.Fractional),
			})
		}
		order.Items = append(order.Items, line)
	}
	return order
}

func deliverooOptional(m *DeliverooMoney) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return fromMinorUnits(m.Fractional)
}

// buildDeliverooMenu reshapes the menu into the Deliveroo menu schema.
// Internal item IDs are sent as PLUs so the response can map them back.
func buildDeliverooMenu(menu *integration.Menu) DeliverooMenuRequest {
	body := DeliverooMenuBody{
		Categories: []DeliverooMenuCategory{},
		Items:      []DeliverooMenuItem{},
		Modifiers:  []DeliverooMenuModifier{},
	}
	seenGroups := make(map[string]bool)

	for _, cat := range menu.Categories {
		category := DeliverooMenuCategory{ID: cat.ID, Name: cat.Name, ItemIDs: []string{}}
		for _, item := range cat.Items {
			category.ItemIDs = append(category.ItemIDs, item.ID)
			entry := DeliverooMenuItem{
				ID:          item.ID,
				PLU:         item.ID,
				Name:        item.Name,
				Description: item.Description,
				PriceInfo:   DeliverooPriceInfo{Price: toMinorUnits(item.Price)},
				ImageURL:    item.ImageURL,
				Available:   item.Available,
			}
			for _, group := range item.ModifierGroups {
				entry.ModifierIDs = append(entry.ModifierIDs, group.ID)
				if seenGroups[group.ID] {
					continue
				}
				seenGroups[group.ID] = true

				modifier := DeliverooMenuModifier{
					ID:           group.ID,
					Name:         group.Name,
					MinSelection: group.MinSelections,
					MaxSelection: group.MaxSelections,
					Required:     group.Required,
					ItemIDs:      []string{},
				}
				for _, opt := range group.Options {
					modifier.ItemIDs = append(modifier.ItemIDs, opt.ID)
					body.Items = append(body.Items, DeliverooMenuItem{
						ID:        opt.ID,
						PLU:       opt.ID,
						Name:      opt.Name,
						PriceInfo: DeliverooPriceInfo{Price: toMinorUnits(opt.Price)},
						Available: opt.Available,
					})
				}
				body.Modifiers = append(body.Modifiers, modifier)
			}
			body.Items = append(body.Items, entry)
		}
		body.Categories = append(body.Categories, category)
	}
	return DeliverooMenuRequest{Name: menu.Name, Menu: body}
}
