package integration

import "strings"

// statusMapping is one row of the status mapping table
type statusMapping struct {
	internal  OrderStatus
	providers map[Provider]string
}

// statusTable is the single source of truth for status translation.
// Rows are ordered; reverse lookup resolves to the first matching row.
var statusTable = []statusMapping{
	{OrderStatusPending, map[Provider]string{
		ProviderUberEats:  "CREATED",
		ProviderDeliveroo: "PLACED",
		ProviderJustEat:   "Placed",
	}},
	{OrderStatusAccepted, map[Provider]string{
		ProviderUberEats:  "ACCEPTED",
		ProviderDeliveroo: "ACCEPTED",
		ProviderJustEat:   "Accepted",
	}},
	{OrderStatusPreparing, map[Provider]string{
		ProviderUberEats:  "PREPARING",
		ProviderDeliveroo: "IN_KITCHEN",
		ProviderJustEat:   "Cooking",
	}},
	{OrderStatusReady, map[Provider]string{
		ProviderUberEats:  "READY_FOR_PICKUP",
		ProviderDeliveroo: "READY_FOR_COLLECTION",
		ProviderJustEat:   "ReadyForCollection",
	}},
	{OrderStatusCompleted, map[Provider]string{
		ProviderUberEats:  "FINISHED",
		ProviderDeliveroo: "COLLECTED",
		ProviderJustEat:   "Delivered",
	}},
	{OrderStatusCancelled, map[Provider]string{
		ProviderUberEats:  "CANCELED",
		ProviderDeliveroo: "CANCELLED",
		ProviderJustEat:   "Cancelled",
	}},
}

// statusAliases are provider tokens that resolve to an internal status
// without being the canonical outbound token
var statusAliases = map[Provider]map[string]OrderStatus{
	ProviderUberEats: {
		"DENIED":    OrderStatusCancelled,
		"CANCELLED": OrderStatusCancelled,
	},
	ProviderDeliveroo: {
		"REJECTED":  OrderStatusCancelled,
		"CANCELED":  OrderStatusCancelled,
		"CONFIRMED": OrderStatusAccepted,
	},
	ProviderJustEat: {
		"REJECTED":     OrderStatusCancelled,
		"CANCELED":     OrderStatusCancelled,
		"ACKNOWLEDGED": OrderStatusAccepted,
	},
}

// ToProviderStatus translates an internal status into the provider's token.
// It never fails: an unknown status or provider yields the internal token verbatim.
func ToProviderStatus(provider Provider, status OrderStatus) string {
	for _, row := range statusTable {
		if row.internal != status {
			continue
		}
		if token, ok := row.providers[provider]; ok {
			return token
		}
		break
	}
	return string(status)
}

// FromProviderStatus translates a provider token into the internal status.
// Matching is case-insensitive; unknown tokens resolve to pending.
func FromProviderStatus(provider Provider, token string) OrderStatus {
	token = strings.TrimSpace(token)
	if token == "" {
		return OrderStatusPending
	}
	for _, row := range statusTable {
		if candidate, ok := row.providers[provider]; ok && strings.EqualFold(candidate, token) {
			return row.internal
		}
	}
	if aliases, ok := statusAliases[provider]; ok {
		if status, ok := aliases[strings.ToUpper(token)]; ok {
			return status
		}
	}
	return OrderStatusPending
}
