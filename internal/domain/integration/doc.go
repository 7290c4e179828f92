// Package integration contains the delivery-platform integration bounded context.
// It lets a restaurant receive orders from third-party delivery marketplaces and
// push its own state (menu, availability, order decisions) back to them.
//
// Key concepts:
//   - DeliveryPlatform: port every marketplace client implements (authenticate, orders,
//     menu, availability, accept/deny, webhook decoding)
//   - NormalizedOrder: provider-agnostic order shape produced by every client
//   - Status mapping table: bidirectional translation of order status vocabularies
//   - Integration: per-organization record of one provider connection
//   - WebhookEntry: durable queue entry for an inbound provider webhook
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (provider clients, repositories) are in the infrastructure layer
package integration
