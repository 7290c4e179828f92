// Package models contains the GORM persistence models for integrations, delivery
// orders and the webhook queue. Domain entities stay free of ORM tags; each model
// converts with ToDomain and FromDomain.
//
// Column layout matches the SQL migrations in infrastructure/migration/sql.
// Structured columns (credentials, settings, headers, items) are JSON encoded.
package models
