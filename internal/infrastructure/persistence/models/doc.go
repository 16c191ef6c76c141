// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns; repositories convert with ToDomain / ...FromDomain.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - sales.go: documents, document lines and free item rules
//   - inventory.go: items, availability rows and the stock journal
//   - outbox.go: outbox entries for event delivery
package models
