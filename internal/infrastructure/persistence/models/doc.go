// Package models contains GORM persistence models that map to database tables.
// Domain entities carry no ORM tags; each model converts to and from its
// domain type with ToDomain / FromDomain, and repositories only ever hand
// domain types to callers.
//
// Files:
//   - base.go: BaseModel and AggregateModel shared by every table
//   - catalog.go: categories, products, game_keys
//   - identity.go: users
//   - cart.go: carts, cart_items
//   - order.go: orders, order_items
package models
