// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free of ORM
// concerns. Repositories read and write models and convert at the boundary with the
// ToDomain / FromDomain mappers.
package models
