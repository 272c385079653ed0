// Package models contains GORM persistence models for the kernel tables.
// Domain entities carry no ORM tags; each model converts to and from its
// entity with ToDomain and FromDomain, and lists its write columns with
// Values so repositories can hand them to the tenant guard.
package models
