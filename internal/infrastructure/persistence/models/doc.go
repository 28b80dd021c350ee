// Package models holds the gorm row types of the ledger tables and their
// conversions to and from domain values. Domain types never carry gorm tags.
package models
