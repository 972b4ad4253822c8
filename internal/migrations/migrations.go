// Package migrations contains PocketBase Go migrations for gymos
// collections.
//
// All migration files use init() to register with the PocketBase migration
// runner. The package must be blank-imported in main.go:
//
//	_ "github.com/fitstack/gymos/internal/migrations"
package migrations
