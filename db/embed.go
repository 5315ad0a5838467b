// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains the DDL for all order-pipeline tables, including the
// uniqueness constraints the reconciliation logic depends on.
//
//go:embed migrations/001_schema.sql
var Schema string
