// Package db provides the embedded schema of the postgres key-value backend.
package db

import _ "embed"

// Schema contains the DDL for the kv_entries table.
//
//go:embed migrations/001_schema.sql
var Schema string
