package store

import "embed"

// Migrations holds the schema for the contacts table, applied by
// golang-migrate at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"
