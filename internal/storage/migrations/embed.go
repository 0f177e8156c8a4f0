package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickHouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickHouseFS embed.FS
