// Package embedded provides static assets compiled into the binary.
package embedded

import (
	"embed"
)

// Schemas holds one SQL schema per database, named <database>.sql:
//   - core.sql - companies, minerals, sites, licences, alerts and history
//   - forecasts.sql - forecast rows, rebuilt on every refresh
//
//go:embed schemas/*.sql
var Schemas embed.FS
