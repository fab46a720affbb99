// Package domain contains the core business concepts for the pdf-generator service.
// Keep this package free of transport (HTTP) and infrastructure (Chrome/Redis/Postgres) concerns.
package domain
