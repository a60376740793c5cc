// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "NES Dashboard Backend",
    "description": "Filtering and aggregation API for the maintenance ticket and NES participation dashboards. Read endpoints accept the filter query format: one comma-joined parameter per dimension plus start/end (YYYY-MM-DD) or period.",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {"get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "ok"}, "503": {"description": "store unavailable"}}}},
    "/api/status": {"get": {"tags": ["status"], "summary": "Dataset load status", "responses": {"200": {"description": "ok"}}}},
    "/api/tickets": {"get": {"tags": ["dashboard"], "summary": "Filtered ticket page", "parameters": [
      {"name": "limit", "in": "query", "type": "integer"},
      {"name": "offset", "in": "query", "type": "integer"},
      {"name": "sort", "in": "query", "type": "string"},
      {"name": "period", "in": "query", "type": "string"}
    ], "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/options": {"get": {"tags": ["dashboard"], "summary": "Distinct values per ticket dimension", "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/summary": {"get": {"tags": ["tickets"], "summary": "Ticket summary", "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/distribution/{dimension}": {"get": {"tags": ["dashboard"], "summary": "Ticket counts by dimension", "parameters": [{"name": "dimension", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}, "400": {"description": "unknown dimension"}}}},
    "/api/tickets/timeseries": {"get": {"tags": ["dashboard"], "summary": "Tickets per registered month", "parameters": [{"name": "months", "in": "query", "type": "integer"}], "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/crosstab": {"get": {"tags": ["dashboard"], "summary": "Ticket crosstab", "parameters": [
      {"name": "rows", "in": "query", "required": true, "type": "string"},
      {"name": "cols", "in": "query", "required": true, "type": "string"},
      {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "xlsx"]}
    ], "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/export": {"get": {"tags": ["dashboard"], "summary": "Export filtered tickets", "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "xlsx"]}], "responses": {"200": {"description": "ok"}}}},
    "/api/tickets/session": {"get": {"tags": ["session"], "summary": "Ticket session state and snapshot", "responses": {"200": {"description": "ok"}}}},
    "/api/participation": {"get": {"tags": ["dashboard"], "summary": "Filtered participation page", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/options": {"get": {"tags": ["dashboard"], "summary": "Distinct values per participation dimension", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/kpis": {"get": {"tags": ["participation"], "summary": "Participation KPIs", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/distribution/{dimension}": {"get": {"tags": ["dashboard"], "summary": "Participation counts by dimension", "parameters": [{"name": "dimension", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "ok"}}}},
    "/api/participation/timeseries": {"get": {"tags": ["dashboard"], "summary": "Participation per event month", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/crosstab": {"get": {"tags": ["dashboard"], "summary": "Participation crosstab", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/export": {"get": {"tags": ["dashboard"], "summary": "Export filtered participation", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/geo": {"get": {"tags": ["participation"], "summary": "Map points", "parameters": [
      {"name": "limit", "in": "query", "type": "integer"},
      {"name": "radius_km", "in": "query", "type": "number"}
    ], "responses": {"200": {"description": "ok"}}}},
    "/api/participation/states": {"get": {"tags": ["participation"], "summary": "Per-state metrics", "responses": {"200": {"description": "ok"}}}},
    "/api/participation/session": {"get": {"tags": ["session"], "summary": "Participation session state and snapshot", "responses": {"200": {"description": "ok"}}}},
    "/api/admin/refresh": {"post": {"tags": ["admin"], "summary": "Force a dataset reload", "parameters": [{"name": "X-Admin-Key", "in": "header", "type": "string"}], "responses": {"200": {"description": "ok"}, "401": {"description": "invalid admin key"}, "502": {"description": "reload failed"}}}},
    "/api/admin/cache": {"delete": {"tags": ["admin"], "summary": "Clear the local cache and reload", "parameters": [{"name": "X-Admin-Key", "in": "header", "type": "string"}], "responses": {"200": {"description": "ok"}, "401": {"description": "invalid admin key"}}}}
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
