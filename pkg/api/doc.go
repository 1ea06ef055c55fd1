// Package api exposes the authorization engine over HTTP: a POST
// /v1/authorize decision endpoint for sidecar-style policy enforcement
// points, admin operations for role-table reload and per-user cache
// invalidation, plus health and metrics endpoints.
package api
