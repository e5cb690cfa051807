// Package api exposes the Memory, Knowledge, and Jobs façades over
// HTTP using Gin, with a standard JSON response envelope, CORS, API
// key auth, and rate limiting.
package api
