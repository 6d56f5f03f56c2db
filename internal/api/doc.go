// Package api serves migrations over HTTP with gin.
//
// Every route under /api except the dispatch webhook identifies the caller through the X-User-ID
// header; authentication itself is left to whatever sits in front of the service.
//
//	GET    /health
//	GET    /api/credentials
//	POST   /api/credentials
//	DELETE /api/credentials/:service       disconnects the service
//	POST   /api/migrations                 create and queue
//	GET    /api/migrations                 ?status=&page=&limit=
//	GET    /api/migrations/:id
//	GET    /api/migrations/:id/progress
//	POST   /api/migrations/:id/pause
//	POST   /api/migrations/:id/resume      re-queues the run
//	POST   /api/migrations/:id/cancel
//	DELETE /api/migrations/:id             same as cancel
//	POST   /api/webhooks/dispatch          signed with Upstash-Signature
//
// Errors are returned as {"error": "..."} with the status chosen by [StatusFor].
package api
