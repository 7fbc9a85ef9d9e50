// Package handler implements the HTTP API for netpulse.
//
// # Routes
//
//	GET    /api/network                      nested hierarchy
//	POST   /api/network/nodes                add a router, switch or device
//	GET    /api/network/nodes/{id}           one node
//	DELETE /api/network/nodes/{id}           remove a node (children are kept)
//	GET    /api/network/parent-nodes/{kind}  possible parents for a new node
//	POST   /api/network/sweep                run a monitoring sweep now
//	GET    /api/export/{format}              json or yaml snapshot
//
// Errors are returned as JSON with an {error, details} body. Missing parents
// and nodes map to 404, duplicate ids to 409, bad kinds and attributes to
// 400, and persistence failures to 503.
//
// Middleware provides panic recovery, CORS and request logging.
package handler
