// Package ddbui serves the models of an Adapter over a small JSON API, for
// poking at local data while developing.
//
// Start it through the ddb command, usually against a local store:
//
//	ddb ui --db ./data --addr :8080
//
// Routes:
//
//	GET    /api/models                             defined models and their keys
//	GET    /api/models/{model}                     one model
//	GET    /api/models/{model}/records             All; query: where, order, limit, skip, fields
//	POST   /api/models/{model}/records             Create
//	PUT    /api/models/{model}/records             Save
//	GET    /api/models/{model}/count               Count; query: where
//	POST   /api/models/{model}/destroy             DestroyAll; body: where clause
//	GET    /api/models/{model}/records/{hash}[/{range}]
//	PATCH  /api/models/{model}/records/{hash}/{range}
//	DELETE /api/models/{model}/records/{hash}[/{range}]
//
// where is a JSON object, the same clause All takes. Errors are returned as
// {"error": "..."} with 404 for unknown models and missing records and 400
// for malformed input.
package ddbui
