// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the internal orchestration services, translating HTTP concerns to
// business operations.
package api
