package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/inferd/docs.go -o internal/docs`.
//
// @title           inferd API
// @version         1.0
// @description     WebSocket and HTTP API for stateful text-generation sessions.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
