package main

// General API documentation for swaggo. Run `swag init -g cmd/deskhogd/docs.go`
// to generate docs, then build with -tags=swagger.
//
// @title           deskhogd API
// @version         1.0
// @description     Configuration portal and status API of the DeskHog device daemon.
// @description     Mutating endpoints queue an action and return 202; poll /api/status for the outcome.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
