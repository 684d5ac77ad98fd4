package main

// General API documentation for swaggo. Run `swag init -g cmd/modelgate/docs.go`
// to regenerate ./docs.
//
// @title           modelgate API
// @version         1.0
// @description     Gateway routing generation requests to per-model worker processes.
//
// @contact.name   modelgate maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
