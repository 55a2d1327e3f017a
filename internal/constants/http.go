package constants

import "time"

// ContentTypeHeader is the HTTP Content-Type header name.
const ContentTypeHeader = "Content-Type"

// AuthorizationHeader is the HTTP Authorization header name.
const AuthorizationHeader = "Authorization"

// CacheControlHeader is the HTTP Cache-Control header name.
const CacheControlHeader = "Cache-Control"

// PragmaHeader is the HTTP Pragma header name.
const PragmaHeader = "Pragma"

// NoCache disables caching on relayed calls.
const NoCache = "no-cache"

// JSONContentType is the content type of JSON payloads.
const JSONContentType = "application/json"

// RelayFetchPath is the relay path performing an upstream call.
const RelayFetchPath = "fetch"

// RelayPingPath is the relay path answering "pong".
const RelayPingPath = "ping"

// RelayPong is the body returned by a healthy relay.
const RelayPong = "pong"

// HTTPStatusBadRequest is the HTTP status code for bad requests (400)
const HTTPStatusBadRequest = 400

// ServerReadTimeout is the HTTP server read timeout
const ServerReadTimeout = 15 * time.Second

// ServerWriteTimeout is the HTTP server write timeout
const ServerWriteTimeout = 75 * time.Second

// ServerIdleTimeout is the HTTP server idle timeout
const ServerIdleTimeout = 60 * time.Second

// ServerShutdownTimeout is the timeout for graceful server shutdown
const ServerShutdownTimeout = 5 * time.Second

// GitHubUserURL is queried to check a GitHub token and resolve its login.
const GitHubUserURL = "https://api.github.com/user"

// GitHubAcceptHeader is the media type requested from the GitHub API.
const GitHubAcceptHeader = "application/vnd.github.v3+json"
