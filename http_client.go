package main

import (
	"net/http"
	"time"
)

// upstreamRequestTimeout bounds every Trello and GitHub call; the
// Anthropic SDK carries its own request timeout.
const upstreamRequestTimeout = 30 * time.Second

// externalHTTPClient is shared by all upstream REST clients.
var externalHTTPClient = &http.Client{
	Timeout: upstreamRequestTimeout,
}
