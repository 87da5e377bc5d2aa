package services

import (
	"encoding/json"

	"github.com/desertthunder/muse/internal/fetch"
)

// decode parses an API payload into dst at the client boundary. Anything the
// wire types cannot absorb surfaces as a malformed error so downstream code
// never defends against missing fields itself.
func decode(raw json.RawMessage, dst any) error {
	if raw == nil {
		return &fetch.Error{Kind: fetch.KindMalformed, Message: "empty response body"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &fetch.Error{Kind: fetch.KindMalformed, Message: "unexpected response shape", Err: err}
	}
	return nil
}
