package session

import (
	"context"
	"net/http"
)

// TransportMessage is a protocol message ready for the front channel.
type TransportMessage struct {
	// URL is the destination including the encoded message and relay
	// data, suitable for a redirect or a frame source.
	URL string
}

// LogoutResult is the parsed outcome of one SP's logout response.
type LogoutResult struct {
	// AssociationID may be empty when the response only identifies the
	// issuing SP; SPEntityID is set in that case.
	AssociationID string
	SPEntityID    string
	RelayState    string
	Success       bool
	ErrorDetail   string
}

// MessageCodec builds and parses protocol messages. Signatures,
// encryption and binding details all live behind it; the orchestration
// treats messages as opaque.
type MessageCodec interface {
	BuildLogoutRequest(ctx context.Context, association *Association, relayState string) (*TransportMessage, error)
	ParseLogoutResponse(ctx context.Context, r *http.Request) (*LogoutResult, error)
}

// MetadataProvider resolves UI labels. It is never consulted for
// control flow.
type MetadataProvider interface {
	ResolveDisplayName(ctx context.Context, spEntityID string) (string, error)
}

// CredentialVerifier authenticates a principal before FinishLogin. The
// backing mechanism (LDAP, SQL, OAuth, ...) is out of scope here.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, secret string) (userID string, err error)
}
