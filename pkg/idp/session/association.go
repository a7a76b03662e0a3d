package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// HandlerType names the logout strategy owning an association. The set
// is closed; strategies are resolved through a lookup table built when
// the Manager is constructed, never instantiated dynamically.
type HandlerType string

const (
	// HandlerTraditional logs out one service provider at a time,
	// redirecting the user agent to each in turn.
	HandlerTraditional HandlerType = "traditional"
	// HandlerIFrame contacts all service providers concurrently through
	// hidden frames on a single page.
	HandlerIFrame HandlerType = "iframe"
)

// Per association logout progress, bookkeeping private to the iframe
// handler.
const (
	StatusOnHold = "onhold"
	StatusDone   = "done"
)

// Association is one service provider's participation in an IdP
// session.
type Association struct {
	ID            string
	IdPSessionID  string
	HandlerType   HandlerType
	SPEntityID    string
	SPDisplayName string
	Status        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// NewAssociationID derives an association id from the SP entity id and
// a disambiguator, unique within one IdP session as long as the
// disambiguator is.
func NewAssociationID(spEntityID, disambiguator string) string {
	sum := sha256.Sum256([]byte(spEntityID + ":" + disambiguator))
	return hex.EncodeToString(sum[:16])
}
