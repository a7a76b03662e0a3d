// Package samlcodec turns the logout orchestration's logical messages
// into SAML redirect binding transport messages and back. The
// orchestration itself only ever sees the session.MessageCodec
// interface.
package samlcodec

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/ssokit/idp/pkg/idp/flow"
	"github.com/ssokit/idp/pkg/idp/session"
)

const (
	namespaceProtocol  = "urn:oasis:names:tc:SAML:2.0:protocol"
	namespaceAssertion = "urn:oasis:names:tc:SAML:2.0:assertion"
	nameIDTransient    = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"

	StatusSuccess = "urn:oasis:names:tc:SAML:2.0:status:Success"

	DefaultTimeFormat = "2006-01-02T15:04:05.999999Z"
)

// EndpointResolver supplies the single logout endpoint of a service
// provider, typically out of its registered metadata.
type EndpointResolver interface {
	SingleLogoutURL(ctx context.Context, spEntityID string) (string, error)
}

type Config struct {
	// Issuer is the IdP entity id stamped on every request.
	Issuer string `yaml:"Issuer"`
	// TimeFormat defaults to DefaultTimeFormat.
	TimeFormat string `yaml:"TimeFormat"`
	// SignatureAlgorithm enables detached query signing when a key is
	// provided through WithSignature.
	SignatureAlgorithm string `yaml:"SignatureAlgorithm"`
}

type Codec struct {
	issuer     string
	timeFormat string
	endpoints  EndpointResolver

	signingContext *dsig.SigningContext
	sigAlg         string

	newID func() string
	now   func() time.Time
}

type Option func(c *Codec) error

// WithSignature signs the redirect query with the given certificate
// and key using the configured algorithm.
func WithSignature(conf *Config, cert []byte, key *rsa.PrivateKey) Option {
	return func(c *Codec) error {
		if err := isValidSignatureAlgorithm(conf.SignatureAlgorithm); err != nil {
			return err
		}
		tlsCert, err := parseTLSKeyPair(cert, key)
		if err != nil {
			return err
		}
		signingContext, err := getSigningContext(tlsCert, conf.SignatureAlgorithm)
		if err != nil {
			return err
		}
		c.signingContext = signingContext
		c.sigAlg = conf.SignatureAlgorithm
		return nil
	}
}

func New(conf *Config, endpoints EndpointResolver, opts ...Option) (*Codec, error) {
	codec := &Codec{
		issuer:     conf.Issuer,
		timeFormat: conf.TimeFormat,
		endpoints:  endpoints,
		newID:      flow.NewID,
		now:        time.Now,
	}
	if codec.timeFormat == "" {
		codec.timeFormat = DefaultTimeFormat
	}
	for _, opt := range opts {
		if err := opt(codec); err != nil {
			return nil, err
		}
	}
	return codec, nil
}

// BuildLogoutRequest renders a redirect binding LogoutRequest for the
// association's SP, carrying relayState so the response resumes the
// right run. An SP without a logout endpoint is a build error; the
// orchestration treats it like a negative response.
func (c *Codec) BuildLogoutRequest(ctx context.Context, association *session.Association, relayState string) (*session.TransportMessage, error) {
	destination, err := c.endpoints.SingleLogoutURL(ctx, association.SPEntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logout endpoint of %s: %w", association.SPEntityID, err)
	}
	if destination == "" {
		return nil, fmt.Errorf("no logout endpoint configured for %s", association.SPEntityID)
	}

	doc := etree.NewDocument()
	request := doc.CreateElement("samlp:LogoutRequest")
	request.CreateAttr("xmlns:samlp", namespaceProtocol)
	request.CreateAttr("xmlns:saml", namespaceAssertion)
	request.CreateAttr("ID", c.newID())
	request.CreateAttr("Version", "2.0")
	request.CreateAttr("IssueInstant", c.now().UTC().Format(c.timeFormat))
	request.CreateAttr("Destination", destination)

	issuer := request.CreateElement("saml:Issuer")
	issuer.SetText(c.issuer)

	// the IdP session id doubles as the transient subject identifier;
	// the association id rides along as the session index
	nameID := request.CreateElement("saml:NameID")
	nameID.CreateAttr("Format", nameIDTransient)
	nameID.SetText(association.IdPSessionID)

	sessionIndex := request.CreateElement("samlp:SessionIndex")
	sessionIndex.SetText(association.ID)

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	encoded, err := deflateAndBase64(data)
	if err != nil {
		return nil, err
	}

	query := "SAMLRequest=" + url.QueryEscape(string(encoded))
	if relayState != "" {
		query += "&RelayState=" + url.QueryEscape(relayState)
	}
	query += "&SAMLEncoding=" + url.QueryEscape(EncodingDeflate)

	if c.signingContext != nil {
		query += "&SigAlg=" + url.QueryEscape(c.sigAlg)
		signature, err := c.signingContext.SignString(query)
		if err != nil {
			return nil, fmt.Errorf("failed to sign logout request: %w", err)
		}
		query += "&Signature=" + url.QueryEscape(base64.StdEncoding.EncodeToString(signature))
	}

	separator := "?"
	if strings.Contains(destination, "?") {
		separator = "&"
	}
	return &session.TransportMessage{URL: destination + separator + query}, nil
}

// ParseLogoutResponse reads one SP's logout response off the return
// channel request. The association is identified by the response
// issuer; signature validation of inbound responses is left to the
// deployment's front proxy or a wrapping codec.
func (c *Codec) ParseLogoutResponse(_ context.Context, r *http.Request) (*session.LogoutResult, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	encoded := r.Form.Get("SAMLResponse")
	if encoded == "" {
		return nil, fmt.Errorf("no logout response provided")
	}
	encoding := r.Form.Get("SAMLEncoding")
	if encoding == "" && r.Method == http.MethodGet {
		encoding = EncodingDeflate
	}

	data, err := inflateAndDecode(encoding, encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logout response: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse logout response: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "LogoutResponse" {
		return nil, fmt.Errorf("message is no logout response")
	}

	result := &session.LogoutResult{
		RelayState: r.Form.Get("RelayState"),
	}
	if issuer := root.FindElement("./Issuer"); issuer != nil {
		result.SPEntityID = issuer.Text()
	}
	if statusCode := root.FindElement("./Status/StatusCode"); statusCode != nil {
		value := statusCode.SelectAttrValue("Value", "")
		result.Success = value == StatusSuccess
		if !result.Success {
			result.ErrorDetail = value
		}
	}
	if message := root.FindElement("./Status/StatusMessage"); message != nil && message.Text() != "" {
		result.ErrorDetail = message.Text()
	}
	return result, nil
}
