package samlcodec

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/golang/mock/gomock"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/ssokit/idp/pkg/idp/mock"
	"github.com/ssokit/idp/pkg/idp/session"
)

func newTestCodec(t *testing.T, resolver EndpointResolver, opts ...Option) *Codec {
	t.Helper()
	codec, err := New(&Config{Issuer: "https://idp.example.org/metadata"}, resolver, opts...)
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}
	codec.newID = func() string { return "_test-request-id" }
	codec.now = func() time.Time { return time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC) }
	return codec
}

func testAssociation() *session.Association {
	return &session.Association{
		ID:           "assoc-1",
		IdPSessionID: "session-1",
		HandlerType:  session.HandlerTraditional,
		SPEntityID:   "https://sp.example.org/metadata",
	}
}

func decodeRequest(t *testing.T, rawURL string) (*etree.Element, url.Values) {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("invalid url %q: %v", rawURL, err)
	}
	query := parsed.Query()

	data, err := inflateAndDecode(EncodingDeflate, query.Get("SAMLRequest"))
	if err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		t.Fatalf("failed to parse request: %v", err)
	}
	return doc.Root(), query
}

func TestCodec_BuildLogoutRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mock.NewMockStorage(ctrl)
	resolver.EXPECT().
		SingleLogoutURL(gomock.Any(), "https://sp.example.org/metadata").
		Return("https://sp.example.org/slo", nil)

	codec := newTestCodec(t, resolver)
	message, err := codec.BuildLogoutRequest(context.Background(), testAssociation(), "_relay-1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !strings.HasPrefix(message.URL, "https://sp.example.org/slo?") {
		t.Fatalf("url = %q", message.URL)
	}

	root, query := decodeRequest(t, message.URL)
	if root.Tag != "LogoutRequest" {
		t.Fatalf("root tag = %s", root.Tag)
	}
	if got := root.SelectAttrValue("Destination", ""); got != "https://sp.example.org/slo" {
		t.Errorf("destination = %q", got)
	}
	if got := root.SelectAttrValue("IssueInstant", ""); got != "2024-04-02T12:00:00Z" {
		t.Errorf("issue instant = %q", got)
	}
	if got := root.FindElement("./Issuer").Text(); got != "https://idp.example.org/metadata" {
		t.Errorf("issuer = %q", got)
	}
	nameID := root.FindElement("./NameID")
	if nameID == nil || nameID.Text() != "session-1" {
		t.Errorf("name id = %v", nameID)
	}
	if got := nameID.SelectAttrValue("Format", ""); got != nameIDTransient {
		t.Errorf("name id format = %q", got)
	}
	if got := root.FindElement("./SessionIndex").Text(); got != "assoc-1" {
		t.Errorf("session index = %q", got)
	}

	if got := query.Get("RelayState"); got != "_relay-1" {
		t.Errorf("relay state = %q", got)
	}
	if got := query.Get("SAMLEncoding"); got != EncodingDeflate {
		t.Errorf("encoding = %q", got)
	}
}

func TestCodec_BuildLogoutRequest_destinationWithQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mock.NewMockStorage(ctrl)
	resolver.EXPECT().
		SingleLogoutURL(gomock.Any(), gomock.Any()).
		Return("https://sp.example.org/slo?tenant=a", nil)

	codec := newTestCodec(t, resolver)
	message, err := codec.BuildLogoutRequest(context.Background(), testAssociation(), "_relay-1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !strings.HasPrefix(message.URL, "https://sp.example.org/slo?tenant=a&SAMLRequest=") {
		t.Errorf("url = %q", message.URL)
	}
}

func TestCodec_BuildLogoutRequest_noEndpoint(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
	}{
		{"resolver error", "", fmt.Errorf("unknown sp")},
		{"no endpoint registered", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			resolver := mock.NewMockStorage(ctrl)
			resolver.EXPECT().SingleLogoutURL(gomock.Any(), gomock.Any()).Return(tt.url, tt.err)

			codec := newTestCodec(t, resolver)
			if _, err := codec.BuildLogoutRequest(context.Background(), testAssociation(), "_relay-1"); err == nil {
				t.Error("expected a build error")
			}
		})
	}
}

func TestCodec_BuildLogoutRequest_signed(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example.org"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	cert, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	ctrl := gomock.NewController(t)
	resolver := mock.NewMockStorage(ctrl)
	resolver.EXPECT().SingleLogoutURL(gomock.Any(), gomock.Any()).Return("https://sp.example.org/slo", nil)

	conf := &Config{
		Issuer:             "https://idp.example.org/metadata",
		SignatureAlgorithm: dsig.RSASHA256SignatureMethod,
	}
	codec, err := New(conf, resolver, WithSignature(conf, cert, key))
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}

	message, err := codec.BuildLogoutRequest(context.Background(), testAssociation(), "_relay-1")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	parsed, err := url.Parse(message.URL)
	if err != nil {
		t.Fatalf("invalid url: %v", err)
	}
	if got := parsed.Query().Get("SigAlg"); got != dsig.RSASHA256SignatureMethod {
		t.Errorf("sig alg = %q", got)
	}
	if parsed.Query().Get("Signature") == "" {
		t.Error("signature missing")
	}
}

func TestCodec_WithSignature_invalidAlgorithm(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	conf := &Config{SignatureAlgorithm: "hmac"}
	if _, err := New(conf, nil, WithSignature(conf, nil, key)); err == nil {
		t.Error("expected an error for the unsupported algorithm")
	}
}

func buildResponse(t *testing.T, issuer, statusCode, statusMessage string) string {
	t.Helper()
	doc := etree.NewDocument()
	response := doc.CreateElement("samlp:LogoutResponse")
	response.CreateAttr("xmlns:samlp", namespaceProtocol)
	response.CreateAttr("xmlns:saml", namespaceAssertion)
	response.CreateAttr("ID", "_response-id")
	response.CreateAttr("Version", "2.0")
	response.CreateElement("saml:Issuer").SetText(issuer)
	status := response.CreateElement("samlp:Status")
	status.CreateElement("samlp:StatusCode").CreateAttr("Value", statusCode)
	if statusMessage != "" {
		status.CreateElement("samlp:StatusMessage").SetText(statusMessage)
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		t.Fatalf("failed to render response: %v", err)
	}
	encoded, err := deflateAndBase64(data)
	if err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
	return string(encoded)
}

func TestCodec_ParseLogoutResponse(t *testing.T) {
	type args struct {
		issuer        string
		statusCode    string
		statusMessage string
		relayState    string
	}
	type res struct {
		spEntityID  string
		success     bool
		errorDetail string
		relayState  string
	}
	tests := []struct {
		name string
		args args
		res  res
	}{
		{
			"success",
			args{
				issuer:     "https://sp.example.org/metadata",
				statusCode: StatusSuccess,
				relayState: "_relay-1",
			},
			res{
				spEntityID: "https://sp.example.org/metadata",
				success:    true,
				relayState: "_relay-1",
			},
		},
		{
			"responder failure",
			args{
				issuer:     "https://sp.example.org/metadata",
				statusCode: "urn:oasis:names:tc:SAML:2.0:status:Responder",
				relayState: "_relay-1",
			},
			res{
				spEntityID:  "https://sp.example.org/metadata",
				success:     false,
				errorDetail: "urn:oasis:names:tc:SAML:2.0:status:Responder",
				relayState:  "_relay-1",
			},
		},
		{
			"failure with message",
			args{
				issuer:        "https://sp.example.org/metadata",
				statusCode:    "urn:oasis:names:tc:SAML:2.0:status:Responder",
				statusMessage: "session already closed",
				relayState:    "_relay-1",
			},
			res{
				spEntityID:  "https://sp.example.org/metadata",
				success:     false,
				errorDetail: "session already closed",
				relayState:  "_relay-1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := newTestCodec(t, nil)

			query := url.Values{}
			query.Set("SAMLResponse", buildResponse(t, tt.args.issuer, tt.args.statusCode, tt.args.statusMessage))
			query.Set("RelayState", tt.args.relayState)
			r := httptest.NewRequest(http.MethodGet, "/logout/callback?"+query.Encode(), nil)

			result, err := codec.ParseLogoutResponse(context.Background(), r)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if result.SPEntityID != tt.res.spEntityID {
				t.Errorf("sp entity id = %q, want %q", result.SPEntityID, tt.res.spEntityID)
			}
			if result.Success != tt.res.success {
				t.Errorf("success = %v, want %v", result.Success, tt.res.success)
			}
			if result.ErrorDetail != tt.res.errorDetail {
				t.Errorf("error detail = %q, want %q", result.ErrorDetail, tt.res.errorDetail)
			}
			if result.RelayState != tt.res.relayState {
				t.Errorf("relay state = %q, want %q", result.RelayState, tt.res.relayState)
			}
		})
	}
}

func TestCodec_ParseLogoutResponse_invalid(t *testing.T) {
	codec := newTestCodec(t, nil)

	tests := []struct {
		name  string
		query url.Values
	}{
		{
			"missing response",
			url.Values{},
		},
		{
			"broken encoding",
			url.Values{"SAMLResponse": {"%%%"}},
		},
		{
			"wrong message type",
			func() url.Values {
				doc := etree.NewDocument()
				doc.CreateElement("samlp:LogoutRequest").CreateAttr("xmlns:samlp", namespaceProtocol)
				data, _ := doc.WriteToBytes()
				encoded, _ := deflateAndBase64(data)
				return url.Values{"SAMLResponse": {string(encoded)}}
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/logout/callback?"+tt.query.Encode(), nil)
			if _, err := codec.ParseLogoutResponse(context.Background(), r); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}
