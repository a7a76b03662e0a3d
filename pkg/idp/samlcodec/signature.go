package samlcodec

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	dsig "github.com/russellhaering/goxmldsig"
)

func parseTLSKeyPair(cert []byte, key *rsa.PrivateKey) (tls.Certificate, error) {
	certPem := pem.EncodeToMemory(
		&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert,
		},
	)

	keyPem := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		},
	)

	return tls.X509KeyPair(certPem, keyPem)
}

func getSigningContext(tlsCert tls.Certificate, signatureAlgorithm string) (*dsig.SigningContext, error) {
	signingContext := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(tlsCert))
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if err := signingContext.SetSignatureMethod(signatureAlgorithm); err != nil {
		return nil, err
	}
	return signingContext, nil
}

func isValidSignatureAlgorithm(alg string) error {
	switch alg {
	case dsig.RSASHA1SignatureMethod,
		dsig.RSASHA256SignatureMethod,
		dsig.RSASHA512SignatureMethod:
		return nil
	default:
		return fmt.Errorf("invalid signing method %s", alg)
	}
}
