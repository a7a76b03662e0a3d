package samlcodec

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"
)

// EncodingDeflate is the redirect binding's URL encoding identifier.
const EncodingDeflate = "urn:oasis:names:tc:SAML:2.0:bindings:URL-Encoding:DEFLATE"

func deflateAndBase64(data []byte) ([]byte, error) {
	buff := &bytes.Buffer{}
	b64Encoder := base64.NewEncoder(base64.StdEncoding, buff)
	// BestCompression, matching what other SAML implementations emit
	flateWriter, _ := flate.NewWriter(b64Encoder, 9)
	if _, err := flateWriter.Write(data); err != nil {
		return nil, err
	}
	if err := flateWriter.Close(); err != nil {
		return nil, err
	}
	if err := b64Encoder.Close(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func inflateAndDecode(encoding string, message string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, err
	}
	switch encoding {
	case "":
		return data, nil
	case EncodingDeflate:
		r := flate.NewReader(bytes.NewBuffer(data))
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown encoding")
	}
}
