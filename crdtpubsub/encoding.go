package crdtpubsub

import (
	"encoding/base64"
	"encoding/json"

	"treecrdt/common"
	"treecrdt/crdtpatch"
)

// Encoder encodes a patch into a byte array using the specified format.
type Encoder interface {
	// Encode encodes a patch into a byte array.
	Encode(patch *crdtpatch.Patch) ([]byte, error)
}

// Decoder decodes a byte array into a patch using the specified format.
type Decoder interface {
	// Decode decodes a byte array into a patch.
	Decode(data []byte) (*crdtpatch.Patch, error)
}

// EncoderDecoder combines the Encoder and Decoder interfaces.
type EncoderDecoder interface {
	Encoder
	Decoder
}

// JSONEncoderDecoder implements the EncoderDecoder interface using JSON.
type JSONEncoderDecoder struct{}

// Encode encodes a patch into a JSON byte array.
func (ed *JSONEncoderDecoder) Encode(patch *crdtpatch.Patch) ([]byte, error) {
	return json.Marshal(patch)
}

// Decode decodes a JSON byte array into a patch.
func (ed *JSONEncoderDecoder) Decode(data []byte) (*crdtpatch.Patch, error) {
	var patch crdtpatch.Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// Base64EncoderDecoder wraps the JSON encoding in base64 for transports that
// cannot carry raw JSON payloads.
type Base64EncoderDecoder struct{}

// Encode encodes a patch into a base64 byte array.
func (ed *Base64EncoderDecoder) Encode(patch *crdtpatch.Patch) ([]byte, error) {
	jsonData, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(jsonData)))
	base64.StdEncoding.Encode(encoded, jsonData)
	return encoded, nil
}

// Decode decodes a base64 byte array into a patch.
func (ed *Base64EncoderDecoder) Decode(data []byte) (*crdtpatch.Patch, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return nil, err
	}
	var patch crdtpatch.Patch
	if err := json.Unmarshal(decoded[:n], &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

// GetEncoderDecoder returns the EncoderDecoder for the specified format.
func GetEncoderDecoder(format EncodingFormat) (EncoderDecoder, error) {
	switch format {
	case EncodingFormatJSON:
		return &JSONEncoderDecoder{}, nil
	case EncodingFormatBase64:
		return &Base64EncoderDecoder{}, nil
	default:
		return nil, common.ErrInvalidEncoding{Format: string(format)}
	}
}
