// Package serde encodes and decodes JSON documents.
package serde

import (
	"bytes"
	"sync"

	"github.com/ugorji/go/codec"
)

// resolver holds an encoder and decoder.
type resolver struct {
	check bool

	jsonEncoder *codec.Encoder
	jsonDecoder *codec.Decoder
	jsonHandle  codec.JsonHandle

	jsonData []byte

	jsonMu sync.Mutex
}

var gendecoder resolver

func init() {
	if !gendecoder.check {
		gendecoder.jsonHandle = codec.JsonHandle{}
		gendecoder.jsonHandle.Indent = 2
		gendecoder.jsonHandle.HTMLCharsAsIs = true
		gendecoder.jsonHandle.ErrorIfNoField = true
		gendecoder.jsonHandle.ErrorIfNoArrayExpand = true
		gendecoder.jsonHandle.TypeInfos = codec.NewTypeInfos([]string{"json"})

		gendecoder.jsonData = make([]byte, 0, 4096)
		gendecoder.jsonEncoder = codec.NewEncoderBytes(&gendecoder.jsonData, &gendecoder.jsonHandle)
		gendecoder.jsonDecoder = codec.NewDecoderBytes(nil, &gendecoder.jsonHandle)

		gendecoder.check = true
	}
}

// MarshalJson encodes v as indented JSON.
func MarshalJson[T any](v T) ([]byte, error) {
	gendecoder.jsonMu.Lock()
	defer gendecoder.jsonMu.Unlock()

	gendecoder.jsonData = gendecoder.jsonData[:0]
	gendecoder.jsonEncoder.ResetBytes(&gendecoder.jsonData)

	if err := gendecoder.jsonEncoder.Encode(v); err != nil {
		return nil, err
	}

	return bytes.Clone(gendecoder.jsonData), nil
}

// UnmarshalJson decodes data into marshalTo. Unknown fields are rejected.
func UnmarshalJson[T any](data []byte, marshalTo T) error {
	gendecoder.jsonMu.Lock()
	defer gendecoder.jsonMu.Unlock()

	gendecoder.jsonDecoder.ResetBytes(data)

	return gendecoder.jsonDecoder.Decode(marshalTo)
}
