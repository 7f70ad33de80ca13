// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package persistence

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Supported store formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Codec turns documents into bytes and back.
type Codec interface {
	// Extension is the file extension without the leading dot.
	Extension() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec writes indented JSON.
type JSONCodec struct{}

func (JSONCodec) Extension() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// YAMLCodec writes YAML with two space indentation.
type YAMLCodec struct{}

func (YAMLCodec) Extension() string { return "yaml" }

func (YAMLCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// zstdCoders returns process wide coders. EncodeAll and DecodeAll are safe
// for concurrent use.
func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}

		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})

	return zstdEncoder, zstdDecoder, zstdErr
}

// ZstdCodec compresses the output of another codec.
type ZstdCodec struct {
	Inner Codec
}

func (c ZstdCodec) Extension() string { return c.Inner.Extension() + ".zst" }

func (c ZstdCodec) Marshal(v any) ([]byte, error) {
	raw, err := c.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	enc, _, err := zstdCoders()
	if err != nil {
		return nil, err
	}

	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c ZstdCodec) Unmarshal(data []byte, v any) error {
	_, dec, err := zstdCoders()
	if err != nil {
		return err
	}

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress document: %w", err)
	}

	return c.Inner.Unmarshal(raw, v)
}

// CodecFor returns the codec for a configured format.
func CodecFor(format string, compress bool) (Codec, error) {
	var c Codec

	switch strings.ToLower(format) {
	case FormatJSON, "":
		c = JSONCodec{}
	case FormatYAML, "yml":
		c = YAMLCodec{}
	default:
		return nil, fmt.Errorf("unsupported store format %q", format)
	}

	if compress {
		c = ZstdCodec{Inner: c}
	}

	return c, nil
}
