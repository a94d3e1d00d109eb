// Package formats encodes and decodes records as structured text. A Codec
// implements one encoding, and a Registry resolves Codecs by format name or
// by probing each in a fixed order.
package formats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

var (
	// ErrParse is wrapped by errors of Codec.Decode.
	ErrParse = errors.New("parse error")
	// ErrSerialize is wrapped by errors of Codec.Encode.
	ErrSerialize = errors.New("serialize error")
	// ErrEmptyDocument is wrapped (with ErrParse) by errors of Codec.Decode of
	// a document having no content, such as one of only comments.
	ErrEmptyDocument = errors.New("empty document")
)

// Codec is a structured text encoding of records.
type Codec interface {
	// Name of the Codec, like "toml".
	Name() string
	// Decode |data| into |into|, which is a pointer. Input which is not
	// valid in the Codec's grammar, which doesn't structurally match
	// |into|, or which is empty, fails with an error wrapping ErrParse.
	Decode(data string, into interface{}) error
	// Encode |record|. A record shape not representable by the Codec fails
	// with an error wrapping ErrSerialize.
	Encode(record interface{}) (string, error)
}

// Codecs provided by this package.
var (
	TOML Codec = tomlCodec{}
	JSON Codec = jsonCodec{}
	YAML Codec = yamlCodec{}
)

func parseError(c Codec, err error) error {
	return fmt.Errorf("%w (%s): %w", ErrParse, c.Name(), err)
}

func serializeError(c Codec, err error) error {
	return fmt.Errorf("%w (%s): %w", ErrSerialize, c.Name(), err)
}

type tomlCodec struct{}

func (tomlCodec) Name() string { return "toml" }

func (c tomlCodec) Decode(data string, into interface{}) error {
	var doc map[string]interface{}
	if err := toml.Unmarshal([]byte(data), &doc); err == nil && len(doc) == 0 {
		return parseError(c, ErrEmptyDocument)
	}
	var dec = toml.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(into); err != nil {
		return parseError(c, err)
	}
	return nil
}

func (c tomlCodec) Encode(record interface{}) (string, error) {
	var b, err = toml.Marshal(record)
	if err != nil {
		return "", serializeError(c, err)
	}
	return string(b), nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (c jsonCodec) Decode(data string, into interface{}) error {
	var dec = json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(into); err == io.EOF {
		return parseError(c, ErrEmptyDocument)
	} else if err != nil {
		return parseError(c, err)
	}
	// The document must be a single JSON value.
	if _, err := dec.Token(); err != io.EOF {
		return parseError(c, errors.New("unexpected data after top-level value"))
	}
	return nil
}

func (c jsonCodec) Encode(record interface{}) (string, error) {
	var buf bytes.Buffer
	var enc = json.NewEncoder(&buf)
	enc.SetIndent("", "  ")

	if err := enc.Encode(record); err != nil {
		return "", serializeError(c, err)
	}
	return buf.String(), nil
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (c yamlCodec) Decode(data string, into interface{}) error {
	var doc interface{}
	if err := yaml.Unmarshal([]byte(data), &doc); err == nil && doc == nil {
		return parseError(c, ErrEmptyDocument)
	}
	if err := yaml.UnmarshalStrict([]byte(data), into); err != nil {
		return parseError(c, err)
	}
	return nil
}

func (c yamlCodec) Encode(record interface{}) (string, error) {
	var b, err = yaml.Marshal(record)
	if err != nil {
		return "", serializeError(c, err)
	}
	return string(b), nil
}
