package util

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])
var _ EncoderDecoder[any] = new(YamlEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// YamlEncDec reads and writes YAML through the JSON form of T, so types
// with custom JSON codecs keep one set of field names.
type YamlEncDec[T any] struct{}

func NewYamlEncoderDecoder[T any]() *YamlEncDec[T] {
	return &YamlEncDec[T]{}
}

func (encdec *YamlEncDec[T]) Encode(value T) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func (encdec *YamlEncDec[T]) Decode(data []byte) (*T, error) {
	raw, err := YamlToJson(data)
	if err != nil {
		return nil, err
	}
	var res T
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// YamlToJson re-encodes a YAML document as JSON.
func YamlToJson(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
