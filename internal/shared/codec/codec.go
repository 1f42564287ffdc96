// Package codec serializa los documentos que viajan por el broker.
// Ambos formatos son autodescriptivos, así que un consumidor puede leer un campo
// concreto decodificando a mapas genéricos sin conocer los tipos de dominio.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	JSON    = "json"
	Msgpack = "msgpack"
)

type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	ContentType() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) ContentType() string                        { return "application/json" }

type msgpackCodec struct{}

// msgpack reutiliza las etiquetas json para que ambos formatos compartan rutas de campo.
func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (msgpackCodec) ContentType() string { return "application/msgpack" }

// New devuelve el codec por nombre.
func New(name string) (Codec, error) {
	switch name {
	case "", JSON:
		return jsonCodec{}, nil
	case Msgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown payload codec %q", name)
	}
}

// MustNew es New para valores fijos conocidos en compilación.
func MustNew(name string) Codec {
	c, err := New(name)
	if err != nil {
		panic(err)
	}
	return c
}
