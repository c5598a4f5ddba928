// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

// Package codec defines the serializer contract used by a pipechan channel.
//
// A Codec converts an arbitrary value into a self-describing payload and
// back. The payload carries the name of the value's dynamic type, and the
// decoder uses that name, resolved through an explicit Registry, to rebuild
// a value of the original type. The receiver never supplies the type; any
// type it expects is checked after decoding.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"
)

// A Codec converts values to and from byte payloads. Implementations must
// preserve the dynamic type of each value through a round trip, and must
// round-trip nil faithfully.
type Codec interface {
	// Encode returns a payload describing v and its dynamic type.
	Encode(v any) ([]byte, error)

	// Decode returns the value described by data, whose dynamic type is the
	// type recorded by Encode.
	Decode(data []byte) (any, error)
}

// JSON returns a Codec that encodes each value as a UTF-8 JSON envelope
// naming its type, for example:
//
//	{"type":"string","value":"Hello"}
//
// A nil value is encoded with an empty type name and a null value. The
// elements of []any and map[string]any values are encoded as envelopes in
// turn. If r == nil, a fresh NewRegistry is used.
func JSON(r *Registry) Codec {
	if r == nil {
		r = NewRegistry()
	}
	return jsonCodec{reg: r}
}

type jsonCodec struct{ reg *Registry }

type jsonEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

var (
	anySliceType = reflect.TypeFor[[]any]()
	anyMapType   = reflect.TypeFor[map[string]any]()
)

// Encode implements part of the Codec interface.
func (c jsonCodec) Encode(v any) ([]byte, error) {
	env, err := c.envelope(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// envelope returns the envelope for v. The elements of []any and
// map[string]any values are themselves envelopes, so that their types
// survive the round trip.
func (c jsonCodec) envelope(v any) (jsonEnvelope, error) {
	if v == nil {
		return jsonEnvelope{Value: json.RawMessage("null")}, nil
	}
	name, err := c.reg.Name(reflect.TypeOf(v))
	if err != nil {
		return jsonEnvelope{}, err
	}
	var inner any = v
	switch t := v.(type) {
	case []any:
		if t != nil {
			elts := make([]jsonEnvelope, len(t))
			for i, elt := range t {
				if elts[i], err = c.envelope(elt); err != nil {
					return jsonEnvelope{}, fmt.Errorf("element %d: %w", i, err)
				}
			}
			inner = elts
		}
	case map[string]any:
		if t != nil {
			elts := make(map[string]jsonEnvelope, len(t))
			for key, elt := range t {
				env, err := c.envelope(elt)
				if err != nil {
					return jsonEnvelope{}, fmt.Errorf("key %q: %w", key, err)
				}
				elts[key] = env
			}
			inner = elts
		}
	}
	bits, err := json.Marshal(inner)
	if err != nil {
		return jsonEnvelope{}, fmt.Errorf("encoding %q: %w", name, err)
	}
	return jsonEnvelope{Type: name, Value: bits}, nil
}

// Decode implements part of the Codec interface.
func (c jsonCodec) Decode(data []byte) (any, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return c.value(env)
}

func (c jsonCodec) value(env jsonEnvelope) (any, error) {
	if env.Type == "" {
		return nil, nil
	}
	t, err := c.reg.Type(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Value) == 0 || string(env.Value) == "null" {
		return reflect.Zero(t).Interface(), nil
	}

	switch t {
	case anySliceType:
		var elts []jsonEnvelope
		if err := json.Unmarshal(env.Value, &elts); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
		}
		out := make([]any, len(elts))
		for i, elt := range elts {
			if out[i], err = c.value(elt); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return out, nil

	case anyMapType:
		var elts map[string]jsonEnvelope
		if err := json.Unmarshal(env.Value, &elts); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
		}
		out := make(map[string]any, len(elts))
		for key, elt := range elts {
			v, err := c.value(elt)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	}

	p := reflect.New(t)
	if err := json.Unmarshal(env.Value, p.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
	}
	return p.Elem().Interface(), nil
}

// Gob returns a Codec that encodes each value with encoding/gob inside an
// envelope naming its type. It obeys the same type-fidelity rules as JSON,
// but the payload is binary. If r == nil, a fresh NewRegistry is used.
func Gob(r *Registry) Codec {
	if r == nil {
		r = NewRegistry()
	}
	return gobCodec{reg: r}
}

type gobCodec struct{ reg *Registry }

type gobEnvelope struct {
	Type string
	Nil  bool // the value is a nil of the named type
	Data []byte
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Encode implements part of the Codec interface.
func (c gobCodec) Encode(v any) ([]byte, error) {
	env, err := c.envelope(v)
	if err != nil {
		return nil, err
	}
	return gobBytes(env)
}

func gobBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// envelope returns the envelope for v. As with JSON, the elements of []any
// and map[string]any values are envelopes, so gob never needs to know the
// concrete types behind an interface.
func (c gobCodec) envelope(v any) (gobEnvelope, error) {
	if v == nil {
		return gobEnvelope{}, nil
	}
	rv := reflect.ValueOf(v)
	name, err := c.reg.Name(rv.Type())
	if err != nil {
		return gobEnvelope{}, err
	}
	env := gobEnvelope{Type: name}
	if isNil(rv) {
		env.Nil = true
		return env, nil
	}

	var inner any = v
	switch t := v.(type) {
	case []any:
		elts := make([]gobEnvelope, len(t))
		for i, elt := range t {
			if elts[i], err = c.envelope(elt); err != nil {
				return gobEnvelope{}, fmt.Errorf("element %d: %w", i, err)
			}
		}
		inner = elts
	case map[string]any:
		elts := make(map[string]gobEnvelope, len(t))
		for key, elt := range t {
			e, err := c.envelope(elt)
			if err != nil {
				return gobEnvelope{}, fmt.Errorf("key %q: %w", key, err)
			}
			elts[key] = e
		}
		inner = elts
	default:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).EncodeValue(rv); err != nil {
			return gobEnvelope{}, fmt.Errorf("encoding %q: %w", name, err)
		}
		env.Data = buf.Bytes()
		return env, nil
	}
	if env.Data, err = gobBytes(inner); err != nil {
		return gobEnvelope{}, fmt.Errorf("encoding %q: %w", name, err)
	}
	return env, nil
}

// Decode implements part of the Codec interface.
func (c gobCodec) Decode(data []byte) (any, error) {
	var env gobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return c.value(env)
}

func (c gobCodec) value(env gobEnvelope) (any, error) {
	if env.Type == "" {
		return nil, nil
	}
	t, err := c.reg.Type(env.Type)
	if err != nil {
		return nil, err
	}
	if env.Nil {
		return reflect.Zero(t).Interface(), nil
	}
	dec := gob.NewDecoder(bytes.NewReader(env.Data))

	switch t {
	case anySliceType:
		var elts []gobEnvelope
		if err := dec.Decode(&elts); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
		}
		out := make([]any, len(elts))
		for i, elt := range elts {
			if out[i], err = c.value(elt); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return out, nil

	case anyMapType:
		var elts map[string]gobEnvelope
		if err := dec.Decode(&elts); err != nil {
			return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
		}
		out := make(map[string]any, len(elts))
		for key, elt := range elts {
			v, err := c.value(elt)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	}

	p := reflect.New(t)
	if err := dec.DecodeValue(p); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", env.Type, err)
	}
	return p.Elem().Interface(), nil
}
