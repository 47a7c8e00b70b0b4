package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// DecodeJSON decodes a single JSON document. Objects are decoded as *Object
// so that key order survives; numbers are decoded as float64.
func DecodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, Errorf(ErrInvalidInput, "unexpected data after JSON value")
	}
	return v, nil
}

// NewDecoder returns a function reading consecutive JSON documents from r,
// as found in newline delimited JSON streams. It returns io.EOF after the
// last document.
func NewDecoder(r io.Reader) func() (interface{}, error) {
	dec := json.NewDecoder(r)
	return func() (interface{}, error) {
		if !dec.More() {
			return nil, io.EOF
		}
		return decodeValue(dec)
	}
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Errorf(ErrInvalidInput, "unexpected end of JSON input")
		}
		return nil, Errorf(ErrInvalidInput, "invalid JSON").WithCause(err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := EmptyObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, Errorf(ErrInvalidInput, "invalid JSON").WithCause(err)
				}
				key, ok := kt.(string)
				if !ok {
					return nil, Errorf(ErrInvalidInput, "invalid JSON object key")
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, Errorf(ErrInvalidInput, "invalid JSON").WithCause(err)
			}
			return obj, nil
		case '[':
			arr := []interface{}{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, Errorf(ErrInvalidInput, "invalid JSON").WithCause(err)
			}
			return arr, nil
		}
		return nil, Errorf(ErrInvalidInput, "unexpected delimiter %q", t.String())
	default:
		// strings, float64, bool and nil
		return tok, nil
	}
}
