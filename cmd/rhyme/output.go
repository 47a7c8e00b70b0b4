package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// filter is a compiled jq post-filter.
type filter struct {
	code *gojq.Code
}

func newFilter(query string) (*filter, error) {
	q, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("jq: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("jq: %w", err)
	}
	return &filter{code: code}, nil
}

// apply runs the filter. A single output is returned as is, several
// outputs as an array.
func (f *filter) apply(ctx context.Context, v interface{}) (interface{}, error) {
	iter := f.code.RunWithContext(ctx, types.ToPlain(v))
	var results []interface{}
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("jq: %w", err)
		}
		results = append(results, out)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// encoder writes results in the configured format.
type encoder struct {
	format string
	w      io.Writer
	json   *json.Encoder
	mp     *msgpack.Encoder
	docs   int
}

func newEncoder(format string, w io.Writer) *encoder {
	e := &encoder{format: format, w: w}
	switch format {
	case FormatJSON:
		e.json = json.NewEncoder(w)
	case FormatMsgpack:
		e.mp = msgpack.NewEncoder(w)
	}
	return e
}

// encode writes one result. Key order of result objects is kept.
func (e *encoder) encode(v interface{}) error {
	defer func() { e.docs++ }()
	switch e.format {
	case FormatYAML:
		var node yaml.Node
		if err := toYAML(&node, v); err != nil {
			return err
		}
		if e.docs > 0 {
			if _, err := io.WriteString(e.w, "---\n"); err != nil {
				return err
			}
		}
		b, err := yaml.Marshal(&node)
		if err != nil {
			return err
		}
		_, err = e.w.Write(b)
		return err
	case FormatMsgpack:
		return encodeMsgpack(e.mp, v)
	}
	return e.json.Encode(v)
}

func toYAML(n *yaml.Node, v interface{}) error {
	switch x := v.(type) {
	case *types.Object:
		n.Kind = yaml.MappingNode
		n.Tag = "!!map"
		var err error
		x.Range(func(k string, val interface{}) bool {
			key := &yaml.Node{}
			if err = key.Encode(k); err != nil {
				return false
			}
			child := &yaml.Node{}
			if err = toYAML(child, val); err != nil {
				return false
			}
			n.Content = append(n.Content, key, child)
			return true
		})
		return err
	case []interface{}:
		n.Kind = yaml.SequenceNode
		n.Tag = "!!seq"
		for _, e := range x {
			child := &yaml.Node{}
			if err := toYAML(child, e); err != nil {
				return err
			}
			n.Content = append(n.Content, child)
		}
		return nil
	}
	return n.Encode(v)
}

func encodeMsgpack(enc *msgpack.Encoder, v interface{}) error {
	switch x := v.(type) {
	case *types.Object:
		if err := enc.EncodeMapLen(x.Len()); err != nil {
			return err
		}
		var err error
		x.Range(func(k string, val interface{}) bool {
			if err = enc.EncodeString(k); err != nil {
				return false
			}
			err = encodeMsgpack(enc, val)
			return err == nil
		})
		return err
	case []interface{}:
		if err := enc.EncodeArrayLen(len(x)); err != nil {
			return err
		}
		for _, e := range x {
			if err := encodeMsgpack(enc, e); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.Encode(v)
}
