package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandrolain/gorhyme/pkg/types"
)

// readQuery returns the query to compile: rh text, or the bytes of a JSON
// query document.
func readQuery(conf Config) (interface{}, error) {
	if conf.QueryFile == "" {
		return conf.Query, nil
	}
	b, err := os.ReadFile(conf.QueryFile)
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	if strings.EqualFold(filepath.Ext(conf.QueryFile), ".json") {
		return b, nil
	}
	return string(b), nil
}

// readData reads the data context from path, or from stdin for "-".
// YAML files are recognized by extension; stdin must be JSON.
func readData(path string, stdin io.Reader) (interface{}, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(b)
	}
	v, err := types.DecodeJSON(b)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return v, nil
}

// decodeYAML decodes a YAML document keeping the order of mapping keys.
func decodeYAML(b []byte) (interface{}, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return fromYAML(&doc)
}

func fromYAML(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		obj := types.EmptyObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]interface{}, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return types.Normalize(v), nil
}
