// Package dataset loads few-shot training pairs and batch query files.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/claimdecomp/internal/prompt"
)

// ErrUnsupportedFormat is returned for file extensions no loader handles.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Query is one message to run in a batch.
type Query struct {
	ID      string `json:"id" yaml:"id"`
	Message string `json:"message" yaml:"message"`
}

type pairFile struct {
	Examples []prompt.Pair `json:"examples" yaml:"examples"`
}

// LoadPairs reads training pairs from a .yaml, .yml, .json or .jsonl file.
// YAML and JSON files hold either a top-level list of {input, output}
// objects or the same list under an "examples" key.
func LoadPairs(path string) ([]prompt.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}

	switch ext(path) {
	case ".json":
		pairs, err := decodeJSONPairs(data)
		if err != nil {
			return nil, fmt.Errorf("parsing examples %s: %w", path, err)
		}
		return pairs, nil
	case ".yaml", ".yml":
		pairs, err := decodePairs(data)
		if err != nil {
			return nil, fmt.Errorf("parsing examples %s: %w", path, err)
		}
		return pairs, nil
	case ".jsonl":
		var pairs []prompt.Pair
		err := eachLine(data, func(n int, line []byte) error {
			var p prompt.Pair
			if err := json.Unmarshal(line, &p); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			pairs = append(pairs, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("parsing examples %s: %w", path, err)
		}
		return pairs, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// decodeJSONPairs accepts a top-level list or {"examples": [...]}.
// encoding/json handles \uXXXX surrogate pairs, which yaml.v3 rejects.
func decodeJSONPairs(data []byte) ([]prompt.Pair, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var pairs []prompt.Pair
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, err
		}
		return pairs, nil
	case '{':
		var f pairFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, err
		}
		return f.Examples, nil
	}
	return nil, errors.New("expected a list of examples or an object with an \"examples\" key")
}

// decodePairs parses a YAML document.
func decodePairs(data []byte) ([]prompt.Pair, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var pairs []prompt.Pair
		if err := doc.Decode(&pairs); err != nil {
			return nil, err
		}
		return pairs, nil
	case yaml.MappingNode:
		var f pairFile
		if err := doc.Decode(&f); err != nil {
			return nil, err
		}
		return f.Examples, nil
	}
	return nil, fmt.Errorf("expected a list of examples, got %s", kindName(doc.Kind))
}

// LoadQueries reads batch queries. A .txt file holds one message per
// non-blank line, numbered from 1. A .jsonl file holds {id, message} objects
// and a .yaml/.yml file a list of them; missing IDs are filled with the
// 1-based position.
func LoadQueries(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}

	var queries []Query
	switch ext(path) {
	case ".txt":
		err = eachLine(data, func(_ int, line []byte) error {
			queries = append(queries, Query{Message: string(line)})
			return nil
		})
	case ".jsonl":
		err = eachLine(data, func(n int, line []byte) error {
			var q Query
			if err := json.Unmarshal(line, &q); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			queries = append(queries, q)
			return nil
		})
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &queries)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing queries %s: %w", path, err)
	}

	for i := range queries {
		if queries[i].ID == "" {
			queries[i].ID = strconv.Itoa(i + 1)
		}
	}
	return queries, nil
}

// eachLine calls fn for every non-blank, trimmed line with its 1-based line number.
func eachLine(data []byte, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unexpected node"
}
