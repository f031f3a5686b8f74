package discovery

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseText reads one URL per line, skipping blank lines.
func parseText(data []byte) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type sitemap struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// parseSitemap reads the <loc> of every <url> in a sitemap urlset.
func parseSitemap(data []byte) ([]string, error) {
	var sm sitemap
	if err := xml.Unmarshal(data, &sm); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}

// jsonManifest covers both OpenAPI documents (paths is an object keyed by
// path) and endpoint lists (paths is an array of {"path": ...}).
type jsonManifest struct {
	OpenAPI json.RawMessage `json:"openapi"`
	Paths   json.RawMessage `json:"paths"`
}

type endpointPath struct {
	Path string `json:"path"`
}

func parseJSON(data []byte) ([]string, error) {
	var m jsonManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	switch {
	case len(m.OpenAPI) > 0:
		if len(m.Paths) == 0 {
			return nil, nil
		}
		return objectKeys(m.Paths)
	case len(m.Paths) > 0:
		var paths []endpointPath
		if err := json.Unmarshal(m.Paths, &paths); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			if p.Path != "" {
				out = append(out, p.Path)
			}
		}
		return out, nil
	default:
		return nil, ErrUnsupportedManifest
	}
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("paths: expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("paths: unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// parseYAML reads an OpenAPI document, keeping the order of its paths.
func parseYAML(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, ErrUnsupportedManifest
	}

	root := doc.Content[0]
	if mappingValue(root, "openapi") == nil && mappingValue(root, "swagger") == nil {
		return nil, ErrUnsupportedManifest
	}
	paths := mappingValue(root, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return nil, nil
	}

	out := make([]string, 0, len(paths.Content)/2)
	for i := 0; i+1 < len(paths.Content); i += 2 {
		out = append(out, paths.Content[i].Value)
	}
	return out, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
