// Copyright 2025 Poiesic Systems
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


package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/poiesic/docroute/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Parsed is the interpreted content of a result artifact.
type Parsed struct {
	MatchedSchemaID         string
	MatchedSchemaConfidence float64
	Classification          string
	Fields                  []core.ExtractedField

	// Excluded names fields that were reported but left out: unsuccessful,
	// valueless or without confidence.
	Excluded []string
}

// Parser interprets result artifacts of one schema version.
// It is immutable and safe for concurrent use.
type Parser struct {
	version string
	schema  *jsonschema.Schema
	aliases map[string]string
}

// NewParser creates a parser for the given schema version. aliases maps
// service field labels to record field names; unaliased names are converted
// to snake_case.
func NewParser(version string, aliases map[string]string) (*Parser, error) {
	schema, err := loadSchema(version)
	if err != nil {
		return nil, err
	}
	copied := make(map[string]string, len(aliases))
	for label, name := range aliases {
		copied[label] = name
	}
	return &Parser{version: version, schema: schema, aliases: copied}, nil
}

// Version returns the schema version this parser accepts.
func (p *Parser) Version() string {
	return p.version
}

// Parse validates raw against the schema and flattens it into fields.
//
// Each explainability entry covers one page or segment. Nested groups flatten
// to dotted names and the first occurrence of a field wins. A field is
// excluded, not scored as zero, when it reports success=false, has no value
// in either the entry or the inference result, or has no confidence.
func (p *Parser) Parse(raw []byte) (*Parsed, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, malformed("invalid json", raw, err)
	}
	if dec.More() {
		return nil, malformed("invalid json", raw, fmt.Errorf("trailing data after result document"))
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, malformed("schema "+p.version, raw, err)
	}

	parsed := &Parsed{}
	parsed.MatchedSchemaID, parsed.MatchedSchemaConfidence = matchedSchema(doc)
	parsed.Classification = classification(doc)

	inference, _ := doc["inference_result"].(map[string]any)
	entries, _ := doc["explainability_info"].([]any)

	seen := make(map[string]bool)
	for index, entry := range entries {
		group, _ := entry.(map[string]any)
		f := &flattener{
			parser:    p,
			parsed:    parsed,
			seen:      seen,
			inference: inference,
			page:      index,
		}
		if err := f.walk(nil, nil, group); err != nil {
			return nil, malformed("invalid field", raw, err)
		}
	}

	// A field excluded on one page may still be reported by a later one
	excluded := parsed.Excluded[:0]
	for _, name := range parsed.Excluded {
		if !seen[name] {
			excluded = append(excluded, name)
		}
	}
	parsed.Excluded = excluded
	return parsed, nil
}

func malformed(reason string, raw []byte, err error) error {
	return &core.MalformedResultError{Reason: reason, Payload: raw, Err: err}
}

// flattener walks one explainability entry.
type flattener struct {
	parser    *Parser
	parsed    *Parsed
	seen      map[string]bool
	inference map[string]any
	page      int
}

// walk visits the members of group. labels holds the raw labels from the
// entry root, names their normalized forms. Every member must be a field, a
// nested group or an array of either; anything else is schema drift.
func (f *flattener) walk(labels, names []string, group map[string]any) error {
	keys := make([]string, 0, len(group))
	for k := range group {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, label := range keys {
		childLabels := append(append([]string(nil), labels...), label)
		childNames := append(append([]string(nil), names...), f.parser.normalize(label))

		switch node := group[label].(type) {
		case map[string]any:
			if err := f.visit(childLabels, childNames, node); err != nil {
				return err
			}
		case []any:
			for i, item := range node {
				idx := strconv.Itoa(i)
				itemLabels := append(append([]string(nil), childLabels...), idx)
				itemNames := append(append([]string(nil), childNames...), idx)
				member, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("field %q: %s item in array", strings.Join(itemNames, "."), kind(item))
				}
				if err := f.visit(itemLabels, itemNames, member); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("field %q: %s where a field or group was expected", strings.Join(childNames, "."), kind(node))
		}
	}
	return nil
}

// visit handles one object member as a field or a nested group.
func (f *flattener) visit(labels, names []string, node map[string]any) error {
	name := strings.Join(names, ".")
	if isLeaf(node) {
		return f.leaf(labels, name, node)
	}
	if !isGroup(node) {
		return fmt.Errorf("field %q: neither confidence, success nor value reported", name)
	}
	return f.walk(labels, names, node)
}

func (f *flattener) leaf(labels []string, name string, node map[string]any) error {
	if f.seen[name] {
		return nil
	}

	if success, ok := node["success"].(bool); ok && !success {
		f.exclude(name)
		return nil
	}

	value, ok := stringValue(node["value"])
	if !ok {
		value, ok = stringValue(lookup(f.inference, labels))
	}
	if !ok {
		f.exclude(name)
		return nil
	}

	rawConfidence, present := node["confidence"]
	if !present || rawConfidence == nil {
		f.exclude(name)
		return nil
	}
	confidence, err := number(rawConfidence)
	if err != nil {
		return fmt.Errorf("field %q: confidence: %w", name, err)
	}

	field := core.ExtractedField{Name: name, Value: value, Confidence: confidence}
	if err := core.ValidateField(field); err != nil {
		return err
	}

	page := f.page
	if geometry, ok := node["geometry"]; ok && geometry != nil {
		if encoded, err := json.Marshal(geometry); err == nil {
			field.Geometry = encoded
		}
		if p, ok := geometryPage(geometry); ok {
			page = p
		}
	}
	field.PageIndex = &page

	f.seen[name] = true
	f.parsed.Fields = append(f.parsed.Fields, field)
	return nil
}

func (f *flattener) exclude(name string) {
	for _, n := range f.parsed.Excluded {
		if n == name {
			return
		}
	}
	f.parsed.Excluded = append(f.parsed.Excluded, name)
}

// isLeaf reports whether node describes a single field rather than a group.
func isLeaf(node map[string]any) bool {
	if _, ok := node["confidence"]; ok {
		return true
	}
	if _, ok := node["success"]; ok {
		return true
	}
	if value, ok := node["value"]; ok {
		_, group := value.(map[string]any)
		return !group
	}
	return false
}

// isGroup reports whether node has at least one member that can hold fields.
func isGroup(node map[string]any) bool {
	for _, member := range node {
		switch member.(type) {
		case map[string]any, []any:
			return true
		}
	}
	return false
}

// kind names the JSON type of v for error messages.
func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}

// lookup follows labels through the inference result.
func lookup(inference map[string]any, labels []string) any {
	var node any = inference
	for _, label := range labels {
		switch n := node.(type) {
		case map[string]any:
			node = n[label]
		case []any:
			i, err := strconv.Atoi(label)
			if err != nil || i < 0 || i >= len(n) {
				return nil
			}
			node = n[i]
		default:
			return nil
		}
	}
	return node
}

// stringValue renders a JSON value as a field value. Null and absent values
// report false; strings are kept verbatim, numbers keep their literal form.
func stringValue(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case json.Number:
		return value.String(), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", false
		}
		return string(encoded), true
	}
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// geometryPage returns the page of the first geometry element.
func geometryPage(geometry any) (int, bool) {
	var first any
	switch g := geometry.(type) {
	case []any:
		if len(g) == 0 {
			return 0, false
		}
		first = g[0]
	case map[string]any:
		first = g
	default:
		return 0, false
	}
	m, ok := first.(map[string]any)
	if !ok {
		return 0, false
	}
	p, err := number(m["page"])
	if err != nil || p < 0 {
		return 0, false
	}
	return int(p), true
}

func matchedSchema(doc map[string]any) (string, float64) {
	var id string
	var confidence float64
	switch blueprint := doc["matched_blueprint"].(type) {
	case string:
		id = blueprint
	case map[string]any:
		if arn, ok := blueprint["arn"].(string); ok && arn != "" {
			id = arn
		} else if name, ok := blueprint["name"].(string); ok {
			id = name
		}
		if c, err := number(blueprint["confidence"]); err == nil {
			confidence = c
		}
	}
	if explicit, ok := doc["matched_schema_id"].(string); ok && explicit != "" {
		id = explicit
	}
	if c, err := number(doc["matched_schema_confidence"]); err == nil {
		confidence = c
	}
	return id, confidence
}

func classification(doc map[string]any) string {
	if c, ok := doc["classification"].(string); ok && c != "" {
		return c
	}
	switch class := doc["document_class"].(type) {
	case string:
		return class
	case map[string]any:
		if t, ok := class["type"].(string); ok {
			return t
		}
	}
	return ""
}

// normalize maps a service label to a record field name.
func (p *Parser) normalize(label string) string {
	if name, ok := p.aliases[label]; ok {
		return name
	}
	return SnakeCase(label)
}

// SnakeCase converts a label such as "Total amount due" or "DueDate" to
// lower snake_case. Runs of non-alphanumeric characters become one underscore.
func SnakeCase(label string) string {
	var b strings.Builder
	prevLower := false
	separate := false
	for _, r := range label {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			separate = true
			prevLower = false
			continue
		}
		if unicode.IsUpper(r) && prevLower {
			separate = true
		}
		if separate && b.Len() > 0 {
			b.WriteByte('_')
		}
		separate = false
		b.WriteRune(unicode.ToLower(r))
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}
