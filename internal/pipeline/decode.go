// Package pipeline turns raw parse responses of the external pipeline parser
// into safe internal structures.
//
// Decoding is lenient below the top level: an asset, column, upstream or
// lineage entry that does not have the expected shape is skipped instead of
// failing the whole snapshot. Only a top-level value that is not an object at
// all is reported, since that means the caller handed over the wrong thing.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leapstack-labs/assetlineage/pkg/core"
	"gopkg.in/yaml.v3"
)

// ErrNotObject is returned when the top-level document is not an object.
var ErrNotObject = errors.New("pipeline document is not an object")

// Decode decodes a parse response, detecting JSON or YAML from the content.
// An empty or null document yields a nil pipeline and no error.
func Decode(data []byte) (*core.RawPipeline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '{' || trimmed[0] == '[' || json.Valid(trimmed) {
		return DecodeJSON(trimmed)
	}
	return DecodeYAML(trimmed)
}

// DecodeJSON decodes a JSON parse response.
func DecodeJSON(data []byte) (*core.RawPipeline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		if json.Valid(trimmed) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("failed to decode pipeline JSON: %w", err)
	}

	p := &core.RawPipeline{}
	decodeField(top, "name", &p.Name)
	decodeField(top, "schedule", &p.Schedule)

	var rawAssets []json.RawMessage
	decodeField(top, "assets", &rawAssets)
	p.Assets = make([]core.RawAsset, 0, len(rawAssets))
	for _, raw := range rawAssets {
		if asset, ok := decodeAsset(raw); ok {
			p.Assets = append(p.Assets, asset)
		}
	}

	p.ColumnLineage = decodeColumnLineage(top["column_lineage"])

	return p, nil
}

// DecodeYAML decodes a YAML parse response using the same field names as JSON.
func DecodeYAML(data []byte) (*core.RawPipeline, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline YAML: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, ErrNotObject
	}

	// Round-trip through JSON so both formats share one lenient decoder.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert pipeline YAML: %w", err)
	}
	return DecodeJSON(asJSON)
}

func decodeAsset(raw json.RawMessage) (core.RawAsset, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return core.RawAsset{}, false
	}

	var a core.RawAsset
	decodeField(fields, "id", &a.ID)
	decodeField(fields, "name", &a.Name)
	decodeField(fields, "type", &a.Type)
	decodeField(fields, "path", &a.Path)

	var def core.DefinitionFile
	if decodeField(fields, "definition_file", &def) {
		a.DefinitionFile = &def
	}

	var rawUpstreams []json.RawMessage
	decodeField(fields, "upstreams", &rawUpstreams)
	for _, ru := range rawUpstreams {
		var ref core.UpstreamRef
		if err := json.Unmarshal(ru, &ref); err == nil && ref.Value != "" {
			a.Upstreams = append(a.Upstreams, ref)
		}
	}

	var rawColumns []json.RawMessage
	decodeField(fields, "columns", &rawColumns)
	for _, rc := range rawColumns {
		var col core.Column
		if err := json.Unmarshal(rc, &col); err == nil {
			a.Columns = append(a.Columns, col)
		}
	}

	return a, true
}

func decodeColumnLineage(raw json.RawMessage) core.ColumnLineageMap {
	if len(raw) == 0 {
		return nil
	}

	var byAsset map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byAsset); err != nil || len(byAsset) == 0 {
		return nil
	}

	out := make(core.ColumnLineageMap, len(byAsset))
	for assetName, rawEntries := range byAsset {
		var items []json.RawMessage
		if err := json.Unmarshal(rawEntries, &items); err != nil {
			continue
		}
		for _, item := range items {
			var entry core.ColumnLineageEntry
			if err := json.Unmarshal(item, &entry); err != nil {
				continue
			}
			out[assetName] = append(out[assetName], entry)
		}
	}
	return out
}

// decodeField decodes fields[key] into dst, reporting whether it succeeded.
// Missing keys and type mismatches leave dst untouched.
func decodeField(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
