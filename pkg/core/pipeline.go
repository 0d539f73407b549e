package core

// DefinitionFile points at the file an asset was declared in.
type DefinitionFile struct {
	Path string `json:"path"`
}

// RawAsset is an asset as emitted by the pipeline parser, before any
// derivation. Missing slices are treated as empty.
type RawAsset struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	DefinitionFile *DefinitionFile `json:"definition_file,omitempty"`
	Path           string          `json:"path,omitempty"`
	Columns        []Column        `json:"columns,omitempty"`
	Upstreams      []UpstreamRef   `json:"upstreams,omitempty"`
}

// FilePath returns the explicit path, falling back to the definition file.
func (a *RawAsset) FilePath() string {
	if a.Path != "" {
		return a.Path
	}
	if a.DefinitionFile != nil {
		return a.DefinitionFile.Path
	}
	return ""
}

// RawPipeline is one parse response of the pipeline parser.
type RawPipeline struct {
	Name          string           `json:"name"`
	Schedule      string           `json:"schedule"`
	Assets        []RawAsset       `json:"assets"`
	ColumnLineage ColumnLineageMap `json:"column_lineage,omitempty"`
}
