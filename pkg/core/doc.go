// Package core defines the shared language of the assetlineage system.
//
// This package contains:
//   - Input shapes emitted by the pipeline parser (RawPipeline, RawAsset)
//   - Domain entities (Asset, UpstreamRef, Column, ColumnLineageEntry)
//   - Visualization payloads (GraphNode, GraphEdge)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
