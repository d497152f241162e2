// Package config loads vecindex configuration from YAML or TOML files.
//
// Example (YAML):
//
//	database:
//	  path: ~/.vecindex/vecindex.db
//	  dataset_id: docs
//	embedding:
//	  provider: openai
//	  model: text-embedding-3-small
//	  dimensions: 1536
//	indexes:
//	  - name: docs
//	    metric: cosine
//	    kind: hnsw
//	    options: ["hnsw_m=16"]
//	ingest:
//	  workers: 8
//	  call_timeout: 20s
package config
