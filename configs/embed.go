// Package configs embeds the configuration templates written by
// `qabrain config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/qabrain/config.yaml)
//  3. Project config (.qabrain.yaml)
//  4. Environment variables (QABRAIN_*, optionally from .env)
package configs

import _ "embed"

// ProjectConfigTemplate is the commented template for .qabrain.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
