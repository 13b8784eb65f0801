// Package configs embeds the commented configuration template written by
// `docdex config init`.
//
// The same template serves the project file (.docdex.yaml in the indexed
// root) and the user file (~/.config/docdex/config.yaml). Every value in
// it equals the built-in default, so writing it changes nothing until it
// is edited.
package configs

import _ "embed"

// ConfigTemplate is the commented default configuration.
//
//go:embed config.example.yaml
var ConfigTemplate string
