// Package config loads dtrl's YAML documents.
//
// [Loader] validates a document against its JSON schema, decodes it into an
// API kind, applies defaults and runs any semantic validation the kind
// defines. Errors carry the offending source position.
package config
