// Package config loads the prmstored YAML configuration file, expanding
// ${VAR} environment references and validating required fields.
package config
