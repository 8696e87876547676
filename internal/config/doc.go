// SPDX-License-Identifier: MPL-2.0

// Package config handles hotswap configuration using Viper with CUE as the file format.
//
// Configuration is read from hotswap.cue in the project directory, or from the
// file given with --config, validated against the embedded CUE schema
// (config_schema.cue) and merged over the defaults. Every key can be
// overridden with a HOTSWAP_ prefixed environment variable.
package config
