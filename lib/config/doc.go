// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for passgym.
//
// Configuration is loaded from a single file specified by either the
// PASSGYM_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery. Values missing from
// the file keep the [Default] value.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${PASSGYM_ROOT}, and ${VAR:-default} patterns are expanded.
//
// [Config.Validate] checks struct tags with go-playground/validator and
// then the cross-field rules, joining every failure into one error.
//
// This package depends on no other passgym packages.
package config
