// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package logbackcfg provides configuration loading for logback
// deployments.
//
// Configuration is loaded from a single file specified by:
//   - LOGBACK_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// This package depends on no other logback packages.
package logbackcfg
