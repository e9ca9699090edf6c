// Package config provides environment-first configuration for atlauth.
//
// Configuration loads in three layers, lowest precedence first:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. config.yaml in the user config directory (~/.config/atlauth)
//  3. Environment variables (JIRA_*, CONFLUENCE_*, ATLASSIAN_OAUTH_*, ...)
//
// Credentials are loaded here as raw fields only; deciding which credential
// variant they form is the job of internal/credentials, which runs exactly
// once per resolution so downstream code never re-inspects raw fields.
//
// The Manager type supports live reload: it watches config.yaml via fsnotify
// and notifies subscribers with the new configuration, enabling credential
// rotation and re-detection of instance topology without a restart.
package config
