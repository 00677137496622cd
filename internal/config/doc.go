// Package config defines the relay settings and provides helpers to load,
// validate, save and watch them in YAML format.
//
// Secrets (the bot token, webhook URLs) never live in the file: the file
// names environment variables, and LoadEnv can populate the environment
// from a .env file first.
package config
