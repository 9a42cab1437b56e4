/*
Package config provides type-safe configuration extraction from
map[string]any and the resolved Settings consumed by the server.

# Overview

Config wraps a map[string]any and provides typed accessors that handle
missing keys and type mismatches by returning defaults. Keys may be
dotted paths descending through nested sections, matching the natural
shape of a YAML config file.

# Basic Usage

	cfg, err := config.FromFile("easelflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	addr := cfg.String("server.addr", ":8787")
	debounce := cfg.Duration("sync.debounce", 120*time.Millisecond)

# Settings

Load resolves a config file into the flat Settings struct the CLI and
server consume, with defaults applied:

	settings, err := config.Load("easelflow.yaml")

An example file:

	server:
	  addr: ":8787"
	data:
	  driver: sqlite
	  path: easelflow.db
	providers:
	  image:
	    base_url: https://images.example.com
	    api_key: ${IMAGE_API_KEY}
	sync:
	  debounce: 120ms

# Type Coercion

Duration accepts strings ("150ms", "2s") and bare numbers interpreted
as milliseconds. Numeric accessors convert between int and float64 when
no precision is lost.

# Thread Safety

Config is safe for concurrent reads. The underlying map must not be
modified after creation.
*/
package config
