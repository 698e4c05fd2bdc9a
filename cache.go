// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"context"
	"strings"
	"sync"
)

// configCache holds running configuration text keyed by the normalized
// "show running-config [flags]" command
//
// Entries are populated on first fetch and never invalidated: a client that
// needs fresh configuration must be replaced by a new one.
type configCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newConfigCache() *configCache {
	return &configCache{entries: make(map[string]string)}
}

// runningConfigCommand builds the normalized cache key and device command
func runningConfigCommand(flags []string) string {
	fields := strings.Fields("show running-config " + strings.Join(flags, " "))
	return strings.Join(fields, " ")
}

// get fetches the configuration for flags through fetch on a cache miss.
// fetch receives the device command and must return the trimmed text.
func (c *configCache) get(ctx context.Context, flags []string, fetch func(context.Context, string) (string, error)) (string, error) {
	key := runningConfigCommand(flags)

	c.mu.Lock()
	cfg, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return cfg, nil
	}

	cfg, err := fetch(ctx, key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cfg
	c.mu.Unlock()
	return cfg, nil
}

// len returns the number of cached entries
func (c *configCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
