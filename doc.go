// Package termite provides a small in-process plugin platform. Plugins are
// described by text manifests, declare the capabilities they export and
// require, and are driven through a fixed lifecycle by a central registry.
//
// Key Features:
//   - Block-structured manifests with versioned capability requirements
//   - Capability and plugin dependencies resolved into a dependency graph
//   - Install order by topological sort, shutdown in reverse
//   - Per-plugin lifecycle state machine (statekit) with lifecycle events
//   - Hooks registered in Go or written as Lua scripts inside a bundle
//   - Directory discovery with restricted capabilities
//   - INI, YAML, JSON and TOML configuration with hot reload (argus)
//
// Lifecycle:
//
//	uninstalled -> installed -> active -> deactivated -> uninstalled -> disposed
//
// A plugin becomes active only after every plugin it depends on is
// installed. Failures stay local to the plugin that caused them and to the
// plugins depending on it.
//
// Manifest format (PLUGIN.MF):
//
//	PLUGIN-ID: org.example.greeter
//	VERSION: 1.2
//	PLUGIN-CLASSES: hook:greeter.Hook; lua:hooks/greeter.lua
//	EXPORTS: org.example.greeting [1.2]
//	REQUIRES: org.example.core [1.0, 2.0)
//	REQUIRES-PLUGINS: org.example.base [1.0]
//
// Basic Usage:
//
//	hooks := termite.NewHookRegistry()
//	hooks.RegisterHook("greeter.Hook", func() termite.Hook { return &Greeter{} })
//
//	cfg, err := termite.LoadConfigFromFile("conf/platform.ini")
//	if err != nil {
//		log.Fatal(err)
//	}
//	platform, err := termite.NewPlatform(cfg, termite.WithHookRegistry(hooks))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := platform.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer platform.Shutdown(ctx)
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package termite
