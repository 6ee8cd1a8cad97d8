// Package server implements the MCP (Model Context Protocol) server for field
// boundary extraction.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image inspection:
//   - image_load: Load a tile and get its metadata
//   - image_unload: Drop a tile from the cache, or empty it
//   - image_sample_color: Get the color at a pixel, including 8-bit HSV
//
// Field extraction:
//   - field_trace: Trace the field around a seed and return its outline, as
//     pixels and, with a map context, as GeoJSON
//   - field_mask: Stop after segmentation, smoothing or extraction and return
//     the mask as a PNG
//   - field_circle: Return the fallback circle around a point
//
// A seed is either a pixel (x, y) or a geographic point (lat, lng). A geographic
// seed needs a map context, which is also what turns the pixel outline into
// [lng, lat] coordinates.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, so tracing several fields on
// the same tile decodes it once. image_unload drops a tile that changed on disk.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: "Tool execution failed"
//   - data: {"message": ..., "kind": ...}; kind is present for pipeline failures
//     such as "seed_not_on_region" or "invalid_map_context"
//
// # Usage
//
//	srv := server.New(server.Options{Pipeline: p, Log: log})
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
