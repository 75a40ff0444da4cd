// Package server implements the MCP (Model Context Protocol) server for the
// block mosaic converter.
//
// This package provides a JSON-RPC 2.0 server that exposes mosaic conversion
// and palette inspection through the MCP protocol, so MCP-compatible clients
// can turn images on disk into block art and ask which block best renders a
// color.
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
// Conversion:
//   - mosaic_convert: Convert an image file into a block mosaic, written to
//     disk or returned as base64 PNG, with a bill of materials
//
// Palette:
//   - mosaic_match_color: Find the block closest to a hex color
//   - palette_info: Describe the loaded palette
//   - palette_reload: Rebuild the palette after textures changed on disk
//
// # Palette Caching
//
// The palette is loaded once through the shared palette.Cache and reused by
// every call. palette_reload replaces it; if the reload fails the previous
// palette stays in use.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// Lines that are not valid JSON are answered with a -32700 parse error.
//
// # Usage
//
// The server is typically started by an MCP client through the CLI:
//
//	srv := server.New(server.Options{Converter: conv, Palettes: cache, Source: src})
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
package server
