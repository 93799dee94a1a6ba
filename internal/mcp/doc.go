// Package mcp exposes the browser tool vocabulary over the Model Context
// Protocol so external agents can drive a connected page.
//
// # Overview
//
// The server speaks MCP Streamable HTTP through the official go-sdk. It is
// mounted by the gateway at mcp.path (default /mcp).
//
// # Tools
//
// Every browser tool (navigate_to_page, fill_input, click_element, ...) is
// registered with its usual argument schema plus a required client_id
// naming the target page:
//
//	{"name": "navigate_to_page", "arguments": {"client_id": "tab-1", "path": "/contact"}}
//
// MCP calls have no agent run to wait for, so each one is delivered right
// away. The result text is the tool's acknowledgment when the page received
// it. A client that is not connected, or whose socket failed mid-write,
// produces an error result.
//
// Two read-only tools help callers find a target:
//
//   - list_clients returns the attached client ids with connect times
//   - get_session_summary returns the recent conversation for a client
package mcp
