// Package mcp exposes corpus retrieval as an MCP stdio server.
//
// The server is a thin bridge: it owns no index state and talks to a
// running corpusd daemon over its HTTP API. This keeps one process in
// charge of the catalog and vector store while any number of MCP
// clients (editors, assistants) query it.
package mcp
