// Modelgate is a LAN-facing reverse-proxy gateway that fronts a local LLM
// runtime's OpenAI-compatible HTTP surface.
//
// It acts as a single-backend HTTP proxy, providing:
//   - An Access Filter gating every request by source address and a
//     shared secret
//   - Byte-level forwarding of OpenAI-compatible requests, with active
//     model and sampling-default injection
//   - A Control Client session to the backend's model-management channel
//   - A Log Tailer that follows the backend's own rolling log files and
//     republishes recognized lines as structured events
//   - An admin/debug HTTP surface for model lifecycle and introspection
//
// Usage:
//
//	# Start the gateway with default configuration
//	modelgate run
//
//	# Start with a custom configuration file
//	modelgate run --config /path/to/config.yaml
//
//	# Validate configuration without starting the server
//	modelgate run --dry-run
//
//	# Show version information
//	modelgate version
package main

func main() {
	Execute()
}
