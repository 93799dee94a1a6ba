// Package tools defines the browser tool vocabulary the agent can invoke.
//
// Each tool is a typed request descriptor: the gateway never executes it,
// it only validates the arguments and ships them to the browser, which owns
// the DOM work. Parse turns a tool name plus raw JSON arguments into an
// Action with defaults applied, and Definitions exposes the JSON schemas the
// model sees.
//
// Wire keys match the browser client: durations and timeouts are plain
// millisecond integers under "duration" and "timeout", and take_screenshot
// always carries "filename" (null when not given).
package tools
