// Package internal contains the implementation packages of the storefront
// builder.
//
// # Package Organization
//
//   - section: section markers, parsing and structural patches
//   - history: bounded undo and redo stacks of component sources
//   - tools: named deterministic edits over component source
//   - templates: the catalog of insertable section templates
//   - preview: debounced rendering and the instrumented preview frame
//   - liveedit: inline text and style edits coming back from the frame
//   - stream: the AI generation event stream and typewriter reveal
//   - backup: per-vendor backups and their retention pruner
//   - accessibility: audits of rendered preview documents
//   - editor: a session tying the above into one editable component
//   - websocket: the hub that pushes session events to browsers
//   - server: HTTP and WebSocket surface over editor sessions
//   - mcptools: the editing tools exposed over the Model Context Protocol
//   - watcher: file system notifications for local rendering
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// Every edit, whether it comes from a tool, an inline edit, a section patch
// or a generation, produces a new source that the editor session commits.
// A commit pushes the previous source onto history, schedules a backup and
// a debounced render, then broadcasts the change through the hub.
package internal
