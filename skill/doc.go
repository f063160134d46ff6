// Package skill persists named, reusable code snippets so successful
// executions can be recalled and replayed later.
//
// A Skill pairs source code with the language it runs under and usage
// statistics updated as it is replayed. The Store interface has two
// implementations: a SQLite-backed store for durable use and an
// in-memory store for tests and ephemeral sessions.
package skill
