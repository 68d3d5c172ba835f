// Package casefile provides type-safe Go definitions and the filesystem store
// for Warren issue case files.
//
// # Overview
//
// A case file is the complete audit trail of one issue: an isolated directory
// holding one immutable artifact per pipeline stage. All Warren components
// (pipeline engine, archive manager, CLI) interact with issues exclusively
// through this package.
//
// # Core Concepts
//
// Issues are the unit of work. An issue exists once its "definition" artifact
// has been written, and is complete once its "resolution" artifact exists.
//
// Artifacts are immutable stage outputs. Every document the pipeline produces
// is an artifact with full provenance: which stage produced it and when.
// Writing an artifact kind that already exists fails with
// DuplicateArtifactError unless the caller explicitly supersedes, in which
// case the prior version is retained under a timestamped name.
//
// Statuses track the issue through its lifecycle:
//
//	OPEN → VALIDATING → {REJECTED | IN_PROGRESS} → RESOLVED → ARCHIVED
//
// Transitions are validated by Status.CanTransition; terminal statuses are
// never reopened by this package.
//
// # Filesystem Layout
//
// One directory per issue under the store root. Inside each directory:
//
//	<kind>.md              artifact content (opaque text)
//	.meta/<kind>.json      artifact provenance (id, producer, timestamp)
//	.status                current lifecycle status
//
// Superseded artifacts are renamed to <kind>.<YYYYMMDD-HHMMSS>.md so the
// audit trail is never silently lost.
//
// # Usage Example
//
//	store, err := casefile.NewStore(".warren/issues")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	art, err := store.Put("leaky-socket", casefile.KindDefinition,
//		"connections are not closed on timeout", "reporter")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	open, err := casefile.NewRegistry(store).ListOpen()
//
// # Design Principles
//
//   - Type safety: all enumerations have validation methods
//   - Immutability: artifacts are append-only, supersede is explicit
//   - Durability: every write is fsynced before Put returns
//   - Isolation: each issue lives in its own directory; writes to the same
//     issue are serialized, writes to different issues are independent
package casefile
