/*
Package flow implements a node-graph dataflow editor core and its
execution engine.

# Overview

flow models a visual-programming surface: typed nodes (prompt sources,
image sources, generators, video generators, analyzers) connected by
directional, handle-typed edges. Triggering a run on a node resolves its
upstream text/image inputs, invokes an external generation provider, and
propagates the result one hop downstream.

The package is organized around a few cooperating pieces:

  - Store: the authoritative in-memory node/edge set. All mutations go
    through it, and it is the only holder of graph state.
  - RuleSet: the port-compatibility table deciding which connections are
    legal and how cardinality is enforced (replace, FIFO eviction,
    per-index slots).
  - Resolver: per-source-kind extraction of effective text and image
    inputs from a consistent graph snapshot.
  - Engine: the per-node run-state machine (idle -> running ->
    succeeded/failed) that calls generation collaborators and writes
    results back as explicit patches.

# Basic Usage

Build a graph, connect nodes, run a generator:

	store := flow.NewStore()
	prompt, _ := store.AddNode(flow.Node{Kind: flow.KindPromptSource})
	gen, _ := store.AddNode(flow.Node{Kind: flow.KindGenerate})

	store.UpdateNodePayload(prompt.ID, flow.Patch{Prompt: flow.String("a quiet harbor at dawn")})
	store.AddEdge(flow.Edge{Source: prompt.ID, Target: gen.ID, TargetHandle: flow.HandleText})

	engine := flow.NewEngine(store, flow.WithImageGenerator(client))
	if err := engine.Run(ctx, gen.ID); err != nil {
	    log.Fatal(err)
	}

	result, _ := store.Node(gen.ID)
	fmt.Println(result.Data.Image)

# Connections

Edges are gated at creation time. The rule table maps a target node kind
and input handle to the set of source kinds it accepts, a capacity, and
an eviction policy. Single-slot handles replace their previous edge
atomically; multi-slot handles evict the oldest edge once full. An edge
that would violate the table is rejected and never stored.

# Runs

Engine.Run executes exactly one node against the snapshot taken at
invocation time. Runs on distinct nodes may be in flight concurrently;
a second run on the same node while one is active returns
ErrAlreadyRunning. Batch kinds issue their sub-calls concurrently and
write each produced image back as soon as it resolves, so observers see
partial progress. A batch succeeds when at least one sub-call produced a
result and fails only when all of them failed.

# Errors

Run failures are node-local: the engine records the failure on the node
(status plus message) and returns a typed error, but sibling nodes and
downstream payloads are never touched. Use errors.As to inspect:

	var runErr *flow.RunError
	if errors.As(err, &runErr) {
	    log.Printf("node %s failed during %s: %v", runErr.NodeID, runErr.Op, runErr.Err)
	}

# Thread Safety

  - Store IS safe for concurrent use (all operations lock internally)
  - RuleSet IS safe for concurrent use (immutable after construction)
  - Engine IS safe for concurrent use; per-node re-entry is guarded
  - Snapshot values returned by Export are deep copies owned by the caller

# Subpackages

  - project: project snapshot stores (memory, SQLite, Postgres), the
    export/import document format, and the debounced persistence sync
  - provider: generation collaborator interfaces and clients
  - storage: upload collaborator for video pre-step uploads
  - viewport: one-directional canvas -> surface pan/zoom mirror
  - watch: typed change-feed hub used by Store and the project stores
  - observability: logging, metrics, and tracing helpers
*/
package flow
