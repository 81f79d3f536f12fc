// Package checkpoint persists graph execution state in AlloyDB so runs can
// resume across processes.
//
// A Saver stores one checkpoint per (thread, namespace, checkpoint id) in
// the table created by engine.InitCheckpointTable, plus staged channel
// writes in its "_writes" sibling table:
//
//	saver, err := checkpoint.NewSaver(ctx, eng)
//	config, err := saver.Put(ctx, config, cp, metadata)
//	tuple, err := saver.GetTuple(ctx, checkpoint.Config{ThreadID: "t1"})
//
// Payloads go through a Serializer; the default stores JSON. GetTuple with
// an empty CheckpointID returns the thread's latest checkpoint, and a nil
// tuple when the thread has none.
package checkpoint
