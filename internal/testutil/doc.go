// Package testutil provides test helpers and assertion utilities shared
// across this repository's test suites.
//
// This is an internal package and is not part of the public API.
//
// # Assertion Helpers
//
// The package provides lightweight assertion functions that fail the test
// immediately on mismatch:
//
//   - [AssertNoError] — fails if err is non-nil
//   - [AssertError] — fails if err is nil
//   - [AssertEqual] — performs deep equality comparison
//   - [AssertContains] — checks string containment
//
// Example:
//
//	reply, err := model.Generate(ctx, msgs)
//	testutil.AssertNoError(t, err)
//	testutil.AssertContains(t, reply.Text(), "world")
//
// # Stream Collector
//
// [CollectStream] drains an iter.Seq2[T, error] iterator into a slice,
// stopping on the first error. This is useful for testing the streaming
// ASR/LLM/TTS/LipSync interfaces used throughout this codebase:
//
//	chunks, err := testutil.CollectStream(model.Stream(ctx, msgs))
//	testutil.AssertNoError(t, err)
//	testutil.AssertEqual(t, 3, len(chunks))
package testutil
