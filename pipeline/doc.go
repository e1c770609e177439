// Package pipeline orchestrates source -> map -> build -> validate -> sink
// runs: single-threaded cooperative streaming with batching helpers,
// progress reporting, dead-letter capture, structured result metrics, and a
// bounded-concurrency bulk upsert path for document stores.
package pipeline
