// Package embeddings generates movie content embeddings through an
// OpenAI-compatible embeddings API, moves them through the embeddings.csv
// interchange format, loads them into movies.content_embedding, and derives
// per-user taste embeddings in SQL.
package embeddings
