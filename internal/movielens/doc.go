// Package movielens parses the MovieLens CSV dataset (movies.csv, links.csv,
// ratings.csv, tags.csv) into domain types, streaming rows in batches so the
// full dataset never has to fit in memory.
package movielens
