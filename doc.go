// Package featuremill provides automated, point-in-time-correct feature
// synthesis over relational data for machine-learning training.
//
// Given a set of tables, their foreign-key relationships, and a list of
// (entity, cutoff time) pairs, featuremill enumerates derived features
// (aggregations across related tables, transforms of columns) and computes a
// feature matrix in which no value depends on any fact timestamped at or
// after that entity's cutoff time.
//
// # Basic Usage
//
// Declare tables and relationships:
//
//	es := featuremill.NewEntitySet("retail")
//	_, err := es.DeclareTable(featuremill.TableSpec{
//	    Name:       "members",
//	    PrimaryKey: "msno",
//	}, memberRows)
//	_, err = es.DeclareTable(featuremill.TableSpec{
//	    Name:       "transactions",
//	    PrimaryKey: "transaction_id",
//	    TimeIndex:  "transaction_date",
//	}, txRows)
//	err = es.AddRelationship("members", "msno", "transactions", "msno")
//
// Synthesize feature definitions and compute the matrix:
//
//	defs, err := featuremill.Synthesize(es, "members", featuremill.SynthesisOptions{MaxDepth: 2})
//	calc, err := featuremill.NewCalculator(es, "members", defs, featuremill.CalcOptions{})
//	matrix, err := calc.Run(ctx, entries)
//
// # Features
//
// Synthesis & Calculation:
//   - Breadth-first feature enumeration over the relationship graph
//   - Deterministic feature naming and ordering across runs
//   - Strict cutoff filtering (a row timestamped at the cutoff is excluded)
//   - Per-entity isolation with an in-process worker pool
//   - Row-scoped failure tolerance (missing entities yield null rows)
//
// Primitive Library:
//   - Aggregations: count, sum, mean, min, max, std, mode, num_unique,
//     percent_true, trend
//   - Transforms: year, month, day, hour, weekday, is_weekend, absolute
//   - Open registry for caller-defined primitives
//
// Export:
//   - Feature definition export/import for serving-time reproduction
//   - Snappy-compressed snapshots with optional AES-256-GCM encryption
//   - SQLite and S3 exporters for matrices
//
// # Configuration
//
// Use [RunConfig] and [LoadRunConfig] to drive a full run from a YAML file,
// or call [Synthesize] and [NewCalculator] directly with option structs.
package featuremill
