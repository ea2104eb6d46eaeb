package model

// Package model defines domain data structures shared by the asset pipeline:
// decode requests, cached assets, gallery pages and batches, export tasks, and
// the status enums that drive their explicit state transitions.
