// Package client implements the client access layer of a remote document
// store: push subscriptions bridged into pull-shaped values, and
// optimistic transactions with bounded retry on write conflicts.
//
// The push direction is served by Cell and Stream. A Cell holds the
// latest materialized value of a watched Target, and its open blocks
// until that first value exists:
//
//	var cell, err = client.OpenCell(ctx, store, docstore.Ref("games/one"), client.ReactiveOpts{})
//	// cell.Value() is the current document, kept fresh by the store.
//
// A Stream instead emits every materialized value, in delivery order:
//
//	var stream, _ = client.OpenStream(store, docstore.NewQuery("games"), client.ReactiveOpts{})
//	for value := range stream.C() {
//	    // ...
//	}
//
// The pull-compute-push direction is served by RunTransaction and the
// Update family, which read current state, apply a pure transform, and
// write the result back within a single retried transaction.
package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	watchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_watch_events_total",
		Help: "Total number of push events delivered to subscriptions, by status.",
	}, []string{"status"})
	txnAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_txn_attempts_total",
		Help: "Total number of transaction attempts, by outcome.",
	}, []string{"status"})
	updatedDocsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docstore_updated_docs_total",
		Help: "Total number of documents written by Update, UpdateField and MapUpdate.",
	})
)

const (
	statusOk       = "ok"
	statusError    = "error"
	statusConflict = "conflict"
	statusFail     = "fail"
)
