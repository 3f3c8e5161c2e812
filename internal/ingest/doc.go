// Package ingest receives device reports and drives the evaluation pipeline.
//
// Devices report over HTTP (POST /status) or optionally MQTT. Every report
// updates the store, recomputes intended output states around the update and
// pushes the resulting changes to the dispatch process. Login reports tear
// down stale device connections first; event reports run input-pin triggers;
// all other reports get a drift check against the reported output values.
package ingest
