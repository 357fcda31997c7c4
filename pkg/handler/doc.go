// Package handler renders billing API responses.
//
// Every body uses the same envelope: successful calls carry "data" and
// optional "meta", failures carry "error" with a stable code and the error
// class. Human-readable detail stays in the logs.
package handler
