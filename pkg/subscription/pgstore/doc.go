// Package pgstore implements subscription.Store on PostgreSQL with pgx/v5.
//
// The schema ships as goose migrations embedded in the binary; apply them
// with Migrate before serving traffic. Usage counting is delegated to the
// count_business_resources SQL function so the platform can point it at its
// own resource tables in a later migration without touching Go code.
package pgstore
