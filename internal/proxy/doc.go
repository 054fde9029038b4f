// Package proxy discovers and validates SOCKS5 relays.
//
// Candidates are scraped from free-form text feeds by Source, probed against an
// IP echo endpoint by Validator, and the survivors are frozen into a Set that is
// safe for concurrent reads by download workers.
package proxy
