// Package core contains the ITRP client contracts: configuration, the typed
// value union, request building, the response view, and the resilient send
// path. Transport, storage, and job adapters depend on this package; core
// must not depend on any concrete adapter.
package core
