// Package audit implements async event dispatching for identity operations.
//
// The engine decides which events to emit; this package only buffers them
// and delivers to a caller-supplied Sink. It must not filter events or
// import the root package.
package audit
