// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose
// coupling between components in the system. The API layer can announce
// evaluation lifecycle transitions without knowing which handlers will process
// them, enabling analytics and audit sinks to be added without touching the
// request path.
//
// The primary components are:
// - EvaluationEvent: Represents a lifecycle transition of an evaluation request
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
