// Package lead defines the lead model, request shapes, and the interfaces the
// search, storage, and API layers depend on.
package lead
