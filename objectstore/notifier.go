// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import "context"

type notifierIDKey struct{}

// WithNotifierID attaches an instance identifier to ctx so that a
// [Store]'s Notify implementation tags outgoing notifications with it.
// Every [Store] implementation uses this same key, so a notifier ID
// attached by a caller that doesn't know which concrete Store it's
// talking to still reaches that Store's Notify correctly.
func WithNotifierID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, notifierIDKey{}, id)
}

// NotifierIDFromContext reads back the identifier attached by
// WithNotifierID, or 0 if none was attached.
func NotifierIDFromContext(ctx context.Context) uint64 {
	id, _ := ctx.Value(notifierIDKey{}).(uint64)
	return id
}
