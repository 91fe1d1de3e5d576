// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"context"
	"sync"
)

// Handler composes once and hands the same result to every caller.
// Construct one per composition and pass it to whatever needs the
// composed templates.
type Handler struct {
	options Options

	once        sync.Once
	composition *Composition
	err         error
}

// NewHandler returns a Handler that composes with opts on first use.
func NewHandler(opts Options) *Handler {
	return &Handler{options: opts}
}

// Composition returns the composition, composing on the first call.
// ctx only affects the first call. Every call returns the same
// *Composition or the same error.
func (h *Handler) Composition(ctx context.Context) (*Composition, error) {
	h.once.Do(func() {
		h.composition, h.err = Compose(ctx, h.options)
	})
	return h.composition, h.err
}
