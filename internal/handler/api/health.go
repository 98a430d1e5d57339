// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
)

// Health handles GET /health. It verifies the job store is reachable so a
// green check means publications can be accepted.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.queries.CountDueJobs(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	WriteSuccess(w, http.StatusOK, "ok", nil)
}
