package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fintrack.org/internal/audit"
	"fintrack.org/internal/auth"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// handleConnections serves GET /connections, the paginated admin view of the
// login trail. Admin role on the token plus a live READ grant are both
// required.
func (a *API) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionRead) {
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	entries, total, err := a.gateway.Directory().Connections().List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list connections")
		return
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalRecords": total,
		"totalPages":   totalPages,
		"currentPage":  page,
		"data":         entries,
	})
}

// handleConnectionResource dispatches the /connections/ subtree:
//
//	GET    /connections/latest
//	GET    /connections/count
//	PUT    /connections/{id}/logout
//	DELETE /connections/{id}
func (a *API) handleConnectionResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/connections/")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "latest":
		a.handleLatestConnections(w, r)
	case rest == "count":
		a.handleConnectionCount(w, r)
	case strings.HasSuffix(rest, "/logout"):
		a.handleConnectionLogout(w, r, strings.TrimSuffix(rest, "/logout"))
	case rest != "" && !strings.Contains(rest, "/"):
		a.handleConnectionDelete(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleLatestConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionRead) {
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	entries, err := a.gateway.Directory().Connections().Latest(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (a *API) handleConnectionCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionRead) {
		return
	}

	count, err := a.gateway.Directory().Connections().Count(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to count connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (a *API) handleConnectionLogout(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionWrite) {
		return
	}

	if err := a.gateway.Directory().Connections().SetLogoutTime(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "connection not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to update connection")
		return
	}

	_ = audit.Record(r.Context(), audit.Event{Name: "connections.logout", ConnectionID: id})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Logout time updated successfully",
	})
}

func (a *API) handleConnectionDelete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionDelete) {
		return
	}

	if err := a.gateway.Directory().Connections().Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "connection not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "failed to delete connection")
		return
	}

	_ = audit.Record(r.Context(), audit.Event{Name: "connections.delete", ConnectionID: id})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Connection log deleted successfully",
	})
}

// handleUserConnections serves GET /users/{id}/connections.
func (a *API) handleUserConnections(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	rest = strings.Trim(rest, "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "connections" || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureRole(w, r, auth.AdminRoleName) {
		return
	}
	if !a.ensurePermission(w, r, auth.PermissionRead) {
		return
	}

	entries, err := a.gateway.Directory().Connections().ListByUser(r.Context(), parts[0])
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
