package httpapi

import "net/http"

// RegisterRoutes mounts one route per spec §6.3 OpKind, plus /health,
// the same shape as the teacher's router.go.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealthCheck)

	mux.HandleFunc("/api/login", h.HandleLogin)
	mux.HandleFunc("/api/logout", h.HandleLogout)
	mux.HandleFunc("/api/create_user", h.HandleCreateUser)
	mux.HandleFunc("/api/delete_user", h.HandleDeleteUser)
	mux.HandleFunc("/api/list_users", h.HandleListUsers)
	mux.HandleFunc("/api/file_create", h.HandleFileCreate)
	mux.HandleFunc("/api/file_read", h.HandleFileRead)
	mux.HandleFunc("/api/file_edit", h.HandleFileEdit)
	mux.HandleFunc("/api/file_delete", h.HandleFileDelete)
	mux.HandleFunc("/api/file_truncate", h.HandleFileTruncate)
	mux.HandleFunc("/api/file_exists", h.HandleFileExists)
	mux.HandleFunc("/api/file_rename", h.HandleFileRename)
	mux.HandleFunc("/api/dir_create", h.HandleDirCreate)
	mux.HandleFunc("/api/dir_list", h.HandleDirList)
	mux.HandleFunc("/api/dir_delete", h.HandleDirDelete)
	mux.HandleFunc("/api/dir_exists", h.HandleDirExists)
	mux.HandleFunc("/api/get_metadata", h.HandleGetMetadata)
	mux.HandleFunc("/api/set_permissions", h.HandleSetPermissions)
	mux.HandleFunc("/api/get_stats", h.HandleGetStats)
}
