package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok("healthy"))
	})
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSegmentRoutes 活动片段、汇总与导出
func (r *Router) RegisterSegmentRoutes(h *SegmentsHandler) {
	r.Handle("/api/v1/segments", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.List(w, req)
	})
	r.Handle("/api/v1/segments/current", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Current(w, req)
	})
	r.Handle("/api/v1/segments/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Export(w, req)
	})
	r.Handle("/api/v1/activity/availability", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Availability(w, req)
	})
	r.Handle("/api/v1/activity/summary", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Summary(w, req)
	})
}

// RegisterContactRoutes 紧急联系人
func (r *Router) RegisterContactRoutes(h *ContactsHandler) {
	r.Handle("/api/v1/contacts", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			methodNotAllowed(w)
		}
	})
	r.Handle("/api/v1/contacts/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		id := strings.TrimPrefix(req.URL.Path, "/api/v1/contacts/")
		if id == "" || strings.Contains(id, "/") {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		h.Delete(w, req, id)
	})
}

// RegisterAlertRoutes 紧急报警
func (r *Router) RegisterAlertRoutes(h *AlertHandler) {
	r.Handle("/api/v1/alert/test", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Test(w, req)
	})
	r.Handle("/api/v1/alert/cancel", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Cancel(w, req)
	})
	r.Handle("/api/v1/alert/status", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Status(w, req)
	})
	r.Handle("/api/v1/alert/events", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Events(w, req)
	})
}

// RegisterDeviceRoutes 设备连接
func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.Handle("/api/v1/device/status", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.Status(w, req)
	})
	r.Handle("/api/v1/device/connect", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Connect(w, req)
	})
	r.Handle("/api/v1/device/disconnect", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Disconnect(w, req)
	})
}

// RegisterSessionRoutes 当前用户
func (r *Router) RegisterSessionRoutes(h *SessionHandler) {
	r.Handle("/api/v1/session", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Get(w, req)
		case http.MethodPost:
			h.Login(w, req)
		case http.MethodDelete:
			h.Logout(w, req)
		default:
			methodNotAllowed(w)
		}
	})
}
