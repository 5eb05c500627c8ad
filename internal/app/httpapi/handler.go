// Package httpapi exposes the application services as a REST API.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	app "github.com/velora-dev/velora/internal/app"
	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/services/users"
	"github.com/velora-dev/velora/internal/app/storage"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/internal/middleware"
)

// AnonymousPaths lists the routes served without a bearer token.
var AnonymousPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/healthz",
	"/metrics",
}

const maxUploadBytes = 10 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns the router exposing the REST API. The auth middleware
// wraps every route; metrics may be nil.
func NewHandler(application *app.Application, authmw *middleware.AuthMiddleware, metrics *middleware.Metrics) http.Handler {
	h := &handler{app: application}

	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	if metrics != nil {
		r.Use(metrics.Middleware)
	}
	r.Use(authmw.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Get("/{id}", h.getUser)
			r.Put("/{id}", h.updateUser)
			r.Post("/{id}/like/{recipientId}", h.likeUser)

			r.Route("/{userId}/photos", func(r chi.Router) {
				r.Post("/", h.addPhoto)
				r.Get("/{id}", h.getPhoto)
				r.Post("/{id}/setMain", h.setMainPhoto)
				r.Delete("/{id}", h.deletePhoto)
			})

			r.Route("/{userId}/messages", func(r chi.Router) {
				r.Get("/", h.listMessages)
				r.Post("/", h.createMessage)
				r.Get("/thread/{recipientId}", h.messageThread)
				r.Get("/{id}", h.getMessage)
				r.Post("/{id}", h.deleteMessage)
				r.Post("/{id}/read", h.markMessageRead)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RequireRoles(user.RoleAdmin)).
				Get("/usersWithRoles", h.usersWithRoles)
			r.With(middleware.RequireRoles(user.RoleAdmin)).
				Post("/editRoles/{userName}", h.editRoles)
			r.With(middleware.RequireRoles(user.RoleAdmin, user.RoleModerator)).
				Get("/photosForModeration", h.photosForModeration)
			r.With(middleware.RequireRoles(user.RoleAdmin, user.RoleModerator)).
				Post("/approvePhoto/{photoId}", h.approvePhoto)
			r.With(middleware.RequireRoles(user.RoleAdmin, user.RoleModerator)).
				Post("/rejectPhoto/{photoId}", h.rejectPhoto)
		})
	})

	return r
}

// --- auth -------------------------------------------------------------------

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		Gender      string `json:"gender"`
		KnownAs     string `json:"knownAs"`
		DateOfBirth string `json:"dateOfBirth"`
		City        string `json:"city"`
		Country     string `json:"country"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body").WithCause(err))
		return
	}

	dob, err := parseDate(payload.DateOfBirth)
	if err != nil {
		writeError(w, apperrors.Validation("invalid dateOfBirth").WithCause(err))
		return
	}

	created, err := h.app.Auth.Register(r.Context(), user.User{
		Username:    payload.Username,
		Gender:      payload.Gender,
		KnownAs:     payload.KnownAs,
		DateOfBirth: dob,
		City:        payload.City,
		Country:     payload.Country,
	}, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserSummary(created, ""))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body").WithCause(err))
		return
	}

	u, token, err := h.app.Auth.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  toUserSummary(u, ""),
	})
}

// --- users ------------------------------------------------------------------

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthenticated("authentication required"))
		return
	}

	q := r.URL.Query()
	params := users.ListParams{
		RequesterID: claims.UserID,
		Gender:      q.Get("gender"),
		MinAge:      queryInt(q.Get("minAge")),
		MaxAge:      queryInt(q.Get("maxAge")),
		Likers:      q.Get("likers") == "true",
		Likees:      q.Get("likees") == "true",
		OrderBy:     q.Get("orderBy"),
		Page: storage.PageParams{
			Number: queryInt(q.Get("pageNumber")),
			Size:   queryInt(q.Get("pageSize")),
		},
	}

	page, err := h.app.Users.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	addPagination(w, page.CurrentPage, page.PageSize, page.TotalCount, page.TotalPages)
	out := make([]userSummary, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, toUserSummary(item.User, item.PhotoURL))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apperrors.Unauthenticated("authentication required"))
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	viewer := users.Viewer{
		UserID:      claims.UserID,
		CanModerate: hasAnyRole(claims.Roles, user.RoleAdmin, user.RoleModerator),
	}
	detail, err := h.app.Users.Get(r.Context(), id, viewer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDetail(detail))
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.ownedPathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload struct {
		Introduction string `json:"introduction"`
		LookingFor   string `json:"lookingFor"`
		Interests    string `json:"interests"`
		City         string `json:"city"`
		Country      string `json:"country"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body").WithCause(err))
		return
	}

	err = h.app.Users.Update(r.Context(), id, users.ProfileUpdate{
		Introduction: payload.Introduction,
		LookingFor:   payload.LookingFor,
		Interests:    payload.Interests,
		City:         payload.City,
		Country:      payload.Country,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) likeUser(w http.ResponseWriter, r *http.Request) {
	likerID, err := h.ownedPathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	likeeID, err := pathID(r, "recipientId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.Likes.Like(r.Context(), likerID, likeeID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- photos -----------------------------------------------------------------

func (h *handler) addPhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperrors.Validation("invalid multipart form").WithCause(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.Validation("file is required").WithCause(err))
		return
	}
	defer file.Close()

	p, err := h.app.Photos.Add(r.Context(), userID, file, header.Filename, r.FormValue("description"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d/photos/%d", userID, p.ID))
	writeJSON(w, http.StatusCreated, toPhotoResponse(p))
}

func (h *handler) getPhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	photoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	p, err := h.app.Photos.Get(r.Context(), userID, photoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPhotoResponse(p))
}

func (h *handler) setMainPhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	photoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.Photos.SetMain(r.Context(), userID, photoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	photoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.Photos.Delete(r.Context(), userID, photoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- messages ---------------------------------------------------------------

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	container := message.Container(q.Get("messageContainer"))
	page, err := h.app.Messages.List(r.Context(), userID, container, storage.PageParams{
		Number: queryInt(q.Get("pageNumber")),
		Size:   queryInt(q.Get("pageSize")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	addPagination(w, page.CurrentPage, page.PageSize, page.TotalCount, page.TotalPages)
	out := make([]messageResponse, 0, len(page.Items))
	for _, m := range page.Items {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload struct {
		RecipientID int64  `json:"recipientId"`
		Content     string `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body").WithCause(err))
		return
	}

	m, err := h.app.Messages.Create(r.Context(), userID, payload.RecipientID, payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d/messages/%d", userID, m.ID))
	writeJSON(w, http.StatusCreated, toMessageResponse(m))
}

func (h *handler) messageThread(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	recipientID, err := pathID(r, "recipientId")
	if err != nil {
		writeError(w, err)
		return
	}

	thread, err := h.app.Messages.Thread(r.Context(), userID, recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]messageResponse, 0, len(thread))
	for _, m := range thread {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := h.app.Messages.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(m))
}

func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.Messages.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markMessageRead(w http.ResponseWriter, r *http.Request) {
	userID, err := h.ownedPathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.app.Messages.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- admin ------------------------------------------------------------------

func (h *handler) usersWithRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Auth.UsersWithRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, u := range list {
		out = append(out, map[string]interface{}{
			"id":       u.ID,
			"username": u.Username,
			"roles":    u.Roles,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) editRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "userName")

	var payload struct {
		RoleNames []string `json:"roleNames"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, apperrors.Validation("invalid request body").WithCause(err))
		return
	}

	updated, err := h.app.Auth.EditRoles(r.Context(), username, payload.RoleNames)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.Roles)
}

func (h *handler) photosForModeration(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Photos.ForModeration(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) approvePhoto(w http.ResponseWriter, r *http.Request) {
	photoID, err := pathID(r, "photoId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.app.Photos.Approve(r.Context(), photoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) rejectPhoto(w http.ResponseWriter, r *http.Request) {
	photoID, err := pathID(r, "photoId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.app.Photos.Reject(r.Context(), photoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ----------------------------------------------------------------

// ownedPathID parses the named route parameter and verifies it names the
// authenticated user.
func (h *handler) ownedPathID(r *http.Request, name string) (int64, error) {
	id, err := pathID(r, name)
	if err != nil {
		return 0, err
	}
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return 0, apperrors.Unauthenticated("authentication required")
	}
	if claims.UserID != id {
		return 0, apperrors.Forbidden("cannot act for another user")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid " + name).WithCause(err)
	}
	return id, nil
}

func queryInt(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

func hasAnyRole(held []string, wanted ...string) bool {
	for _, w := range wanted {
		for _, h := range held {
			if h == w {
				return true
			}
		}
	}
	return false
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// addPagination mirrors the paging metadata into a response header the web
// client reads.
func addPagination(w http.ResponseWriter, currentPage, pageSize, totalItems, totalPages int) {
	header, _ := json.Marshal(map[string]int{
		"currentPage":  currentPage,
		"itemsPerPage": pageSize,
		"totalItems":   totalItems,
		"totalPages":   totalPages,
	})
	w.Header().Set("Pagination", string(header))
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	se := apperrors.AsServiceError(err)
	if se == nil {
		se = apperrors.OperationFailed("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	body := map[string]interface{}{
		"error": se.Message,
		"code":  se.Code,
	}
	if len(se.Details) > 0 {
		body["details"] = se.Details
	}
	_ = json.NewEncoder(w).Encode(body)
}
