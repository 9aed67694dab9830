package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/R3E-Network/foodapp/internal/dashboard"
	apperrors "github.com/R3E-Network/foodapp/internal/errors"
	"github.com/R3E-Network/foodapp/internal/httputil"
	"github.com/R3E-Network/foodapp/internal/model"
	"github.com/R3E-Network/foodapp/internal/session"
)

// Page alerts raised by the web layer itself.
const (
	AlertBusy               = "Another operation is already in progress. Please wait."
	AlertRateLimited        = "Too many attempts. Please wait a moment and try again."
	AlertSessionUnavailable = "Your session could not be saved. Please try again."
)

const multipartMemory = 8 << 20

type landingForm struct {
	Signup bool
	Name   string
	Email  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, id, token := s.session(w, r)
	req, err := s.bootstrap(ctx, id, token)
	if err != nil {
		s.renderLoading(w, r, req)
		return
	}
	if req.ctrl.View() == session.ViewDashboard {
		s.renderDashboard(w, r, req, http.StatusOK, nil, "")
		return
	}
	s.renderLanding(w, r, http.StatusOK, landingForm{Signup: r.URL.Query().Get("mode") == "signup"}, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form := landingForm{Email: email}

	s.authenticate(w, r, form, func(req *request) error {
		return req.ctrl.Login(req.ctx, email, password)
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form := landingForm{Signup: true, Name: name, Email: email}

	s.authenticate(w, r, form, func(req *request) error {
		return req.ctrl.Signup(req.ctx, name, email, password)
	})
}

// authenticate runs a login or signup for the session and redirects home on
// success. Failures re-render the landing page with the controller's alert.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, form landingForm, run func(*request) error) {
	ctx, id, token := s.session(w, r)
	release, ok := s.guard.tryAcquire(id)
	if !ok {
		s.renderBusy(w, r, ctx, id, token)
		return
	}
	defer release()

	req, err := s.bootstrap(ctx, id, token)
	if err != nil {
		s.renderLoading(w, r, req)
		return
	}
	if req.ctrl.State() == session.StateAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := run(req); err != nil {
		alert := req.ctrl.TakeAlert()
		if alert == "" {
			alert = AlertBusy
		}
		s.renderLanding(w, r, statusFor(err), form, alert)
		return
	}

	if err := s.persist(w, req); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to store session token")
		s.renderLanding(w, r, http.StatusServiceUnavailable, form, AlertSessionUnavailable)
		return
	}
	s.logger.WithContext(ctx).WithField("user_id", req.ctrl.User().ID.String()).Info("user signed in")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, id, token := s.session(w, r)
	release, ok := s.guard.tryAcquire(id)
	if !ok {
		s.renderBusy(w, r, ctx, id, token)
		return
	}
	defer release()

	// The local session ends even if the user lookup does not finish.
	if req, err := s.bootstrap(ctx, id, token); err == nil && req.ctrl.State() == session.StateAuthenticated {
		if err := req.ctrl.Logout(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("logout rejected")
		}
	}
	s.forget(ctx, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreateRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx, id, token := s.session(w, r)
	release, ok := s.guard.tryAcquire(id)
	if !ok {
		s.renderBusy(w, r, ctx, id, token)
		return
	}
	defer release()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	parseErr := parseForm(r)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req, err := s.bootstrap(ctx, id, token)
	if err != nil {
		s.renderLoading(w, r, req)
		return
	}
	if req.ctrl.State() != session.StateAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	board := dashboard.New(req.backend, s.logger)
	if parseErr != nil {
		s.logger.WithContext(ctx).WithError(parseErr).Warn("invalid restaurant form")
		status, alert := http.StatusBadRequest, "Error: invalid form submission"
		var tooLarge *http.MaxBytesError
		if errors.As(parseErr, &tooLarge) {
			status, alert = http.StatusRequestEntityTooLarge, fmt.Sprintf("Error: upload exceeds %d bytes", tooLarge.Limit)
		}
		board.Refresh(ctx)
		s.renderDashboard(w, r, req, status, board, alert)
		return
	}

	in := model.RestaurantInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Address:     r.PostFormValue("address"),
		Cuisine:     r.PostFormValue("cuisine"),
	}
	upload, closeUpload, err := formUpload(r, "heroImage")
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to read hero image")
		board.Refresh(ctx)
		s.renderDashboard(w, r, req, http.StatusBadRequest, board, "Error: could not read the uploaded image")
		return
	}
	defer closeUpload()

	if err := board.Create(ctx, in, req.ctrl.User().ID, upload); err != nil {
		alert := board.TakeAlert()
		board.Refresh(ctx)
		s.renderDashboard(w, r, req, statusFor(err), board, alert)
		return
	}
	s.renderDashboard(w, r, req, http.StatusOK, board, "")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) denyRateLimited(w http.ResponseWriter, r *http.Request) {
	form := landingForm{Signup: r.URL.Path == "/signup", Email: strings.TrimSpace(r.PostFormValue("email"))}
	s.renderLanding(w, r, http.StatusTooManyRequests, form, AlertRateLimited)
}

// renderBusy shows the session's current page with the busy alert. The
// lookup it performs does not mutate the session.
func (s *Server) renderBusy(w http.ResponseWriter, r *http.Request, ctx context.Context, id, token string) {
	req, err := s.bootstrap(ctx, id, token)
	if err != nil {
		s.renderLoading(w, r, req)
		return
	}
	if req.ctrl.View() == session.ViewDashboard {
		s.renderDashboard(w, r, req, http.StatusConflict, nil, AlertBusy)
		return
	}
	s.renderLanding(w, r, http.StatusConflict, landingForm{}, AlertBusy)
}

func (s *Server) renderLanding(w http.ResponseWriter, r *http.Request, status int, form landingForm, alert string) {
	s.render(w, r, status, pageLanding, pageData{
		Title:  "FoodApp",
		Alert:  alert,
		Signup: form.Signup,
		Name:   form.Name,
		Email:  form.Email,
	})
}

// renderDashboard renders board, loading a fresh one when board is nil.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, req *request, status int, board *dashboard.Board, alert string) {
	if board == nil {
		board = dashboard.New(req.backend, s.logger)
		board.Refresh(req.ctx)
	}
	data := boardData(board)
	data.Title = "FoodApp Dashboard"
	data.User = req.ctrl.User()
	data.Alert = alert
	s.render(w, r, status, pageDashboard, data)
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request, req *request) {
	if req != nil {
		s.logger.WithContext(req.ctx).WithField("state", req.ctrl.State().String()).Warn("session bootstrap did not finish; serving loading page")
	}
	w.Header().Set("Retry-After", "2")
	s.render(w, r, http.StatusServiceUnavailable, pageLoading, pageData{Title: "FoodApp", Refresh: true})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, p page, data pageData) {
	data.AdminURL = s.adminURL
	data.Status = s.status()
	if err := s.pages.render(w, status, p, data); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to render page")
		serr := apperrors.Internal("failed to render page", err)
		httputil.WriteErrorResponse(w, r, serr.HTTPStatus, string(serr.Code), serr.Message, nil)
	}
}

// statusFor maps an operation error to the page status code.
func statusFor(err error) int {
	if se := apperrors.GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// parseForm accepts both multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formUpload returns the named file part, or nil when none was sent. The
// returned func closes the part.
func formUpload(r *http.Request, field string) (*model.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	return &model.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, func() { _ = file.Close() }, nil
}
