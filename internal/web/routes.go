package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/codewithmutahir/timeclock/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.engine, s.attendance, s.faces, s.verifyManager)
	facesHandler := handlers.NewFacesHandler(s.faces)
	verifyHandler := handlers.NewVerifyHandler(s.verifyManager, s.faces)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Attendance clock operations
		r.Post("/attendance/{employeeID}/clock-in", attendanceHandler.ClockIn)
		r.Post("/attendance/{employeeID}/clock-out", attendanceHandler.ClockOut)
		r.Post("/attendance/{employeeID}/breaks/start", attendanceHandler.StartBreak)
		r.Post("/attendance/{employeeID}/breaks/end", attendanceHandler.EndBreak)
		r.Get("/attendance/{employeeID}/current", attendanceHandler.Current)
		r.Get("/attendance/{employeeID}", attendanceHandler.History)
		r.Put("/attendance/{employeeID}/{date}", attendanceHandler.Edit)

		// Face enrollment and identification
		r.Put("/faces/{employeeID}", facesHandler.Enroll)
		r.Get("/faces/{employeeID}", facesHandler.Status)
		r.Delete("/faces/{employeeID}", facesHandler.Delete)
		r.Post("/faces/identify", facesHandler.Identify)

		// Verification sessions
		r.Post("/verify/sessions", verifyHandler.Create)
		r.Get("/verify/sessions/{sessionID}", verifyHandler.Status)
		r.Post("/verify/sessions/{sessionID}/frames", verifyHandler.PushFrame)
		r.Post("/verify/sessions/{sessionID}/retry", verifyHandler.Retry)
		r.Delete("/verify/sessions/{sessionID}", verifyHandler.Close)
		r.Get("/verify/sessions/{sessionID}/events", verifyHandler.Events)
	})
}
