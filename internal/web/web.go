package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/ics"
	"github.com/Joseda-hg/lazycal/internal/layout"
	"github.com/Joseda-hg/lazycal/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.tmpl"))

type Server struct {
	store    *db.Store
	zone     *time.Location
	maxLanes int
}

func NewServer(store *db.Store, zone *time.Location, maxLanes int) *Server {
	if maxLanes <= 0 {
		maxLanes = layout.DefaultMaxLanes
	}
	return &Server{store: store, zone: zone, maxLanes: maxLanes}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/api/events", s.apiEventsHandler)
	mux.HandleFunc("/api/events/", s.apiEventHandler)
	mux.HandleFunc("/api/day", s.apiDayHandler)
	mux.HandleFunc("/export.ics", s.exportHandler)
	return mux
}

type dayCell struct {
	Day      string
	InMonth  bool
	Today    bool
	Lanes    []laneCell
	Hidden   int
	Holidays []string
}

type laneCell struct {
	Name  string
	Color string
	Cont  bool
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	anchor := time.Now().In(s.zone)
	if value := strings.TrimSpace(r.URL.Query().Get("month")); value != "" {
		parsed, err := time.ParseInLocation("2006-01", value, s.zone)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid month"))
			return
		}
		anchor = parsed
	}

	events, err := s.store.ListEvents(context.Background())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resolved, _ := layout.ResolveAll(events, s.zone)

	opts := layout.MonthGrid(anchor, s.zone, s.maxLanes)
	plan := layout.PlanGrid(resolved, opts)

	holidays, err := s.store.ListHolidays(context.Background(),
		opts.Start.Format("2006-01-02"), opts.End.AddDate(0, 0, -1).Format("2006-01-02"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	holidaysByDay := make(map[string][]string)
	for _, h := range holidays {
		holidaysByDay[h.Date] = append(holidaysByDay[h.Date], h.Name)
	}

	nameByID := make(map[string]model.Event, len(events))
	for _, ev := range events {
		nameByID[ev.ID] = ev
	}

	cellsByDay := make(map[string][]laneCell)
	for _, seg := range plan.Segments {
		ev := nameByID[seg.EventID]
		for offset := 0; offset < seg.Days; offset++ {
			key := seg.StartDay.AddDate(0, 0, offset).Format("2006-01-02")
			cellsByDay[key] = append(cellsByDay[key], laneCell{
				Name:  ev.Name,
				Color: ev.Color,
				Cont:  offset > 0,
			})
		}
	}

	today := time.Now().In(s.zone).Format("2006-01-02")
	weeks := make([][]dayCell, 0, 6)
	for day := opts.Start; day.Before(opts.End); day = day.AddDate(0, 0, 7) {
		week := make([]dayCell, 0, 7)
		for i := 0; i < 7; i++ {
			d := day.AddDate(0, 0, i)
			key := d.Format("2006-01-02")
			week = append(week, dayCell{
				Day:      fmt.Sprintf("%d", d.Day()),
				InMonth:  d.Month() == anchor.Month(),
				Today:    key == today,
				Lanes:    cellsByDay[key],
				Hidden:   plan.HiddenByDay[key],
				Holidays: holidaysByDay[key],
			})
		}
		weeks = append(weeks, week)
	}

	data := struct {
		Title string
		Prev  string
		Next  string
		Weeks [][]dayCell
	}{
		Title: anchor.Format("January 2006"),
		Prev:  time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, s.zone).AddDate(0, -1, 0).Format("2006-01"),
		Next:  time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, s.zone).AddDate(0, 1, 0).Format("2006-01"),
		Weeks: weeks,
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func (s *Server) apiEventsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		events, err := s.store.ListEvents(context.Background())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, events)
	case http.MethodPost:
		var input db.EventInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := s.store.CreateEvent(context.Background(), input)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) apiEventHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/events/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("missing id"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		event, err := s.store.GetEvent(context.Background(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		history, err := s.store.ListHistory(context.Background(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		payload := struct {
			Event   model.Event          `json:"event"`
			History []model.HistoryEntry `json:"history"`
		}{Event: event, History: history}
		writeJSON(w, payload)
	case http.MethodPut:
		var input db.EventInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := s.store.UpdateEvent(context.Background(), id, input)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, updated)
	case http.MethodDelete:
		if err := s.store.DeleteEvent(context.Background(), id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) apiDayHandler(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("date"))
	day, err := time.ParseInLocation("2006-01-02", value, s.zone)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date"))
		return
	}

	events, err := s.store.EventsForDay(context.Background(), day, s.zone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, events)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(context.Background())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	payload, err := ics.Export(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="lazycal.ics"`)
	_, _ = w.Write([]byte(payload))
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
