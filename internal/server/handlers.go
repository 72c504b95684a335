package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"rmohub/internal/model"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    "rmohub",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"ws_clients": s.hub.ClientCount(),
	})
}

// handleFilters serves the filter panel's option lists.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorities, err := s.store.Authorities(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	routes, err := s.store.Routes(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	subgroups, err := s.store.Subgroups(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	years, err := s.store.Years(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authorities": authorities,
		"routes":      routes,
		"subgroups":   subgroups,
		"years":       years,
		"kpis":        model.AllKPIs(),
	})
}

func filterFromQuery(r *http.Request) model.Filter {
	q := r.URL.Query()
	f := model.Filter{
		Authorities: splitParam(q.Get("la")),
		Routes:      splitParam(q.Get("route")),
		Subgroups:   splitParam(q.Get("subgroup")),
	}
	if y, err := strconv.Atoi(q.Get("year")); err == nil {
		f.Year = y
	}
	return f
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBBox(v string) (*orb.Bound, error) {
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox coordinate %q: %w", p, err)
		}
		coords[i] = f
	}
	b := orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}
	return &b, nil
}

// handleSegments serves a GeoJSON slice of the network.
func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	bbox, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	segments := s.network.Select(filterFromQuery(r), bbox)

	fc := geojson.NewFeatureCollection()
	for _, seg := range segments {
		feat := geojson.NewFeature(seg.Geometry)
		feat.Properties = geojson.Properties{
			"segment_id": seg.ID,
			"la_code":    seg.Authority,
			"route_code": seg.Route,
			"subgroup":   seg.Subgroup,
			"length_m":   seg.LengthM,
		}
		fc.Append(feat)
	}
	respondJSON(w, http.StatusOK, fc)
}

func (s *Server) handleNearestSegment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		respondError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}

	seg, ok := s.network.Nearest(lat, lon)
	if !ok {
		respondError(w, http.StatusNotFound, "no segment near the given point")
		return
	}
	respondJSON(w, http.StatusOK, seg)
}

func decodeFilter(r *http.Request) (model.Filter, error) {
	var f model.Filter
	if r.Body == nil || r.ContentLength == 0 {
		return f, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		return f, fmt.Errorf("invalid filter payload: %w", err)
	}
	return f, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sums, err := s.stats.Summary(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"filter": f, "summary": sums})
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kpi := r.URL.Query().Get("kpi")
	dist, err := s.stats.Distribution(r.Context(), f, kpi)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, dist)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kpi := r.URL.Query().Get("kpi")
	trend, err := s.stats.Trend(r.Context(), f, kpi)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, trend)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	yearA, errA := strconv.Atoi(q.Get("year_a"))
	yearB, errB := strconv.Atoi(q.Get("year_b"))
	if errA != nil || errB != nil {
		respondError(w, http.StatusBadRequest, "year_a and year_b query parameters are required")
		return
	}

	cmp, err := s.stats.CompareYears(r.Context(), f, q.Get("kpi"), yearA, yearB)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleRenderer(w http.ResponseWriter, r *http.Request) {
	kpi := mux.Vars(r)["kpi"]
	q := r.URL.Query()
	year, _ := strconv.Atoi(q.Get("year"))

	renderer, err := s.renderers.ClassBreaks(kpi, year, q.Get("theme"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, renderer)
}

func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	kpi := mux.Vars(r)["kpi"]
	q := r.URL.Query()
	year, _ := strconv.Atoi(q.Get("year"))
	classes, _ := strconv.Atoi(q.Get("classes"))

	choropleth, err := s.laRenderers.Choropleth(r.Context(), kpi, year, q.Get("theme"), classes)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, choropleth)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	rep, err := s.reports.Build(r.Context(), year)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportSection(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	rep, err := s.reports.Build(r.Context(), year)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	section, err := rep.Section(mux.Vars(r)["section"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, section)
}
