package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/engine"
	"github.com/findmyspot/findmyspot/internal/metrics"
	"github.com/findmyspot/findmyspot/internal/model"
)

// apiHandler serves the parking API over an Engine.
type apiHandler struct {
	eng *engine.Engine
}

// newRouter builds the HTTP API. Every request runs under timeout as its
// deadline.
func newRouter(eng *engine.Engine, corsOrigins []string, timeout time.Duration) http.Handler {
	h := &apiHandler{eng: eng}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(instrument)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/parking", func(r chi.Router) {
		r.Get("/autocomplete", h.autocomplete)
		r.Get("/geocode", h.geocode)
		r.Get("/find", h.find)
		r.Get("/predict", h.predict)
		r.Get("/realtime", h.realtime)
		r.Get("/historical", h.historical)
		r.Get("/zone/{zone}/rules", h.zoneRules)
		r.Get("/zones", h.zonesByStreet)
	})
	return r
}

// requestID propagates X-Request-ID, generating one when absent.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		zap.L().Debug("http request",
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
		)
	})
}

func (h *apiHandler) health(w http.ResponseWriter, _ *http.Request) {
	hs := h.eng.Health()
	status := http.StatusOK
	if hs.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, hs)
}

func (h *apiHandler) autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 5)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.eng.Autocomplete(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q.Get("q"), "suggestions": out})
}

func (h *apiHandler) geocode(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.Geocode(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) find(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := engine.LocationQuery{Address: q.Get("address")}

	var err error
	if q.Get("lat") != "" || q.Get("lon") != "" {
		if lq.Lat, err = floatParam(q.Get("lat")); err != nil {
			writeError(w, err)
			return
		}
		if lq.Lon, err = floatParam(q.Get("lon")); err != nil {
			writeError(w, err)
			return
		}
		lq.HasCoordinate = true
	}
	if v := q.Get("radius"); v != "" {
		if lq.RadiusM, err = floatParam(v); err != nil {
			writeError(w, err)
			return
		}
	}
	if lq.IncludePredictions, err = boolParam(q.Get("include_predictions"), true); err != nil {
		writeError(w, err)
		return
	}
	if lq.HoursAhead, err = intParam(q.Get("hours_ahead"), 1); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.eng.FindByLocation(r.Context(), lq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) predict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone, err := model.ParseZoneID(q.Get("zone_number"))
	if err != nil {
		writeError(w, err)
		return
	}
	zq := engine.ZoneQuery{
		Zone:    zone,
		DayType: model.ParseDayType(q.Get("day_type")),
		Weekday: model.ParseDayOfWeek(q.Get("day_type")),
	}
	if zq.Hour, err = intParam(q.Get("hour"), engine.HourNow); err != nil {
		writeError(w, err)
		return
	}
	if zq.HoursAhead, err = intParam(q.Get("hours_ahead"), 1); err != nil {
		writeError(w, err)
		return
	}
	if zq.Suggest, err = boolParam(q.Get("suggest"), true); err != nil {
		writeError(w, err)
		return
	}
	if v := q.Get("radius"); v != "" {
		if zq.RadiusM, err = floatParam(v); err != nil {
			writeError(w, err)
			return
		}
	}
	if zq.MaxResults, err = intParam(q.Get("max_results"), 0); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.eng.ForecastZone(r.Context(), zq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) realtime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone, err := model.ParseZoneID(q.Get("zone_number"))
	if err != nil {
		writeError(w, err)
		return
	}
	onlyAvailable, err := boolParam(q.Get("only_available"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.eng.Realtime(zone, onlyAvailable)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) historical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone, err := model.ParseZoneID(q.Get("zone_number"))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.eng.HistoricalByHour(zone, model.ParseDayType(q.Get("day_type")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) zoneRules(w http.ResponseWriter, r *http.Request) {
	zone, err := model.ParseZoneID(chi.URLParam(r, "zone"))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.eng.ZoneRules(zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) zonesByStreet(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.ZonesByStreet(r.URL.Query().Get("on_street"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func intParam(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidArgument, "expected an integer, got %q", v)
	}
	return n, nil
}

func floatParam(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidArgument, "expected a number, got %q", v)
	}
	return f, nil
}

func boolParam(v string, def bool) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, eris.Wrapf(model.ErrInvalidArgument, "expected true or false, got %q", v)
	}
	return b, nil
}

// statusFor maps the error taxonomy onto HTTP status codes. Data access and
// geocoder transport failures fall through to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidZone), errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrGeocoderDisabled), errors.Is(err, model.ErrForecastUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("http: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("http: encode response", zap.Error(err))
	}
}
