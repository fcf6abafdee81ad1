package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"pricewatch/internal/model"
	"pricewatch/internal/tracker"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func (s Server) trackerUpdateOne() http.HandlerFunc {
	type response struct {
		ProductID string  `json:"product_id"`
		Success   bool    `json:"success"`
		Price     float64 `json:"price,omitempty"`
		Reason    string  `json:"reason,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		productID := mux.Vars(r)["productID"]
		rec, err := s.Engine.UpdateOne(r.Context(), productID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.Logger.Debugf("trackerUpdateOne: No tracked Product with ID: %s, err: %v", productID, err)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("trackerUpdateOne: Error checking Product with ID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{
			ProductID: productID,
			Success:   rec.Success,
			Price:     rec.Price,
			Reason:    rec.Reason,
		}, http.StatusOK)
	}
}

func (s Server) trackerUpdateAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		j, err := s.Engine.UpdateAll(r.Context())
		if err != nil {
			s.Logger.Errorf("trackerUpdateAll: Error starting update, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, j.Snapshot(), http.StatusAccepted)
	}
}

func (s Server) trackerUpdateStale() http.HandlerFunc {
	type request struct {
		Threshold string `json:"threshold"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.Logger.Debugf("trackerUpdateStale: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		threshold, ok := parseThreshold(req.Threshold)
		if !ok {
			s.Logger.Debugf("trackerUpdateStale: Bad threshold: %s", req.Threshold)
			http.Error(w, "Invalid threshold", http.StatusBadRequest)
			return
		}

		j, err := s.Engine.UpdateStale(r.Context(), threshold)
		if err != nil {
			s.Logger.Errorf("trackerUpdateStale: Error starting update, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, j.Snapshot(), http.StatusAccepted)
	}
}

func (s Server) trackerStale() http.HandlerFunc {
	type response []model.Product
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, ok := parseThreshold(r.URL.Query().Get("threshold"))
		if !ok {
			s.Logger.Debugf("trackerStale: Bad threshold: %s", r.URL.Query().Get("threshold"))
			http.Error(w, "Invalid threshold", http.StatusBadRequest)
			return
		}

		ps, err := s.Engine.ListStale(r.Context(), threshold)
		if err != nil {
			s.Logger.Errorf("trackerStale: Error listing stale Products, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if ps == nil {
			ps = []model.Product{}
		}
		s.writeJsonResponse(w, response(ps), http.StatusOK)
	}
}

func (s Server) trackerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Engine.Status(r.Context())
		if err != nil {
			s.Logger.Errorf("trackerStatus: Error getting tracking stats, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, stats, http.StatusOK)
	}
}

func (s Server) trackerJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["jobID"]
		st, ok := s.Engine.JobStatus(jobID)
		if !ok {
			s.Logger.Debugf("trackerJob: No Job with ID: %s", jobID)
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		s.writeJsonResponse(w, st, http.StatusOK)
	}
}

// parseThreshold reads an optional staleness threshold like "36h". Empty
// means use the configured default.
func parseThreshold(s string) (time.Duration, bool) {
	if s == "" {
		return 0, true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
