package server

import (
	"encoding/json"
	"net/http"
	"time"

	"pricewatch/internal/analytics"
	"pricewatch/internal/client"
	"pricewatch/internal/model"
	"pricewatch/internal/tracker"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s Server) productAdd() http.HandlerFunc {
	type request struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	type response struct {
		Product model.Product `json:"product"`
		Price   float64       `json:"price"`
		Created bool          `json:"created"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("productAdd: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		identity, err := client.ParseProductURL(req.URL)
		if err != nil {
			s.Logger.Debugf("productAdd: Bad product URL: %s, err: %v", req.URL, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		pp, err := s.Client.GetProduct(r.Context(), identity.URL, true)
		if err != nil {
			if errors.Is(err, tracker.ErrFetchParse) {
				s.Logger.Debugf("productAdd: Could not parse product page, URL: %s, err: %v", identity.URL, err)
				http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
				return
			}
			s.Logger.Errorf("productAdd: Error getting product page, URL: %s, err: %v", identity.URL, err)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}

		name := pp.Name
		if req.Name != "" {
			name = req.Name
		}
		if name == "" {
			name = "Unknown Product"
		}

		p, created, err := s.DB.ProductUpsert(r.Context(), model.Product{
			ID:       identity.ID,
			URL:      identity.URL,
			Name:     name,
			Site:     identity.Site,
			ImageURL: pp.ImageURL,
		})
		if err != nil {
			s.Logger.Errorf("productAdd: Error upserting Product, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if created {
			rec := model.PriceRecord{
				ProductID: p.ID,
				Price:     pp.Price,
				Success:   true,
				Timestamp: primitive.NewDateTimeFromTime(time.Now()),
			}
			if err = s.DB.PriceRecordInsert(r.Context(), rec); err != nil {
				s.Logger.Errorf("productAdd: Error inserting first PriceRecord for ProductID: %s, err: %v", p.ID, err)
			} else if err = s.DB.ProductLastCheckedUpdate(r.Context(), p.ID, rec.Timestamp.Time()); err != nil {
				s.Logger.Errorf("productAdd: Error updating last checked time for ProductID: %s, err: %v", p.ID, err)
			}
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		s.writeJsonResponse(w, response{Product: p, Price: pp.Price, Created: created}, status)
	}
}

func (s Server) productGetAll() http.HandlerFunc {
	type trackedProduct struct {
		model.Product
		CurrentPrice float64 `json:"current_price,omitempty"`
	}
	type response []trackedProduct
	return func(w http.ResponseWriter, r *http.Request) {
		ps, err := s.DB.ProductFindAllActive(r.Context())
		if err != nil {
			s.Logger.Errorf("productGetAll: Error finding Products, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		resp := response{}
		for _, p := range ps {
			tp := trackedProduct{Product: p}
			rec, err := s.DB.PriceRecordFindLatestSuccess(r.Context(), p.ID)
			if err != nil {
				if !errors.Is(err, tracker.ErrNotFound) {
					s.Logger.Errorf("productGetAll: Error finding latest price for ProductID: %s, err: %v", p.ID, err)
				}
			} else {
				tp.CurrentPrice = rec.Price
			}
			resp = append(resp, tp)
		}
		s.writeJsonResponse(w, resp, http.StatusOK)
	}
}

func (s Server) productGetOne() http.HandlerFunc {
	type response struct {
		model.Product
		Summary model.HistorySummary `json:"summary"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		productID := mux.Vars(r)["productID"]
		p, err := s.DB.ProductFind(r.Context(), productID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.Logger.Debugf("productGetOne: No Product with ID: %s", productID)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("productGetOne: Error finding Product with ID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		recs, err := s.DB.PriceRecordFindRecent(r.Context(), p.ID, s.Engine.Config.MaxHistoryEntries)
		if err != nil {
			s.Logger.Errorf("productGetOne: Error finding PriceRecords for ProductID: %s, err: %v", p.ID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Product: p, Summary: model.SummarizeHistory(recs)}, http.StatusOK)
	}
}

func (s Server) productRemove() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		productID := mux.Vars(r)["productID"]
		if err := s.DB.ProductDeactivate(r.Context(), productID); err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.Logger.Debugf("productRemove: No Product with ID: %s", productID)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("productRemove: Error deactivating Product with ID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) productHistory() http.HandlerFunc {
	type request struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}
	type response []model.PriceRecord
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("productHistory: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if req.End.IsZero() {
			req.End = time.Now()
		}
		if req.Start.IsZero() {
			req.Start = req.End.AddDate(0, 0, -30)
		}

		productID := mux.Vars(r)["productID"]
		recs, err := s.DB.PriceRecordFindRange(r.Context(), productID, req.Start, req.End)
		if err != nil {
			s.Logger.Errorf("productHistory: Error getting PriceRecords for ProductID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if len(recs) == 0 {
			s.Logger.Debugf("productHistory: No PriceRecords found for ProductID: %s", productID)
			s.writeJsonResponse(w, response{}, http.StatusOK)
			return
		}
		s.writeJsonResponse(w, response(recs), http.StatusOK)
	}
}

func (s Server) productStats() http.HandlerFunc {
	type response struct {
		ProductID string `json:"product_id"`
		analytics.Summary
	}
	return func(w http.ResponseWriter, r *http.Request) {
		productID := mux.Vars(r)["productID"]
		if _, err := s.DB.ProductFind(r.Context(), productID); err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.Logger.Debugf("productStats: No Product with ID: %s", productID)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			s.Logger.Errorf("productStats: Error finding Product with ID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		recs, err := s.DB.PriceRecordFindRecent(r.Context(), productID, s.Engine.Config.MaxHistoryEntries)
		if err != nil {
			s.Logger.Errorf("productStats: Error finding PriceRecords for ProductID: %s, err: %v", productID, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		sum := analytics.Summarize(recs, s.Engine.Config.TrendWindow, s.Engine.Config.TrendDeadZonePercent)
		s.writeJsonResponse(w, response{ProductID: productID, Summary: sum}, http.StatusOK)
	}
}
