package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"price-advisor/internal/elasticity"
	"price-advisor/internal/export"
	"price-advisor/internal/ingest"
	"price-advisor/internal/storage"
)

const (
	maxMultipartMemory = 32 << 20
	defaultSalesLimit  = 100
	maxSalesLimit      = 1000
)

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type uploadResponse struct {
	Inserted int64             `json:"inserted"`
	Rejected int               `json:"rejected"`
	Errors   []ingest.RowError `json:"errors"`
}

type createSaleRequest struct {
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	SoldAt      string          `json:"sold_at"`
}

type salesResponse struct {
	Sales []storage.SaleRecord `json:"sales"`
	Count int                  `json:"count"`
}

type analysesResponse struct {
	Analyses []storage.ProductAnalysis `json:"analyses"`
	Count    int                       `json:"count"`
}

type optimizeRequest struct {
	Elasticity      float64 `json:"elasticity"`
	CurrentPrice    float64 `json:"current_price"`
	CurrentQuantity float64 `json:"current_quantity"`
	CostPerUnit     float64 `json:"cost_per_unit"`
	Target          string  `json:"target"`
}

type optimizeResponse struct {
	OptimalPrice      float64 `json:"optimal_price"`
	ExpectedChangePct float64 `json:"expected_change_pct"`
	Target            string  `json:"target"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

func (s *Server) handleUploadSales(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_multipart", "request body is not valid multipart form data")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "missing_file", `multipart field "file" is required`)
		return
	}
	defer file.Close()

	result, err := ingest.ParseSales(file, owner, ingest.Options{MaxRows: s.cfg.Export.MaxUploadRows})
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyUpload) {
			s.writeError(w, r, http.StatusBadRequest, "empty_upload", "the uploaded file has no header row")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid_csv", err.Error())
		return
	}

	inserted, err := s.sales.InsertSales(r.Context(), result.Records)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	s.metrics.RowsIngested.Add(float64(inserted))

	if result.Errors == nil {
		result.Errors = []ingest.RowError{}
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{
		Inserted: inserted,
		Rejected: len(result.Errors),
		Errors:   result.Errors,
	})
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing_product_name", "product_name is required")
		return
	}
	if !req.Price.IsPositive() {
		s.writeError(w, r, http.StatusBadRequest, "invalid_price", "price must be positive")
		return
	}
	if req.Quantity < 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_quantity", "quantity cannot be negative")
		return
	}
	soldAt, err := ingest.ParseSaleDate(req.SoldAt)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_sold_at", err.Error())
		return
	}

	rec, err := s.sales.InsertSale(r.Context(), storage.SaleRecord{
		OwnerID:     owner,
		ProductName: name,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		Quantity:    req.Quantity,
		SoldAt:      soldAt,
	})
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	s.metrics.RowsIngested.Inc()

	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	product := r.URL.Query().Get("product")

	limit := defaultSalesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxSalesLimit {
			limit = parsed
		}
	}

	sales, err := s.sales.ListSales(r.Context(), owner, product, limit)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	if sales == nil {
		sales = []storage.SaleRecord{}
	}
	s.writeJSON(w, http.StatusOK, salesResponse{Sales: sales, Count: len(sales)})
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_id", "sale id must be an integer")
		return
	}

	if err := s.sales.DeleteSale(r.Context(), owner, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.writeError(w, r, http.StatusNotFound, "sale_not_found", "no sale with that id belongs to this owner")
			return
		}
		s.writeStorageError(w, r, err)
		return
	}

	s.cache.InvalidateOwner(r.Context(), owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunAnalyses(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	target, err := s.cfg.ResolveTarget(r.URL.Query().Get("target"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_target", err.Error())
		return
	}

	summary, err := s.analyzer.AnalyzeOwner(r.Context(), owner, target)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	analyses, err := s.loadAnalyses(r.Context(), owner)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []storage.ProductAnalysis{}
	}
	s.writeJSON(w, http.StatusOK, analysesResponse{Analyses: analyses, Count: len(analyses)})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	product := mux.Vars(r)["product"]

	analysis, err := s.analyses.GetAnalysis(r.Context(), owner, product)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.writeError(w, r, http.StatusNotFound, "analysis_not_found", "no analysis stored for that product")
			return
		}
		s.writeStorageError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.CostPerUnit < 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_cost", "cost_per_unit cannot be negative")
		return
	}
	target, err := elasticity.ParseTarget(req.Target)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_target", err.Error())
		return
	}

	result := elasticity.Optimize(req.Elasticity, req.CurrentPrice, req.CurrentQuantity, req.CostPerUnit, target)
	s.writeJSON(w, http.StatusOK, optimizeResponse{
		OptimalPrice:      result.OptimalPrice,
		ExpectedChangePct: result.ExpectedChangePct,
		Target:            target.String(),
	})
}

func (s *Server) handleExportAnalysesCSV(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	analyses, err := s.loadAnalyses(r.Context(), owner)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="analyses.csv"`)
	if err := export.WriteAnalysesCSV(w, analyses); err != nil {
		s.logger.Warn().Err(err).Str("owner", owner).Msg("csv export aborted mid-stream")
	}
}

func (s *Server) handleProductChart(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	product := mux.Vars(r)["product"]

	records, err := s.sales.ListProductSales(r.Context(), owner, product)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePriceHistoryPNG(&buf, product, records, s.cfg.Export.MaxChartPoints); err != nil {
		if errors.Is(err, export.ErrNotEnoughHistory) {
			s.writeError(w, r, http.StatusUnprocessableEntity, "not_enough_history", "at least two sales are required to chart a product")
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, "chart_render_failed", "could not render the price history chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Cache: "ok"}
	if s.db == nil {
		resp.Status = "degraded"
		resp.Database = "not_configured"
	} else if err := s.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "error"
	}

	if s.cache == nil {
		resp.Cache = "disabled"
	} else if err := s.cache.Ping(ctx); err != nil {
		resp.Cache = "error"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "route_not_found", "the requested endpoint does not exist")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "the endpoint does not support this method")
}

func (s *Server) loadAnalyses(ctx context.Context, owner string) ([]storage.ProductAnalysis, error) {
	if cached, ok := s.cache.GetAnalyses(ctx, owner); ok {
		return cached, nil
	}
	analyses, err := s.analyses.ListAnalyses(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.cache.SetAnalyses(ctx, owner, analyses)
	return analyses, nil
}

func (s *Server) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotConfigured) {
		s.writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable", "the database is not configured")
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("storage operation failed")
	s.writeError(w, r, http.StatusInternalServerError, "storage_error", "the operation could not be completed")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}
