package transport

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"tokenqueue/pkg/domain/model"
	"tokenqueue/pkg/domain/service"
)

type Handler struct {
	orders service.OrderService
}

func Router(orders service.OrderService) http.Handler {
	handler := &Handler{orders: orders}

	r := mux.NewRouter()
	r.HandleFunc("/", handler.home).Methods(http.MethodGet)
	r.HandleFunc("/generate_token", handler.generateToken).Methods(http.MethodPost)
	r.HandleFunc("/queue", handler.getQueue).Methods(http.MethodGet)
	r.HandleFunc("/clear_orders", handler.clearOrders).Methods(http.MethodPost)

	// Browser clients live on other origins, so all routes answer
	// cross-origin requests.
	return cors.AllowAll().Handler(requestIDMiddleware(logMiddleware(r)))
}

type orderItemInput struct {
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type generateTokenRequest struct {
	CustomerID string                    `json:"customer_id"`
	Items      map[string]orderItemInput `json:"items"`
}

type receiptItem struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
}

type generateTokenResponse struct {
	Status        string        `json:"status"`
	TokenNumber   int64         `json:"token_number"`
	CustomerID    string        `json:"customer_id"`
	Timestamp     string        `json:"timestamp"`
	FormattedTime string        `json:"formatted_time"`
	Total         float64       `json:"total"`
	Items         []receiptItem `json:"items"`
}

type queueItem struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type queueEntry struct {
	TokenNumber int64       `json:"token_number"`
	CustomerID  string      `json:"customer_id"`
	Timestamp   string      `json:"timestamp"`
	Total       float64     `json:"total"`
	Items       []queueItem `json:"items"`
}

type queueResponse struct {
	Queue []queueEntry `json:"queue"`
}

type clearOrdersResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "running",
		"endpoints": map[string]string{
			"/generate_token": "POST - Create new order",
			"/queue":          "GET - Get current queue",
			"/clear_orders":   "POST - Clear all orders (admin)",
		},
	})
}

func (h *Handler) generateToken(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("failed to decode order request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order payload"})
		return
	}

	receipt, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		CustomerID: req.CustomerID,
		Items:      itemsToLines(req.Items),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]receiptItem, 0, len(receipt.Items))
	for _, line := range receipt.Items {
		items = append(items, receiptItem{
			ItemName: line.ItemName,
			Quantity: line.Quantity,
			Price:    line.Price,
			Amount:   line.Amount,
		})
	}

	writeJSON(w, http.StatusOK, generateTokenResponse{
		Status:        "success",
		TokenNumber:   receipt.TokenNumber,
		CustomerID:    receipt.CustomerID,
		Timestamp:     receipt.CreatedAt.Format(time.RFC3339Nano),
		FormattedTime: receipt.FormattedTime,
		Total:         receipt.Total,
		Items:         items,
	})
}

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.orders.GetQueue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	queue := make([]queueEntry, 0, len(entries))
	for _, entry := range entries {
		items := make([]queueItem, 0, len(entry.Items))
		for _, item := range entry.Items {
			items = append(items, queueItem{
				ItemName: item.ItemName,
				Quantity: item.Quantity,
				Price:    item.Price,
			})
		}
		queue = append(queue, queueEntry{
			TokenNumber: entry.TokenNumber,
			CustomerID:  entry.CustomerID,
			Timestamp:   entry.CreatedAt.Format(time.RFC3339Nano),
			Total:       entry.Total,
			Items:       items,
		})
	}

	writeJSON(w, http.StatusOK, queueResponse{Queue: queue})
}

func (h *Handler) clearOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.ClearQueue(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearOrdersResponse{Status: "success", Message: "All orders cleared"})
}

// itemsToLines flattens the wire mapping of name to quantity and price into
// the list the service expects. Map iteration order is not defined, so lines
// are sorted by name to keep receipts deterministic.
func itemsToLines(items map[string]orderItemInput) []model.LineItem {
	if items == nil {
		return nil
	}
	lines := make([]model.LineItem, 0, len(items))
	for name, item := range items {
		lines = append(lines, model.LineItem{Name: name, Quantity: item.Quantity, Price: item.Price})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}

func writeError(w http.ResponseWriter, err error) {
	if service.IsInvalidInput(err) {
		log.WithError(err).Warn("rejected invalid request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	log.WithError(err).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(b); err != nil {
		log.WithField("err", err).Error("failed to write response")
	}
}
