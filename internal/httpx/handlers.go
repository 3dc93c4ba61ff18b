package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/draw"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const idempotencyHeader = "Idempotency-Key"

type Drawer interface {
	Draw(ctx context.Context, req draw.Request) (domain.Order, error)
}

type Handler struct {
	Draws       Drawer
	Catalog     domain.Catalog
	Ledger      domain.Ledger
	Balances    domain.Balances
	Secret      []byte
	DrawTimeout time.Duration
	Log         logger.Logger
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/blindboxes", h.listBoxes)
	r.Get("/blindboxes/{boxId}", h.getBox)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Secret))
		r.Post("/blindboxes/{boxId}/draw", h.draw)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderId}", h.getOrder)
		r.Get("/user/info", h.userInfo)
	})
}

type drawResp struct {
	OrderID    string `json:"orderId"`
	PrizeName  string `json:"prizeName"`
	PrizeImage string `json:"prizeImage"`
	Rarity     string `json:"rarity"`
}

func (h *Handler) draw(w http.ResponseWriter, r *http.Request) {
	timeout := h.DrawTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	order, err := h.Draws.Draw(ctx, draw.Request{
		BoxID:          chi.URLParam(r, "boxId"),
		UserID:         userFrom(r.Context()),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawResp{
		OrderID:    order.ID,
		PrizeName:  order.PrizeName,
		PrizeImage: order.PrizeImage,
		Rarity:     string(order.Rarity),
	})
}

type boxSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
}

type prizeView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Rarity      string          `json:"rarity"`
	Probability float64         `json:"probability"`
	Value       decimal.Decimal `json:"value"`
}

type boxDetail struct {
	boxSummary
	Prizes []prizeView `json:"prizes"`
}

func summarize(b domain.BlindBox) boxSummary {
	return boxSummary{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Image:       b.Image,
		Price:       b.Price,
		Stock:       b.Stock,
		Active:      b.Active,
	}
}

func (h *Handler) listBoxes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	boxes, err := h.Catalog.ListBoxes(ctx, strings.TrimSpace(r.URL.Query().Get("keyword")))
	if err != nil {
		h.logger().Error(ctx, "list boxes failed", logger.Error(err))
		writeDomainError(w, err)
		return
	}
	out := make([]boxSummary, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, summarize(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": out})
}

func (h *Handler) getBox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	box, err := h.Catalog.GetBoxWithPrizes(ctx, chi.URLParam(r, "boxId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := boxDetail{boxSummary: summarize(box), Prizes: make([]prizeView, 0, len(box.Prizes))}
	for _, p := range box.Prizes {
		resp.Prizes = append(resp.Prizes, prizeView{
			ID:          p.ID,
			Name:        p.Name,
			Image:       p.Image,
			Rarity:      string(p.Rarity),
			Probability: p.Probability,
			Value:       p.Value,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderView struct {
	ID           string          `json:"id"`
	BlindBoxID   string          `json:"blindBoxId"`
	BlindBoxName string          `json:"blindBoxName"`
	PrizeName    string          `json:"prizeName"`
	PrizeImage   string          `json:"prizeImage"`
	Rarity       string          `json:"rarity"`
	PricePaid    decimal.Decimal `json:"pricePaid"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func viewOrder(o domain.Order) orderView {
	return orderView{
		ID:           o.ID,
		BlindBoxID:   o.BoxID,
		BlindBoxName: o.BoxName,
		PrizeName:    o.PrizeName,
		PrizeImage:   o.PrizeImage,
		Rarity:       string(o.Rarity),
		PricePaid:    o.PricePaid,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	orders, err := h.Ledger.ListByUser(ctx, userFrom(r.Context()))
	if err != nil {
		h.logger().Error(ctx, "list orders failed", logger.Error(err))
		writeDomainError(w, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, viewOrder(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": out})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Ledger.Get(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// other users' orders look the same as missing ones
	if o.UserID != userFrom(r.Context()) {
		writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

func (h *Handler) userInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	userID := userFrom(r.Context())
	balance, err := h.Balances.GetBalance(ctx, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "balance": balance})
}

func (h *Handler) logger() logger.Logger {
	if h.Log != nil {
		return h.Log
	}
	return logger.Get()
}
