package sales

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/temple-erp/temple-pos/internal/shared"
)

type stubService struct {
	createRC  shared.RequestContext
	createReq CreateRequest
	err       error
	listReq   ListRequest
}

func (s *stubService) Create(ctx context.Context, rc shared.RequestContext, req CreateRequest) (Order, error) {
	s.createRC, s.createReq = rc, req
	if s.err != nil {
		return Order{}, s.err
	}
	return Order{ID: 1, BookingNumber: "SLBD2026101500000001"}, nil
}

func (s *stubService) Cancel(ctx context.Context, rc shared.RequestContext, idOrNumber string) (Order, error) {
	if s.err != nil {
		return Order{}, s.err
	}
	return Order{ID: 1, BookingNumber: idOrNumber, BookingStatus: StatusCancelled}, nil
}

func (s *stubService) Get(ctx context.Context, idOrNumber string) (Order, error) {
	if s.err != nil {
		return Order{}, s.err
	}
	return Order{ID: 1, BookingNumber: idOrNumber}, nil
}

func (s *stubService) List(ctx context.Context, req ListRequest) ([]Order, shared.Pagination, error) {
	s.listReq = req
	return []Order{{ID: 1}}, shared.NewPagination(req.Page, req.PerPage, 1), nil
}

func newTestRouter(svc ServicePort) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithRequest(req.Context(), shared.RequestContext{Actor: shared.Actor{ID: 7}})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/pos/sales", NewHandler(nil, svc, false, 0).MountRoutes)
	return r
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleCreate(t *testing.T) {
	svc := &stubService{}
	payload := `{"booking_date":"2026-10-15","subtotal":150,"total_amount":150,"paid_amount":150,
"print_option":"SINGLE_PRINT","items":[{"id":11,"name_primary":"Oil lamp","sale_type":"SALES","price":150,"quantity":1,"total":150}],
"payment":{"amount":150,"payment_mode_id":1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/pos/sales", strings.NewReader(payload))
	req.Header.Set("Idempotency-Key", "terminal-3:17")
	rr := httptest.NewRecorder()

	newTestRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Sales order created successfully", body["message"])
	require.Equal(t, "terminal-3:17", svc.createRC.IdempotencyKey)
	require.Equal(t, int64(7), svc.createRC.Actor.ID)
	require.True(t, svc.createReq.Subtotal.Equal(*dec("150")))
}

func TestHandleCreateErrors(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		err       error
		status    int
		errorType string
	}{
		{name: "malformed json", body: `{"items":`, status: http.StatusBadRequest},
		{name: "wrong type", body: `{"items":"lamp"}`, status: http.StatusUnprocessableEntity},
		{name: "validation", body: `{}`, err: shared.ValidationError(map[string]string{"items": "The items field is required."}), status: http.StatusUnprocessableEntity},
		{name: "inventory", body: `{}`, err: shared.InventoryError(context.DeadlineExceeded), status: http.StatusBadRequest, errorType: shared.TypeInventory},
		{name: "accounting", body: `{}`, err: shared.AccountingError(context.DeadlineExceeded), status: http.StatusBadRequest, errorType: shared.TypeAccounting},
		{name: "duplicate", body: `{}`, err: shared.DuplicateError(shared.ErrIdempotencyConflict), status: http.StatusConflict},
		{name: "unexpected", body: `{}`, err: context.Canceled, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/pos/sales", strings.NewReader(tc.body))
			newTestRouter(&stubService{err: tc.err}).ServeHTTP(rr, req)

			require.Equal(t, tc.status, rr.Code)
			body := decodeBody(t, rr)
			require.Equal(t, false, body["success"])
			require.NotEmpty(t, body["message"])
			if tc.errorType != "" {
				require.Equal(t, tc.errorType, body["error_type"])
			}
			if tc.status == http.StatusInternalServerError {
				require.NotContains(t, rr.Body.String(), "context canceled")
			}
		})
	}
}

func TestHandleShowNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pos/sales/SLBD2026101599999999", nil)
	newTestRouter(&stubService{err: shared.NotFoundError("Sales order not found")}).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "Sales order not found", decodeBody(t, rr)["message"])
}

func TestHandleCancel(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pos/sales/SLBD2026101500000001/cancel", nil)
	newTestRouter(&stubService{}).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, "Sales order cancelled successfully", body["message"])
	data := body["data"].(map[string]any)
	require.Equal(t, "CANCELLED", data["booking_status"])
}

func TestHandleCancelConflict(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pos/sales/1/cancel", nil)
	newTestRouter(&stubService{err: cancelConflict(ErrAlreadyCancelled)}).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Sales order is already cancelled", decodeBody(t, rr)["message"])
}

func TestHandleList(t *testing.T) {
	svc := &stubService{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pos/sales?search=devi&status=CONFIRMED&page=2&per_page=5", nil)
	newTestRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, ListRequest{Search: "devi", Status: "CONFIRMED", Page: 2, PerPage: 5}, svc.listReq)
	body := decodeBody(t, rr)
	pagination := body["pagination"].(map[string]any)
	require.Equal(t, float64(2), pagination["current_page"])
	require.Equal(t, float64(5), pagination["per_page"])

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/pos/sales?page=two", nil)
	newTestRouter(svc).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
