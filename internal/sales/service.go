package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/temple-erp/temple-pos/internal/accounting"
	"github.com/temple-erp/temple-pos/internal/inventory"
	"github.com/temple-erp/temple-pos/internal/platform/cache"
	"github.com/temple-erp/temple-pos/internal/sequence"
	"github.com/temple-erp/temple-pos/internal/shared"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, ref Ref) (Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, int, error)
}

// InventoryPort is the stock side of the pipeline.
type InventoryPort interface {
	Process(ctx context.Context, store inventory.Store, rc shared.RequestContext, booking inventory.Booking, items []inventory.Item) (inventory.Result, error)
	Reverse(ctx context.Context, store inventory.Store, rc shared.RequestContext, booking inventory.Booking) (inventory.Result, error)
}

// PosterPort posts the receipt journal entry of a booking.
type PosterPort interface {
	Post(ctx context.Context, store accounting.TxStore, rc shared.RequestContext, bookingID int64) (accounting.Entry, error)
}

// LockerPort provides cross-instance mutual exclusion.
type LockerPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// CachePort is a versioned read-through cache.
type CachePort interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// IdempotencyPort claims request keys.
type IdempotencyPort interface {
	Claim(ctx context.Context, module, key string, at time.Time) error
	Release(ctx context.Context, module, key string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives pipeline outcomes.
type MetricsPort interface {
	ObservePipeline(operation, outcome string, elapsed time.Duration)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Live  bool
	Debug bool
}

// Service runs the sales order pipeline.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	poster      PosterPort
	builder     *Builder
	logger      *slog.Logger
	cache       CachePort
	locker      LockerPort
	idempotency IdempotencyPort
	audit       AuditPort
	metrics     MetricsPort

	bookingNumbers *sequence.Generator
	paymentRefs    *sequence.Generator
	group          singleflight.Group
	now            func() time.Time
}

// NewService builds Service. Optional collaborators are attached with the
// With* methods.
func NewService(repo RepositoryPort, inv InventoryPort, poster PosterPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		inventory:      inv,
		poster:         poster,
		builder:        NewBuilder(),
		logger:         logger,
		cache:          cache.NewVersioned(nil, "sales", 0),
		locker:         cache.NewLocker(nil, 0),
		bookingNumbers: sequence.New(sequence.BookingNumbers(cfg.Live)),
		paymentRefs:    sequence.New(sequence.PaymentReferences(cfg.Live)),
		now:            time.Now,
	}
}

// WithCache sets the read cache.
func (s *Service) WithCache(c CachePort) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

// WithLocker sets the distributed lock used by Cancel.
func (s *Service) WithLocker(l LockerPort) *Service {
	if l != nil {
		s.locker = l
	}
	return s
}

// WithIdempotency enables Idempotency-Key handling on Create.
func (s *Service) WithIdempotency(store IdempotencyPort) *Service {
	s.idempotency = store
	return s
}

// WithAudit enables the audit trail.
func (s *Service) WithAudit(audit AuditPort) *Service {
	s.audit = audit
	return s
}

// WithMetrics enables pipeline metrics.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// WithNow overrides the clock used when a request carries no time.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ParseRef interprets a path parameter as an id or a booking number.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, shared.NotFoundError("Sales order not found")
	}
	ref := Ref{Number: raw}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		ref.ID = id
	}
	return ref, nil
}

func (r Ref) key() string {
	if r.ID > 0 {
		return "id:" + strconv.FormatInt(r.ID, 10)
	}
	return "number:" + r.Number
}

// ============================================================================
// CREATE
// ============================================================================

// Create validates req, persists the booking with its items, meta and
// payment, applies inventory and posts the ledger entry in one unit of work.
func (s *Service) Create(ctx context.Context, rc shared.RequestContext, req CreateRequest) (Order, error) {
	start := time.Now()
	order, err := s.create(ctx, rc, req)
	s.observe("create", err, start)
	return order, err
}

func (s *Service) create(ctx context.Context, rc shared.RequestContext, req CreateRequest) (Order, error) {
	if err := rc.Validate(); err != nil {
		return Order{}, err
	}
	rc.Now = rc.Clock(s.now)
	p := newPipeline()

	draft, err := s.builder.Build(req, rc)
	if err != nil {
		p.fail()
		return Order{}, err
	}
	if err := p.advance(StageBuilding); err != nil {
		return Order{}, err
	}

	if rc.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, idempotencyModule, rc.IdempotencyKey, rc.Now); err != nil {
			p.fail()
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Order{}, shared.DuplicateError(err)
			}
			return Order{}, err
		}
	}

	var (
		booking Booking
		lc      tracker
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lc = tracker{}
		var err error
		booking, err = s.persist(ctx, tx, rc, draft)
		if err != nil {
			return err
		}
		lc.created()
		logger := s.logger.With(slog.Int64("booking_id", booking.ID), slog.String("booking_number", booking.Number))

		if err := p.advance(StageInventoryPending); err != nil {
			return err
		}
		result, err := s.inventory.Process(ctx, tx.Inventory(), rc, inventoryBooking(booking), inventoryItems(booking.Items))
		if err != nil {
			logger.Error("inventory migration failed", slog.Any("error", err))
			return shared.InventoryError(err)
		}
		logger.Info("inventory migration result", slog.String("result", result.Message), slog.Int("movements", len(result.Movements)))
		if err := lc.to(LifecycleInventoryApplied); err != nil {
			return err
		}

		if err := p.advance(StageAccountingPending); err != nil {
			return err
		}
		entry, err := s.poster.Post(ctx, accounting.Compose(tx, tx.Ledger()), rc, booking.ID)
		if err != nil {
			logger.Error("account migration failed", slog.Any("error", err))
			return shared.AccountingError(err)
		}
		logger.Info("account migration posted", slog.Int64("entry_id", entry.ID), slog.String("entry_code", entry.Code))
		booking.AccountMigrated = true
		return lc.to(LifecycleLedgerPosted)
	})
	if err != nil {
		stage := p.fail()
		s.logger.Error("sales order rolled back",
			slog.String("stage", string(stage)),
			slog.String("discarded", lc.reached()),
			slog.String("booking_number", booking.Number),
			slog.Any("error", err))
		if rc.IdempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyModule, rc.IdempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return Order{}, err
	}
	if err := p.advance(StageCommitted); err != nil {
		return Order{}, err
	}
	if err := lc.to(LifecycleCommitted); err != nil {
		return Order{}, err
	}
	s.logger.Info("sales order committed",
		slog.Int64("booking_id", booking.ID),
		slog.String("booking_number", booking.Number),
		slog.String("lifecycle", lc.reached()))

	s.invalidate(ctx)
	s.record(ctx, rc, "sales:create", booking, map[string]any{
		"booking_number": booking.Number,
		"total_amount":   booking.Total.StringFixed(2),
		"paid_amount":    booking.Paid.StringFixed(2),
		"payment_status": string(booking.PaymentStatus),
	})

	stored, err := s.repo.Get(ctx, Ref{ID: booking.ID})
	if err != nil {
		// The booking is committed; answer from what was written.
		s.logger.Warn("reload committed sales order",
			slog.Int64("booking_id", booking.ID),
			slog.String("booking_number", booking.Number),
			slog.Any("error", err))
		booking.Creator = &User{ID: rc.Actor.ID, Name: rc.Actor.Name}
		return Format(booking), nil
	}
	return Format(stored), nil
}

func (s *Service) persist(ctx context.Context, tx TxRepository, rc shared.RequestContext, draft Draft) (Booking, error) {
	mode, err := tx.GetPaymentMode(ctx, draft.Payment.PaymentModeID)
	if err != nil {
		if errors.Is(err, accounting.ErrPaymentModeNotFound) {
			return Booking{}, shared.ValidationError(map[string]string{
				"payment.payment_mode_id": "The selected payment.payment_mode_id is invalid.",
			})
		}
		return Booking{}, err
	}

	booking := draft.Booking
	booking.Number, err = s.bookingNumbers.Next(ctx, tx, rc.Now)
	if err != nil {
		return Booking{}, fmt.Errorf("sales: booking number: %w", err)
	}
	booking.ID, err = tx.InsertBooking(ctx, booking)
	if err != nil {
		return Booking{}, err
	}

	booking.Items = make([]BookingItem, 0, len(draft.Items))
	for _, item := range draft.Items {
		item.BookingID = booking.ID
		item.ID, err = tx.InsertItem(ctx, item)
		if err != nil {
			return Booking{}, err
		}
		if len(item.Meta) > 0 {
			if err := tx.InsertItemMeta(ctx, item.ID, item.Meta, rc.Now); err != nil {
				return Booking{}, err
			}
		}
		booking.Items = append(booking.Items, item)
	}
	if len(draft.Meta) > 0 {
		if err := tx.InsertBookingMeta(ctx, booking.ID, draft.Meta, rc.Now); err != nil {
			return Booking{}, err
		}
		booking.Meta = draft.Meta
	}

	payment := draft.Payment
	payment.BookingID = booking.ID
	payment.PaymentMethod = mode.Name
	payment.Reference, err = s.paymentRefs.Next(ctx, tx, rc.Now)
	if err != nil {
		return Booking{}, fmt.Errorf("sales: payment reference: %w", err)
	}
	payment.ID, err = tx.InsertPayment(ctx, payment)
	if err != nil {
		return Booking{}, err
	}
	booking.Payments = []Payment{payment}
	return booking, nil
}

func inventoryBooking(b Booking) inventory.Booking {
	return inventory.Booking{ID: b.ID, Number: b.Number, Date: b.Date}
}

func inventoryItems(items []BookingItem) []inventory.Item {
	out := make([]inventory.Item, 0, len(items))
	for _, item := range items {
		out = append(out, inventory.Item{
			BookingItemID: item.ID,
			SaleItemID:    item.ItemID,
			Name:          item.Name,
			Quantity:      item.Quantity,
		})
	}
	return out
}

// ============================================================================
// CANCEL
// ============================================================================

// Cancel cancels a confirmed booking, reversing its stock movements first.
// The ledger entry is left in place.
func (s *Service) Cancel(ctx context.Context, rc shared.RequestContext, idOrNumber string) (Order, error) {
	start := time.Now()
	order, err := s.cancel(ctx, rc, idOrNumber)
	s.observe("cancel", err, start)
	return order, err
}

func (s *Service) cancel(ctx context.Context, rc shared.RequestContext, idOrNumber string) (Order, error) {
	if err := rc.Validate(); err != nil {
		return Order{}, err
	}
	rc.Now = rc.Clock(s.now)
	ref, err := ParseRef(idOrNumber)
	if err != nil {
		return Order{}, err
	}
	existing, err := s.repo.Get(ctx, ref)
	if err != nil {
		return Order{}, notFound(err)
	}

	release, err := s.locker.Acquire(ctx, shared.BookingLockKey(existing.ID))
	if err != nil {
		if errors.Is(err, cache.ErrLockNotObtained) {
			return Order{}, &shared.Error{Kind: shared.KindConflict, Message: "Sales order is being updated, try again", Err: err}
		}
		return Order{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release booking lock", slog.Int64("booking_id", existing.ID), slog.Any("error", err))
		}
	}()

	var booking Booking
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		booking, err = tx.GetForUpdate(ctx, Ref{ID: existing.ID})
		if err != nil {
			return notFound(err)
		}
		if err := booking.CheckCancel(); err != nil {
			return cancelConflict(err)
		}
		logger := s.logger.With(slog.Int64("booking_id", booking.ID), slog.String("booking_number", booking.Number))
		if booking.InventoryMigrated {
			result, err := s.inventory.Reverse(ctx, tx.Inventory(), rc, inventoryBooking(booking))
			if err != nil {
				logger.Error("inventory reversal failed", slog.Any("error", err))
				return shared.ReversalError(err)
			}
			logger.Info("inventory reversed", slog.String("result", result.Message), slog.Int("movements", len(result.Movements)))
		}
		if booking.AccountMigrated {
			logger.Warn("sales order cancelled with a posted ledger entry; entry not reversed")
		}
		return tx.UpdateStatus(ctx, booking.ID, StatusCancelled, rc.Now)
	})
	if err != nil {
		return Order{}, err
	}

	s.invalidate(ctx)
	s.record(ctx, rc, "sales:cancel", booking, map[string]any{
		"booking_number":     booking.Number,
		"inventory_reversed": booking.InventoryMigrated,
		"ledger_posted":      booking.AccountMigrated,
	})

	stored, err := s.repo.Get(ctx, Ref{ID: booking.ID})
	if err != nil {
		return Order{}, err
	}
	return Format(stored), nil
}

func cancelConflict(err error) error {
	message := err.Error()
	switch {
	case errors.Is(err, ErrAlreadyCancelled):
		message = "Sales order is already cancelled"
	case errors.Is(err, ErrCompleted):
		message = "Cannot cancel a completed sales order"
	}
	return &shared.Error{Kind: shared.KindConflict, Message: message, Err: err}
}

func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.NotFoundError("Sales order not found")
	}
	return err
}

// ============================================================================
// READS
// ============================================================================

// Get returns a booking by id or booking number. Concurrent lookups of the
// same key share one load.
func (s *Service) Get(ctx context.Context, idOrNumber string) (Order, error) {
	ref, err := ParseRef(idOrNumber)
	if err != nil {
		return Order{}, err
	}
	key, err := s.cache.BuildKey(ctx, "order", ref.key())
	if err != nil {
		return Order{}, err
	}
	val, err, _ := s.singleflight(ctx, key, func(ctx context.Context) (any, error) {
		var order Order
		err := s.cache.FetchJSON(ctx, key, &order, func(ctx context.Context) (any, error) {
			booking, err := s.repo.Get(ctx, ref)
			if err != nil {
				return nil, err
			}
			return Format(booking), nil
		})
		return order, err
	})
	if err != nil {
		return Order{}, notFound(err)
	}
	return val.(Order), nil
}

func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

// List returns one page of sales orders, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Order, shared.Pagination, error) {
	if err := s.builder.Validate(req); err != nil {
		return nil, shared.Pagination{}, err
	}
	page, perPage := shared.NormalizePage(req.Page, req.PerPage)
	filter := ListFilter{
		Search:        strings.TrimSpace(req.Search),
		Status:        BookingStatus(req.Status),
		PaymentStatus: PaymentStatus(req.PaymentStatus),
		Page:          page,
		PerPage:       perPage,
	}
	if req.FromDate != "" {
		from, _ := time.Parse(dateLayout, req.FromDate)
		filter.FromDate = &from
	}
	if req.ToDate != "" {
		to, _ := time.Parse(dateLayout, req.ToDate)
		filter.ToDate = &to
	}
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	orders := make([]Order, 0, len(bookings))
	for _, b := range bookings {
		orders = append(orders, Format(b))
	}
	return orders, shared.NewPagination(page, perPage, total), nil
}

// ============================================================================
// SIDE CHANNELS
// ============================================================================

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("sales cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, rc shared.RequestContext, action string, b Booking, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  rc.Actor.ID,
		Action:   action,
		Entity:   "booking",
		EntityID: strconv.FormatInt(b.ID, 10),
		Meta:     meta,
		At:       rc.Now,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observe(operation string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservePipeline(operation, Outcome(err), time.Since(start))
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return "validation_error"
	case shared.KindInventory:
		return "inventory_error"
	case shared.KindAccounting:
		return "account_error"
	case shared.KindNotFound:
		return "not_found"
	case shared.KindConflict, shared.KindDuplicate:
		return "conflict"
	case shared.KindReversal:
		return "reversal_error"
	}
	return "error"
}
