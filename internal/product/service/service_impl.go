package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	idemdomain "github.com/smallbiznis/catalog/internal/idempotency/domain"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Command names used for ledger records, logs and metrics labels.
const (
	CommandCreate      = "create"
	CommandUpdate      = "update"
	CommandChangePrice = "change_price"
	CommandActivate    = "activate"
	CommandDiscontinue = "discontinue"
	CommandDelete      = "delete"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Ledger  idemdomain.Ledger
	Policy  *config.PolicyConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

// Service orchestrates commands: idempotency lookup, validation, aggregate
// load, pure apply, optimistic-concurrency append, ledger record. It never
// retries a version conflict; that decision belongs to the caller.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	ledger  idemdomain.Ledger
	policy  *config.PolicyConfigHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("product.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandCreate, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	if verr := domain.ValidateCreate(req); verr != nil {
		return nil, s.reject(ctx, CommandCreate, verr)
	}

	sku := domain.NormalizeSKU(req.SKU)
	existing, err := s.repo.FindBySKU(ctx, s.db, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.reject(ctx, CommandCreate, domain.ErrDuplicateSKU)
	}

	p, evt, err := domain.NewProduct(s.genID.Generate(), req.SKU, req.Name, req.Description, req.PriceCents, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandCreate, err)
	}

	if err := s.repo.Append(ctx, s.db, &p, []domain.Event{evt}, 0); err != nil {
		if errors.Is(err, domain.ErrDuplicateSKU) {
			return nil, s.reject(ctx, CommandCreate, domain.ErrDuplicateSKU)
		}
		return nil, err
	}

	result := &domain.CommandResult{ProductID: p.ID.String(), Version: p.Version}
	s.finish(ctx, CommandCreate, req.IdempotencyKey, result)
	return result, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandUpdate, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	if verr := domain.ValidateUpdate(req); verr != nil {
		return nil, s.reject(ctx, CommandUpdate, verr)
	}

	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, s.reject(ctx, CommandUpdate, err)
	}

	next, evt, err := current.Update(req.Name, req.Description, req.ExpectedVersion, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandUpdate, err)
	}

	return s.persist(ctx, CommandUpdate, req.IdempotencyKey, next, evt, req.ExpectedVersion)
}

func (s *Service) ChangePrice(ctx context.Context, req domain.ChangePriceRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandChangePrice, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	if verr := domain.ValidateChangePrice(req); verr != nil {
		return nil, s.reject(ctx, CommandChangePrice, verr)
	}

	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, s.reject(ctx, CommandChangePrice, err)
	}

	threshold := s.policy.Get().PriceChangeThresholdPercent
	next, evt, err := current.ChangePrice(req.NewPriceCents, req.ExpectedVersion, req.ConfirmLargeChange, threshold, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandChangePrice, err)
	}

	return s.persist(ctx, CommandChangePrice, req.IdempotencyKey, next, evt, req.ExpectedVersion)
}

func (s *Service) Activate(ctx context.Context, req domain.ActivateRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandActivate, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, s.reject(ctx, CommandActivate, err)
	}

	next, evt, err := current.Activate(req.ExpectedVersion, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandActivate, err)
	}

	return s.persist(ctx, CommandActivate, req.IdempotencyKey, next, evt, req.ExpectedVersion)
}

func (s *Service) Discontinue(ctx context.Context, req domain.DiscontinueRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandDiscontinue, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, s.reject(ctx, CommandDiscontinue, err)
	}

	next, evt, err := current.Discontinue(req.ExpectedVersion, req.Reason, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandDiscontinue, err)
	}

	return s.persist(ctx, CommandDiscontinue, req.IdempotencyKey, next, evt, req.ExpectedVersion)
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteRequest) (*domain.CommandResult, error) {
	if replayed, err := s.replay(ctx, CommandDelete, req.IdempotencyKey); err != nil || replayed != nil {
		return replayed, err
	}

	current, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, s.reject(ctx, CommandDelete, err)
	}

	next, evt, err := current.Delete(req.ExpectedVersion, req.DeletedBy, s.clock.Now())
	if err != nil {
		return nil, s.reject(ctx, CommandDelete, err)
	}

	return s.persist(ctx, CommandDelete, req.IdempotencyKey, next, evt, req.ExpectedVersion)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.Load(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) History(ctx context.Context, id string) ([]domain.Event, error) {
	productID, err := s.parseID(id)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.History(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrNotFound
	}
	return events, nil
}

// replay serves a previously recorded result for the dedup key, bypassing
// validation, load and persistence entirely.
func (s *Service) replay(ctx context.Context, command, key string) (*domain.CommandResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	rec, err := s.ledger.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	var result domain.CommandResult
	if err := json.Unmarshal(rec.Result, &result); err != nil {
		return nil, err
	}
	result.Replayed = true

	s.metrics.RecordIdempotentReplay(ctx, command)
	s.log.Info("command replayed from ledger",
		zap.String("command", command),
		zap.String("product_id", result.ProductID),
		zap.Int64("version", result.Version),
	)
	return &result, nil
}

// persist appends the mutation, maps version conflicts, and records the
// outcome. A nil event is an accepted no-op: nothing is persisted and the
// version stays put.
func (s *Service) persist(ctx context.Context, command, key string, next domain.Product, evt *domain.Event, expectedVersion int64) (*domain.CommandResult, error) {
	result := &domain.CommandResult{ProductID: next.ID.String(), Version: next.Version}

	if evt != nil {
		if err := s.repo.Append(ctx, s.db, &next, []domain.Event{*evt}, expectedVersion); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				actual := s.currentVersion(ctx, next.ID, expectedVersion)
				return nil, s.reject(ctx, command, &domain.ConcurrentModificationError{
					Expected: expectedVersion,
					Actual:   actual,
				})
			}
			return nil, err
		}
	}

	s.finish(ctx, command, key, result)
	return result, nil
}

// finish records the success in the ledger and emits telemetry. The mutation
// is already durable, so a ledger failure only costs replay protection; it is
// logged and swallowed.
func (s *Service) finish(ctx context.Context, command, key string, result *domain.CommandResult) {
	key = strings.TrimSpace(key)
	if key != "" {
		raw, err := json.Marshal(result)
		if err == nil {
			now := s.clock.Now()
			err = s.ledger.Record(ctx, &idemdomain.Record{
				Key:         key,
				CommandType: command,
				ProductID:   result.ProductID,
				Result:      datatypes.JSON(raw),
				ExpiresAt:   now.Add(s.policy.Get().IdempotencyTTL),
				CreatedAt:   now,
			})
		}
		if err != nil {
			s.log.Warn("failed to record idempotency key",
				zap.String("command", command),
				zap.Error(err),
			)
		}
	}

	s.metrics.RecordCommandAccepted(ctx, command)
	s.log.Info("command accepted",
		zap.String("command", command),
		zap.String("product_id", result.ProductID),
		zap.Int64("version", result.Version),
	)
}

func (s *Service) reject(ctx context.Context, command string, err error) error {
	var conflict *domain.ConcurrentModificationError
	reason := "domain_rule"
	switch {
	case errors.As(err, &conflict):
		s.metrics.RecordVersionConflict(ctx, command)
		reason = "version_conflict"
	case errors.Is(err, domain.ErrNotFound):
		reason = "not_found"
	case isValidation(err):
		reason = "validation_failed"
	}
	s.metrics.RecordCommandRejected(ctx, command, reason)
	return err
}

func isValidation(err error) bool {
	var verr *domain.ValidationError
	var ierr *domain.InvariantViolationError
	return errors.As(err, &verr) || errors.As(err, &ierr)
}

func (s *Service) load(ctx context.Context, id string) (domain.Product, error) {
	productID, err := s.parseID(id)
	if err != nil {
		return domain.Product{}, err
	}
	item, err := s.repo.Load(ctx, s.db, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if item == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) currentVersion(ctx context.Context, id snowflake.ID, fallback int64) int64 {
	item, err := s.repo.Load(ctx, s.db, id)
	if err != nil || item == nil {
		return fallback
	}
	return item.Version
}

func (s *Service) parseID(raw string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	return domain.Response{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Status:      p.Status,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		DeletedAt:   p.DeletedAt,
	}
}
