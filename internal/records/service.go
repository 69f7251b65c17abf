package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/listing"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/pricing"
	"github.com/noah-isme/backend-freight/internal/repo"
)

// Record is a stored document with its "_id", "created_at" and "updated_at".
type Record = map[string]any

// Write operations reported to listeners and metrics.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// WriteListener is notified after a record mutation has been persisted.
type WriteListener interface {
	RecordWritten(ctx context.Context, collection, op, id string)
}

// Service implements collection CRUD and listing on top of a repo.Store.
type Service struct {
	store     repo.Store
	cache     *Cache
	validate  *validator.Validate
	listeners []WriteListener
	log       zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     repo.Store
	Cache     *Cache
	Listeners []WriteListener
	Logger    zerolog.Logger
}

// QuoteRequest asks for the total of a base amount plus an optional partner charge.
type QuoteRequest struct {
	BaseAmount        float64 `json:"base_amount"`
	PartnerCollection string  `json:"partner_collection"`
	PartnerID         string  `json:"partner_id"`
}

// Quote is the live pricing breakdown shown on forms.
type Quote struct {
	BaseAmount    pricing.Money  `json:"base_amount"`
	PartnerCharge *pricing.Money `json:"partner_charge"`
	Total         pricing.Money  `json:"total"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("records: store is required")
	}
	return &Service{
		store:     cfg.Store,
		cache:     cfg.Cache,
		validate:  newValidator(),
		listeners: cfg.Listeners,
		log:       cfg.Logger.With().Str("component", "records").Logger(),
	}, nil
}

// AddListener registers a listener for subsequent writes.
func (s *Service) AddListener(l WriteListener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

// Records returns every record of the collection, served from the cache when
// warm. The cache generation is read before the store so a concurrent write
// can never leave its pre-write set cached as current.
func (s *Service) Records(ctx context.Context, collection string) ([]Record, error) {
	if _, err := Lookup(collection); err != nil {
		return nil, unknownCollection(collection)
	}
	gen, cached, err := s.cache.Generation(ctx, collection)
	if err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Msg("read record cache generation")
	}
	if cached {
		var recs []Record
		if ok, err := s.cache.Get(ctx, collection, gen, &recs); err != nil {
			s.log.Warn().Err(err).Str("collection", collection).Msg("read record cache")
		} else if ok {
			return recs, nil
		}
	}
	recs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if cached {
		if err := s.cache.Fill(ctx, collection, gen, recs); err != nil {
			s.log.Warn().Err(err).Str("collection", collection).Msg("write record cache")
		}
	}
	return recs, nil
}

// List filters, sorts and paginates the collection.
func (s *Service) List(ctx context.Context, collection string, q listing.Query) (listing.Page, error) {
	recs, err := s.Records(ctx, collection)
	if err != nil {
		return listing.Page{}, err
	}
	page := listing.Process(recs, q)
	obs.ObserveList(ctx, collection, page.Pagination.Total)
	return page, nil
}

// Get fetches a single record.
func (s *Service) Get(ctx context.Context, collection, id string) (Record, error) {
	if _, err := Lookup(collection); err != nil {
		return nil, unknownCollection(collection)
	}
	rec, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, mapStoreError(collection, err)
	}
	return rec, nil
}

// Create validates body and stores it as a new record.
func (s *Service) Create(ctx context.Context, collection string, body []byte) (Record, error) {
	c, err := Lookup(collection)
	if err != nil {
		return nil, unknownCollection(collection)
	}
	doc, err := s.prepare(ctx, c, body)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Insert(ctx, collection, uuid.NewString(), doc)
	if err != nil {
		return nil, mapStoreError(collection, err)
	}
	s.written(ctx, collection, OpCreate, rec)
	return rec, nil
}

// Update replaces the body of an existing record.
func (s *Service) Update(ctx context.Context, collection, id string, body []byte) (Record, error) {
	c, err := Lookup(collection)
	if err != nil {
		return nil, unknownCollection(collection)
	}
	doc, err := s.prepare(ctx, c, body)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, collection, id, doc)
	if err != nil {
		return nil, mapStoreError(collection, err)
	}
	s.written(ctx, collection, OpUpdate, rec)
	return rec, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if _, err := Lookup(collection); err != nil {
		return unknownCollection(collection)
	}
	if err := s.store.Delete(ctx, collection, id); err != nil {
		return mapStoreError(collection, err)
	}
	s.written(ctx, collection, OpDelete, Record{"_id": id})
	return nil
}

// Quote computes a live total for a form before it is submitted.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	var charge *pricing.Money
	if req.PartnerID != "" {
		if !IsPartnerCollection(req.PartnerCollection) {
			return Quote{}, common.BadRequest("partner_collection", "partner_collection must be delivery_partners or pickup_partners", nil)
		}
		var err error
		charge, err = s.partnerCharge(ctx, req.PartnerCollection, req.PartnerID)
		if err != nil {
			return Quote{}, err
		}
	}
	return Quote{
		BaseAmount:    req.BaseAmount,
		PartnerCharge: charge,
		Total:         pricing.ComputeTotal(req.BaseAmount, charge),
	}, nil
}

// Prepare validates body as a document of collection and derives its computed
// fields without persisting it. Partner charges are read from the store.
func (s *Service) Prepare(ctx context.Context, collection string, body []byte) (Record, error) {
	c, err := Lookup(collection)
	if err != nil {
		return nil, unknownCollection(collection)
	}
	return s.prepare(ctx, c, body)
}

func (s *Service) prepare(ctx context.Context, c Collection, body []byte) (Record, error) {
	doc, err := decode(s.validate, c, body)
	if err != nil {
		return nil, err
	}
	if rule := c.pricing; rule != nil {
		partnerID, _ := doc[rule.PartnerField].(string)
		charge, err := s.partnerCharge(ctx, rule.PartnerCollection, partnerID)
		if err != nil {
			return nil, err
		}
		doc["total"] = pricing.ComputeTotal(pricing.AmountOf(doc[rule.BaseField]), charge)
	}
	return doc, nil
}

func (s *Service) partnerCharge(ctx context.Context, collection, partnerID string) (*pricing.Money, error) {
	if partnerID == "" {
		return nil, nil
	}
	recs, err := s.store.ListByIDs(ctx, collection, []string{partnerID})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return pricing.SelectPartnerCharge(partnerID, pricing.PartnersFromRecords(recs)), nil
}

func (s *Service) written(ctx context.Context, collection, op string, rec Record) {
	if err := s.cache.Invalidate(ctx, collection); err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Msg("invalidate record cache")
	}
	obs.ObserveWrite(collection, op)
	id, _ := rec["_id"].(string)
	obs.NoteRecord(ctx, collection, id)
	for _, l := range s.listeners {
		l.RecordWritten(ctx, collection, op, id)
	}
}

func unknownCollection(collection string) error {
	return common.NotFound(fmt.Sprintf("collection %q not found", collection), ErrUnknownCollection)
}

func mapStoreError(collection string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return common.NotFound("record not found", err)
	case errors.Is(err, repo.ErrStoreUnavailable):
		return common.NewAppError("UNAVAILABLE", "store unavailable", http.StatusServiceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", collection, err)
	}
}

// decodeQuote parses a quote request body.
func decodeQuote(body []byte) (QuoteRequest, error) {
	var req QuoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, common.NewAppError("BAD_REQUEST", "invalid request payload", http.StatusBadRequest, err)
	}
	return req, nil
}
