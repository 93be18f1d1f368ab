package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/internal/profile"
)

// UUID v5 namespace for incident fingerprints. A fixed namespace keeps the
// same (source, title) signal mapping to the same fingerprint across
// restarts, which is what duplicate detection relies on.
var fingerprintNamespace = uuid.Must(uuid.FromBytes([]byte{
	0x4a, 0x91, 0x0c, 0x2e, 0x7d, 0x33, 0x45, 0xb1,
	0x8e, 0x5f, 0x02, 0x9a, 0xc4, 0x6b, 0xd8, 0x17,
}))

// Fingerprint derives the deterministic duplicate-detection key for an
// incoming signal.
func Fingerprint(source, title string) string {
	name := fmt.Sprintf("incident:%s:%s", source, title)
	return uuid.NewSHA1(fingerprintNamespace, []byte(name)).String()
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// onAppendConflict, when set, observes every optimistic-concurrency retry.
	onAppendConflict func()
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// SetAppendConflictHook registers a callback fired on each append conflict
// retry. The server wires it to the metrics exporter.
func (s *Store) SetAppendConflictHook(fn func()) {
	s.onAppendConflict = fn
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateIncident(ctx context.Context, create *Incident) (*Incident, error) {
	if create.UID == "" {
		create.UID = uuid.NewString()
	}
	if create.Fingerprint == "" {
		create.Fingerprint = Fingerprint(create.Source, create.Title)
	}
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}
	if create.Status == "" {
		create.Status = StatusDetected
	}
	return s.driver.CreateIncident(ctx, create)
}

func (s *Store) GetIncident(ctx context.Context, find *FindIncident) (*Incident, error) {
	list, err := s.driver.ListIncidents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListIncidents(ctx context.Context, find *FindIncident) ([]*Incident, error) {
	return s.driver.ListIncidents(ctx, find)
}

func (s *Store) UpdateIncident(ctx context.Context, update *UpdateIncident) (*Incident, error) {
	return s.driver.UpdateIncident(ctx, update)
}

func (s *Store) GetIncidentStats(ctx context.Context) (*IncidentStats, error) {
	return s.driver.GetIncidentStats(ctx)
}

func (s *Store) ListIncidentEvents(ctx context.Context, find *FindIncidentEvent) ([]*IncidentEvent, error) {
	return s.driver.ListIncidentEvents(ctx, find)
}

// maxAppendRetries bounds the optimistic-concurrency retry loop when the
// profile does not override it.
const defaultMaxAppendRetries = 5

// AppendEvent appends one event to an incident's log. The sequence number and
// chain hash are computed from the current tail; a concurrent writer racing
// for the same slot triggers a bounded retry with a refreshed tail. Exactly
// one durable row results per successful call.
func (s *Store) AppendEvent(ctx context.Context, incidentID int32, eventType IncidentEventType, payload any) (*IncidentEvent, error) {
	if !eventType.IsValid() {
		return nil, errors.Errorf("invalid event type %q", eventType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event payload")
	}

	maxRetries := defaultMaxAppendRetries
	if s.profile != nil && s.profile.Engine.MaxAppendRetries > 0 {
		maxRetries = s.profile.Engine.MaxAppendRetries
	}

	for attempt := 0; ; attempt++ {
		tail, err := s.driver.LatestIncidentEvent(ctx, incidentID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read event log tail")
		}

		seq := int64(1)
		prevHash := ""
		if tail != nil {
			// Re-checked on every retry: a racing writer that sealed the log
			// loses the seq slot, lands back here with the refreshed tail and
			// is rejected before it can append past the terminal event.
			if tail.Seals() {
				return nil, errors.Wrapf(ErrLogSealed, "incident %d ends with %s at seq %d", incidentID, tail.Type, tail.Seq)
			}
			seq = tail.Seq + 1
			prevHash = tail.Hash
		}

		event := &IncidentEvent{
			IncidentID: incidentID,
			Seq:        seq,
			Type:       eventType,
			Payload:    string(raw),
			PrevHash:   prevHash,
			CreatedTs:  time.Now().Unix(),
		}
		event.Hash = ChainHash(incidentID, seq, eventType, event.Payload, prevHash)

		stored, err := s.driver.AppendIncidentEvent(ctx, event)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, ErrSeqConflict) {
			return nil, err
		}
		if s.onAppendConflict != nil {
			s.onAppendConflict()
		}
		if attempt+1 >= maxRetries {
			return nil, errors.Wrapf(err, "append retries exhausted after %d attempts", maxRetries)
		}

		// Jittered backoff before re-reading the tail. Conflicts are expected
		// to be rare since each incident has a single logical writer.
		backoff := time.Duration(rand.Intn(10*(attempt+1))+1) * time.Millisecond
		slog.Debug("store: append conflict, retrying",
			"incident_id", incidentID,
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// ReplayStatus folds the full event log of an incident and returns the
// derived status together with the replayed events.
func (s *Store) ReplayStatus(ctx context.Context, incidentID int32) (IncidentStatus, []*IncidentEvent, error) {
	events, err := s.driver.ListIncidentEvents(ctx, &FindIncidentEvent{IncidentID: incidentID})
	if err != nil {
		return "", nil, err
	}
	status, err := FoldStatus(events)
	if err != nil {
		return "", nil, err
	}
	return status, events, nil
}
